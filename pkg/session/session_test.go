package session

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/canvas-api-client/pkg/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return New(NewMemoryStore(), zerolog.Nop())
}

// failingStore rejects every write.
type failingStore struct {
	*MemoryStore
}

var errCommit = errors.New("commit failed")

func (f failingStore) Set(context.Context, string, string) error { return errCommit }
func (f failingStore) Clear(context.Context) error             { return errCommit }

func TestSession_Domain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "canvas.example.edu", "canvas.example.edu"},
		{"https scheme", "https://canvas.example.edu", "canvas.example.edu"},
		{"http scheme", "http://canvas.example.edu", "canvas.example.edu"},
		{"trailing slashes", "https://canvas.example.edu///", "canvas.example.edu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t)
			ctx := context.Background()

			require.NoError(t, s.SetDomain(ctx, tt.input))
			got, err := s.Domain(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSession_EmptyValuesRejected(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	setters := map[string]func(context.Context, string) error{
		"domain":         s.SetDomain,
		"kaltura domain": s.SetKalturaDomain,
		"protocol":       s.SetProtocol,
		"token":          s.SetToken,
		"kaltura token":  s.SetKalturaToken,
		"user agent":     s.SetUserAgent,
	}
	for name, set := range setters {
		err := set(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyValue, name)
	}

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSession_FullDomain(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	full, err := s.FullDomain(ctx)
	require.NoError(t, err)
	assert.Empty(t, full, "no domain stored")

	require.NoError(t, s.SetDomain(ctx, "canvas.example.edu/"))
	full, err = s.FullDomain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://canvas.example.edu", full)

	require.NoError(t, s.SetProtocol(ctx, "http"))
	full, err = s.FullDomain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "http://canvas.example.edu", full)
}

func TestSession_Kaltura(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.SetKalturaDomain(ctx, "https://kaltura.example.edu/"))
	require.NoError(t, s.SetKalturaToken(ctx, "ks-123"))

	full, err := s.FullKalturaDomain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://kaltura.example.edu", full)

	token, err := s.KalturaToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ks-123", token)
}

func TestSession_TokenAndUserAgent(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "1~abc"))
	require.NoError(t, s.SetUserAgent(ctx, "canvas-cli/1.0"))

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1~abc", token)

	ua, err := s.UserAgent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "canvas-cli/1.0", ua)
}

func TestSession_CachedUserPerActor(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	_, err := s.CachedUser(ctx, NormalUser)
	assert.ErrorIs(t, err, ErrNoUser)

	require.NoError(t, s.SetCachedUser(ctx, NormalUser, &model.User{ID: 1, Name: "Instructor"}))
	require.NoError(t, s.SetCachedUser(ctx, MasqueradedUser, &model.User{ID: 2, Name: "Student"}))

	own, err := s.CachedUser(ctx, NormalUser)
	require.NoError(t, err)
	assert.Equal(t, int64(1), own.ID)

	masq, err := s.CachedUser(ctx, MasqueradedUser)
	require.NoError(t, err)
	assert.Equal(t, int64(2), masq.ID)

	raw, err := s.Store().Get(ctx, KeyMasqueradeUser)
	require.NoError(t, err)
	assert.Contains(t, raw, `"Student"`)
}

func TestSession_SetCachedUserNil(t *testing.T) {
	s := newTestSession(t)
	assert.ErrorIs(t, s.SetCachedUser(context.Background(), NormalUser, nil), ErrEmptyValue)
}

func TestSession_UpdateCachedFields(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.SetCachedEmail(ctx, NormalUser, "x@example.edu"), ErrNoUser)

	require.NoError(t, s.SetCachedUser(ctx, NormalUser, &model.User{ID: 7, Name: "Old"}))
	require.NoError(t, s.SetCachedName(ctx, NormalUser, "New"))
	require.NoError(t, s.SetCachedShortName(ctx, NormalUser, "N"))
	require.NoError(t, s.SetCachedEmail(ctx, NormalUser, "new@example.edu"))
	require.NoError(t, s.SetCachedAvatarURL(ctx, NormalUser, "https://example.edu/a.png"))

	u, err := s.CachedUser(ctx, NormalUser)
	require.NoError(t, err)
	assert.Equal(t, "New", u.Name)
	assert.Equal(t, "N", u.ShortName)
	assert.Equal(t, "new@example.edu", u.Email)
	assert.Equal(t, "https://example.edu/a.png", u.AvatarURL)

	_, err = s.CachedUser(ctx, MasqueradedUser)
	assert.ErrorIs(t, err, ErrNoUser, "masquerade record untouched")
}

func TestSession_CorruptCachedUser(t *testing.T) {
	store := NewMemoryStore()
	s := New(store, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, KeyUser, "{not json"))
	_, err := s.CachedUser(ctx, NormalUser)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoUser)
}

func TestSession_Clear(t *testing.T) {
	s := newTestSession(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "tok"))
	require.NoError(t, s.SetDomain(ctx, "canvas.example.edu"))
	require.NoError(t, s.Clear(ctx))

	token, err := s.Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	protocol, err := s.Protocol(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultProtocol, protocol)
}

func TestSession_StoreFailuresSurface(t *testing.T) {
	s := New(failingStore{NewMemoryStore()}, zerolog.Nop())
	ctx := context.Background()

	assert.ErrorIs(t, s.SetToken(ctx, "tok"), errCommit)
	assert.ErrorIs(t, s.Clear(ctx), errCommit)
}

func TestNew_NilStorePanics(t *testing.T) {
	assert.Panics(t, func() { New(nil, zerolog.Nop()) })
}

func TestActor_String(t *testing.T) {
	assert.Equal(t, "user", NormalUser.String())
	assert.Equal(t, "masquerade", MasqueradedUser.String())
}
