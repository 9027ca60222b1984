package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/canvas-api-client/pkg/model"
	"github.com/rs/zerolog"
)

// Store keys. "masq-user" keeps its historical spelling so existing stores stay readable.
const (
	KeyUser           = "user"
	KeyMasqueradeUser = "masq-user"
	KeyDomain         = "domain"
	KeyKalturaDomain  = "kaltura_domain"
	KeyToken          = "token"
	KeyKalturaToken   = "kaltura_token"
	KeyUserAgent      = "user_agent"
	KeyProtocol       = "api_protocol"
)

// DefaultProtocol is used when no protocol has been stored.
const DefaultProtocol = "https"

var (
	// ErrEmptyValue is returned by setters given an empty value.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrNoUser is returned when no user is cached for the actor.
	ErrNoUser = errors.New("no cached user")
)

// Actor selects whose identity record a call reads or writes.
type Actor int

const (
	// NormalUser is the account the token belongs to.
	NormalUser Actor = iota
	// MasqueradedUser is the account being acted as.
	MasqueradedUser
)

// String implements fmt.Stringer.
func (a Actor) String() string {
	if a == MasqueradedUser {
		return "masquerade"
	}
	return "user"
}

func (a Actor) userKey() string {
	if a == MasqueradedUser {
		return KeyMasqueradeUser
	}
	return KeyUser
}

// Session reads and writes credentials through a Store.
type Session struct {
	store  Store
	logger zerolog.Logger
}

// New creates a Session over store.
func New(store Store, logger zerolog.Logger) *Session {
	if store == nil {
		panic("session store cannot be nil")
	}
	return &Session{store: store, logger: logger}
}

// Store returns the underlying store.
func (s *Session) Store() Store {
	return s.store
}

// get returns def when the key is unset.
func (s *Session) get(ctx context.Context, key, def string) (string, error) {
	v, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return def, nil
		}
		return def, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *Session) set(ctx context.Context, key, value string) error {
	if value == "" {
		return fmt.Errorf("set %s: %w", key, ErrEmptyValue)
	}
	if err := s.store.Set(ctx, key, value); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("Session write failed")
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Domain returns the stored domain without trailing slashes.
func (s *Session) Domain(ctx context.Context) (string, error) {
	d, err := s.get(ctx, KeyDomain, "")
	return strings.TrimRight(d, "/"), err
}

// SetDomain stores domain with any http:// or https:// scheme removed.
func (s *Session) SetDomain(ctx context.Context, domain string) error {
	return s.set(ctx, KeyDomain, removeProtocol(domain))
}

// KalturaDomain returns the stored Kaltura domain without trailing slashes.
func (s *Session) KalturaDomain(ctx context.Context) (string, error) {
	d, err := s.get(ctx, KeyKalturaDomain, "")
	return strings.TrimRight(d, "/"), err
}

// SetKalturaDomain stores the Kaltura domain with its scheme removed.
func (s *Session) SetKalturaDomain(ctx context.Context, domain string) error {
	return s.set(ctx, KeyKalturaDomain, removeProtocol(domain))
}

// Protocol returns the stored protocol, DefaultProtocol if unset.
func (s *Session) Protocol(ctx context.Context) (string, error) {
	return s.get(ctx, KeyProtocol, DefaultProtocol)
}

// SetProtocol stores the protocol ("https" or "http").
func (s *Session) SetProtocol(ctx context.Context, protocol string) error {
	return s.set(ctx, KeyProtocol, protocol)
}

// FullDomain returns "protocol://domain", or "" when either part is unset.
func (s *Session) FullDomain(ctx context.Context) (string, error) {
	domain, err := s.Domain(ctx)
	if err != nil {
		return "", err
	}
	return s.withProtocol(ctx, domain)
}

// FullKalturaDomain returns "protocol://kaltura-domain", or "" when unset.
func (s *Session) FullKalturaDomain(ctx context.Context) (string, error) {
	domain, err := s.KalturaDomain(ctx)
	if err != nil {
		return "", err
	}
	return s.withProtocol(ctx, domain)
}

func (s *Session) withProtocol(ctx context.Context, domain string) (string, error) {
	protocol, err := s.Protocol(ctx)
	if err != nil {
		return "", err
	}
	if protocol == "" || domain == "" {
		return "", nil
	}
	return protocol + "://" + domain, nil
}

// Token returns the OAuth token, "" if unset.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.get(ctx, KeyToken, "")
}

// SetToken stores the OAuth token.
func (s *Session) SetToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyToken, token)
}

// KalturaToken returns the Kaltura session token, "" if unset.
func (s *Session) KalturaToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyKalturaToken, "")
}

// SetKalturaToken stores the Kaltura session token.
func (s *Session) SetKalturaToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyKalturaToken, token)
}

// UserAgent returns the stored user agent, "" if unset.
func (s *Session) UserAgent(ctx context.Context) (string, error) {
	return s.get(ctx, KeyUserAgent, "")
}

// SetUserAgent stores the user agent.
func (s *Session) SetUserAgent(ctx context.Context, userAgent string) error {
	return s.set(ctx, KeyUserAgent, userAgent)
}

// CachedUser returns the user cached for actor, or ErrNoUser.
func (s *Session) CachedUser(ctx context.Context, actor Actor) (*model.User, error) {
	raw, err := s.get(ctx, actor.userKey(), "")
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrNoUser
	}

	var user model.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, fmt.Errorf("decode cached %s: %w", actor, err)
	}
	return &user, nil
}

// SetCachedUser caches user for actor.
func (s *Session) SetCachedUser(ctx context.Context, actor Actor, user *model.User) error {
	if user == nil {
		return fmt.Errorf("set cached %s: %w", actor, ErrEmptyValue)
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode cached %s: %w", actor, err)
	}

	if err := s.set(ctx, actor.userKey(), string(data)); err != nil {
		return err
	}

	s.logger.Debug().
		Int64("user_id", user.ID).
		Str("actor", actor.String()).
		Msg("Cached user")
	return nil
}

// UpdateCachedUser applies fn to the cached user and writes it back.
func (s *Session) UpdateCachedUser(ctx context.Context, actor Actor, fn func(*model.User)) error {
	user, err := s.CachedUser(ctx, actor)
	if err != nil {
		return err
	}
	fn(user)
	return s.SetCachedUser(ctx, actor, user)
}

// SetCachedAvatarURL updates the avatar of the cached user.
func (s *Session) SetCachedAvatarURL(ctx context.Context, actor Actor, avatarURL string) error {
	return s.UpdateCachedUser(ctx, actor, func(u *model.User) { u.AvatarURL = avatarURL })
}

// SetCachedShortName updates the short name of the cached user.
func (s *Session) SetCachedShortName(ctx context.Context, actor Actor, shortName string) error {
	return s.UpdateCachedUser(ctx, actor, func(u *model.User) { u.ShortName = shortName })
}

// SetCachedEmail updates the email of the cached user.
func (s *Session) SetCachedEmail(ctx context.Context, actor Actor, email string) error {
	return s.UpdateCachedUser(ctx, actor, func(u *model.User) { u.Email = email })
}

// SetCachedName updates the name of the cached user.
func (s *Session) SetCachedName(ctx context.Context, actor Actor, name string) error {
	return s.UpdateCachedUser(ctx, actor, func(u *model.User) { u.Name = name })
}

// Clear removes every stored value. This is a logout.
func (s *Session) Clear(ctx context.Context) error {
	if err := s.store.Clear(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear session")
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info().Msg("Session cleared")
	return nil
}

func removeProtocol(domain string) string {
	if strings.HasPrefix(domain, "https://") {
		return strings.TrimPrefix(domain, "https://")
	}
	return strings.TrimPrefix(domain, "http://")
}
