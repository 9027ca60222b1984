package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Sternrassler/canvas-api-client/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"CANVAS_DOMAIN", "CANVAS_TOKEN", "CANVAS_PROTOCOL", "CANVAS_MASQUERADE_AS",
	"REDIS_URL", "USER_AGENT", "REQUESTS_PER_SECOND", "LOG_LEVEL", "LOG_PRETTY", "PORT",
}

// clearEnv unsets every key Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "", cfg.CanvasDomain)
	assert.Equal(t, "https", cfg.CanvasProtocol)
	assert.Equal(t, DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, DefaultRequestsPerSecond, cfg.RequestsPerSecond)
	assert.Equal(t, logging.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.LogPretty)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.False(t, cfg.Masquerading())
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANVAS_DOMAIN", "canvas.example.edu")
	t.Setenv("CANVAS_TOKEN", "secret")
	t.Setenv("CANVAS_PROTOCOL", "HTTP")
	t.Setenv("CANVAS_MASQUERADE_AS", "sis_user_id:42")
	t.Setenv("REQUESTS_PER_SECOND", "2.5")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("PORT", "9090")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "canvas.example.edu", cfg.CanvasDomain)
	assert.Equal(t, "secret", cfg.CanvasToken)
	assert.Equal(t, "http", cfg.CanvasProtocol)
	assert.Equal(t, "sis_user_id:42", cfg.MasqueradeAs)
	assert.True(t, cfg.Masquerading())
	assert.Equal(t, 2.5, cfg.RequestsPerSecond)
	assert.Equal(t, logging.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "9090", cfg.Port)
}

func TestLoad_DotEnvFile(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"CANVAS_DOMAIN=file.example.edu\nCANVAS_TOKEN=from-file\nPORT=7000\n"), 0o600))

	// The environment wins over the file
	t.Setenv("PORT", "7001")

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "file.example.edu", cfg.CanvasDomain)
	assert.Equal(t, "from-file", cfg.CanvasToken)
	assert.Equal(t, "7001", cfg.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad rate", "REQUESTS_PER_SECOND", "fast"},
		{"negative rate", "REQUESTS_PER_SECOND", "-1"},
		{"bad bool", "LOG_PRETTY", "sometimes"},
		{"bad level", "LOG_LEVEL", "verbose"},
		{"bad protocol", "CANVAS_PROTOCOL", "ftp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}

func TestRedisOptions(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantNil  bool
		wantAddr string
		wantDB   int
		wantErr  bool
	}{
		{name: "disabled", url: "", wantNil: true},
		{name: "host port", url: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "url", url: "redis://cache.internal:6380/2", wantAddr: "cache.internal:6380", wantDB: 2},
		{name: "bad scheme", url: "http://cache.internal", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{RedisURL: tt.url}
			opts, err := cfg.RedisOptions()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, opts)
				return
			}
			assert.Equal(t, tt.wantAddr, opts.Addr)
			assert.Equal(t, tt.wantDB, opts.DB)
		})
	}
}
