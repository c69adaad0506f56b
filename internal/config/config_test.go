// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, env var expansion, overrides and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
api:
  base_url: "https://tutor.example.com/api"
  timeout: "5s"
channel:
  url: "wss://tutor.example.com/ws"
  ping_interval: "20s"
  handshake_timeout: "3s"
  reconnect:
    enabled: true
    initial_interval: "250ms"
    max_interval: "10s"
    max_attempts: 4
credential:
  backend: "sqlite"
  path: "/tmp/tutorchat.db"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tutor.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, "wss://tutor.example.com/ws", cfg.Channel.URL)
	assert.Equal(t, 20*time.Second, cfg.Channel.PingInterval)
	assert.Equal(t, 3*time.Second, cfg.Channel.HandshakeTimeout)
	assert.True(t, cfg.Channel.Reconnect.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Channel.Reconnect.InitialInterval)
	assert.Equal(t, 10*time.Second, cfg.Channel.Reconnect.MaxInterval)
	assert.Equal(t, uint(4), cfg.Channel.Reconnect.MaxAttempts)
	assert.Equal(t, "sqlite", cfg.Credential.Backend)
	assert.Equal(t, "/tmp/tutorchat.db", cfg.Credential.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ValidTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
[api]
base_url = "http://127.0.0.1:9000/api"

[channel]
url = "ws://127.0.0.1:9000/ws"

[channel.reconnect]
enabled = false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9000/api", cfg.API.BaseURL)
	assert.Equal(t, "ws://127.0.0.1:9000/ws", cfg.Channel.URL)
	assert.False(t, cfg.Channel.Reconnect.Enabled)
	// Untouched sections keep their defaults
	assert.Equal(t, 25*time.Second, cfg.Channel.PingInterval)
	assert.Equal(t, "file", cfg.Credential.Backend)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, "ws://localhost:5000/ws", cfg.Channel.URL)
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Channel.Reconnect.InitialInterval)
	assert.Equal(t, filepath.Join(Dir(), "token"), cfg.Credential.Path)
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TUTOR_HOST", "tutor.internal")
	path := writeConfig(t, "config.yaml", `
api:
  base_url: "https://${TUTOR_HOST}/api"
channel:
  url: "wss://${TUTOR_HOST}/ws"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://tutor.internal/api", cfg.API.BaseURL)
	assert.Equal(t, "wss://tutor.internal/ws", cfg.Channel.URL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TUTORCHAT_API_URL", "https://override.example.com/api")
	t.Setenv("TUTORCHAT_CHANNEL_URL", "wss://override.example.com/ws")
	t.Setenv("TUTORCHAT_TOKEN", "bootstrap-token")
	t.Setenv("TUTORCHAT_LOG_LEVEL", "warn")

	path := writeConfig(t, "config.yaml", `
api:
  base_url: "https://file.example.com/api"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://override.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "wss://override.example.com/ws", cfg.Channel.URL)
	assert.Equal(t, "bootstrap-token", cfg.Token)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
channel:
  ping_interval: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel.ping_interval")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"missing base url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url is required"},
		{"bad api scheme", func(c *Config) { c.API.BaseURL = "ftp://x" }, "http or https"},
		{"bad channel scheme", func(c *Config) { c.Channel.URL = "http://x/ws" }, "ws or wss"},
		{"unknown backend", func(c *Config) { c.Credential.Backend = "cookie" }, "credential.backend"},
		{"reconnect without attempts", func(c *Config) { c.Channel.Reconnect.MaxAttempts = 0 }, "max_attempts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPath_EnvOverride(t *testing.T) {
	t.Setenv("TUTORCHAT_CONFIG", "/etc/tutorchat/custom.yaml")
	assert.Equal(t, "/etc/tutorchat/custom.yaml", Path())
}

func TestPath_XDG(t *testing.T) {
	t.Setenv("TUTORCHAT_CONFIG", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "tutorchat", "config.yaml"), Path())
}
