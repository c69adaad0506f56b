// ABOUTME: Configuration loading and parsing for tutorchat
// ABOUTME: Supports YAML or TOML files with env var expansion, duration parsing and env overrides

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the complete tutorchat configuration
type Config struct {
	API        APIConfig        `yaml:"api" toml:"api"`
	Channel    ChannelConfig    `yaml:"channel" toml:"channel"`
	Credential CredentialConfig `yaml:"credential" toml:"credential"`
	Logging    LoggingConfig    `yaml:"logging" toml:"logging"`

	// Token is a bootstrap credential taken from the environment only.
	// When set it is written to the credential store at startup.
	Token string `yaml:"-" toml:"-"`
}

// APIConfig holds the durable REST collaborator settings
type APIConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// ChannelConfig holds the real-time channel settings
type ChannelConfig struct {
	URL              string          `yaml:"url" toml:"url"`
	PingInterval     time.Duration   `yaml:"-" toml:"-"`
	HandshakeTimeout time.Duration   `yaml:"-" toml:"-"`
	Reconnect        ReconnectConfig `yaml:"reconnect" toml:"reconnect"`

	// Raw string values for YAML/TOML unmarshaling
	PingIntervalRaw     string `yaml:"ping_interval" toml:"ping_interval"`
	HandshakeTimeoutRaw string `yaml:"handshake_timeout" toml:"handshake_timeout"`
}

// ReconnectConfig bounds the channel's reconnect attempts
type ReconnectConfig struct {
	Enabled         bool          `yaml:"enabled" toml:"enabled"`
	InitialInterval time.Duration `yaml:"-" toml:"-"`
	MaxInterval     time.Duration `yaml:"-" toml:"-"`
	MaxAttempts     uint          `yaml:"max_attempts" toml:"max_attempts"`

	InitialIntervalRaw string `yaml:"initial_interval" toml:"initial_interval"`
	MaxIntervalRaw     string `yaml:"max_interval" toml:"max_interval"`
}

// CredentialConfig selects where the bearer credential is persisted
type CredentialConfig struct {
	Backend string `yaml:"backend" toml:"backend"` // file, sqlite
	Path    string `yaml:"path" toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// envOverrides are the settings that may be supplied through the environment.
type envOverrides struct {
	APIURL     string `env:"TUTORCHAT_API_URL"`
	ChannelURL string `env:"TUTORCHAT_CHANNEL_URL"`
	Token      string `env:"TUTORCHAT_TOKEN"`
	LogLevel   string `env:"TUTORCHAT_LOG_LEVEL"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:    "http://localhost:5000/api",
			TimeoutRaw: "15s",
		},
		Channel: ChannelConfig{
			URL:                 "ws://localhost:5000/ws",
			PingIntervalRaw:     "25s",
			HandshakeTimeoutRaw: "10s",
			Reconnect: ReconnectConfig{
				Enabled:            true,
				InitialIntervalRaw: "500ms",
				MaxIntervalRaw:     "30s",
				MaxAttempts:        8,
			},
		},
		Credential: CredentialConfig{
			Backend: "file",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Path returns the path to the config file.
// Priority: TUTORCHAT_CONFIG env var > XDG_CONFIG_HOME/tutorchat/config.yaml > ~/.config/tutorchat/config.yaml
func Path() string {
	if envPath := os.Getenv("TUTORCHAT_CONFIG"); envPath != "" {
		return envPath
	}
	return filepath.Join(Dir(), "config.yaml")
}

// Dir returns the tutorchat config directory.
func Dir() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "."
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "tutorchat")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// A missing file yields the defaults. Files ending in .toml are decoded as TOML,
// everything else as YAML. Environment variables in the format ${VAR_NAME} are
// expanded, then TUTORCHAT_* overrides are applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		expanded := expandEnvVars(string(data))
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if _, err := toml.Decode(expanded, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if cfg.Credential.Path == "" {
		cfg.Credential.Path = defaultCredentialPath(cfg.Credential.Backend)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overlays TUTORCHAT_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if o.APIURL != "" {
		cfg.API.BaseURL = o.APIURL
	}
	if o.ChannelURL != "" {
		cfg.Channel.URL = o.ChannelURL
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	cfg.Token = o.Token
	return nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func defaultCredentialPath(backend string) string {
	if backend == "sqlite" {
		return filepath.Join(Dir(), "storage.db")
	}
	return filepath.Join(Dir(), "token")
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil {
		return fmt.Errorf("api.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api.base_url must use http or https scheme")
	}

	if c.Channel.URL == "" {
		return fmt.Errorf("channel.url is required")
	}
	u, err = url.Parse(c.Channel.URL)
	if err != nil {
		return fmt.Errorf("channel.url is not a valid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("channel.url must use ws or wss scheme")
	}

	switch c.Credential.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("credential.backend must be file or sqlite, got %q", c.Credential.Backend)
	}

	if c.Channel.Reconnect.Enabled && c.Channel.Reconnect.MaxAttempts == 0 {
		return fmt.Errorf("channel.reconnect.max_attempts must be positive when reconnect is enabled")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"api.timeout", cfg.API.TimeoutRaw, &cfg.API.Timeout},
		{"channel.ping_interval", cfg.Channel.PingIntervalRaw, &cfg.Channel.PingInterval},
		{"channel.handshake_timeout", cfg.Channel.HandshakeTimeoutRaw, &cfg.Channel.HandshakeTimeout},
		{"channel.reconnect.initial_interval", cfg.Channel.Reconnect.InitialIntervalRaw, &cfg.Channel.Reconnect.InitialInterval},
		{"channel.reconnect.max_interval", cfg.Channel.Reconnect.MaxIntervalRaw, &cfg.Channel.Reconnect.MaxInterval},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
