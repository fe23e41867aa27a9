package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// EnvAPIURL overrides [APIConfig.BaseURL] when set.
const EnvAPIURL = "TUNEBRIDGE_API_URL"

// Platform names accepted in [SessionConfig.Platform].
const (
	PlatformWeb    = "web"
	PlatformMobile = "mobile"
)

// Persistence backends accepted in [SessionConfig.Persistence].
const (
	PersistNone   = "none"
	PersistFile   = "file"
	PersistSQLite = "sqlite"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API        APIConfig        `toml:"api"`
	Session    SessionConfig    `toml:"session"`
	Stream     StreamConfig     `toml:"stream"`
	NowPlaying NowPlayingConfig `toml:"nowplaying"`
	Database   DatabaseConfig   `toml:"database"`
	Log        LogConfig        `toml:"log"`
}

// APIConfig contains backend connection settings.
type APIConfig struct {
	BaseURL   string  `toml:"base_url"`
	Timeout   int     `toml:"timeout"`
	RateLimit float64 `toml:"rate_limit"`
	Burst     int     `toml:"burst"`
}

// SessionConfig selects the platform persistence capability.
type SessionConfig struct {
	Platform     string `toml:"platform"`
	Persistence  string `toml:"persistence"`
	TokenPath    string `toml:"token_path"`
	CallbackPort int    `toml:"callback_port"`
}

// StreamConfig contains stream resolution policy knobs.
type StreamConfig struct {
	DeriveQuery bool `toml:"derive_query"`
	History     bool `toml:"history"`
}

// NowPlayingConfig contains synchronizer settings.
type NowPlayingConfig struct {
	Interval int `toml:"interval"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read config file: %v", ErrMissingConfig, err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.API.BaseURL = v
	}
}

// Validate checks the values that the controller cannot recover from at runtime.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: api.base_url %q is not an absolute URL", ErrInvalidConfig, c.API.BaseURL)
	}

	switch c.Session.Platform {
	case PlatformWeb, PlatformMobile:
	default:
		return fmt.Errorf("%w: session.platform must be %q or %q, got %q", ErrInvalidConfig, PlatformWeb, PlatformMobile, c.Session.Platform)
	}

	switch c.Session.Persistence {
	case PersistNone, PersistFile, PersistSQLite:
	default:
		return fmt.Errorf("%w: unknown session.persistence %q", ErrInvalidConfig, c.Session.Persistence)
	}

	if c.NowPlaying.Interval < 0 {
		return fmt.Errorf("%w: nowplaying.interval must not be negative", ErrInvalidConfig)
	}

	if c.Session.CallbackPort < 0 || c.Session.CallbackPort > 65535 {
		return fmt.Errorf("%w: session.callback_port out of range", ErrInvalidConfig)
	}

	return nil
}

// TimeoutDuration returns the request timeout, defaulting to 10 seconds.
func (a APIConfig) TimeoutDuration() time.Duration {
	if a.Timeout <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.Timeout) * time.Second
}

// IntervalDuration returns the poll interval, defaulting to 5 seconds.
func (n NowPlayingConfig) IntervalDuration() time.Duration {
	if n.Interval <= 0 {
		return 5 * time.Second
	}
	return time.Duration(n.Interval) * time.Second
}

// PersistsToken reports whether the configured platform keeps token_info across runs.
func (s SessionConfig) PersistsToken() bool {
	return s.Platform == PlatformMobile && s.Persistence != PersistNone
}
