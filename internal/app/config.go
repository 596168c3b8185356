package app

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime option of a client. It is read from a YAML
// file and overridden by command-line flags.
type Config struct {
	// ServerURL is the coordinating server's base URL, e.g. http://127.0.0.1:8080
	ServerURL string `yaml:"server_url"`

	// Home is the directory holding the keystore and account profiles.
	Home string `yaml:"home"`

	// Username selects which registered account to act as.
	Username string `yaml:"username"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// InsecureSkipVerify disables TLS certificate checks. Development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`

	// PingInterval sends websocket pings while connected. A connection with
	// no traffic for two intervals is treated as lost. Zero disables both.
	PingInterval time.Duration `yaml:"ping_interval"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
	Queue     QueueConfig     `yaml:"queue"`
	Directory DirectoryConfig `yaml:"directory"`
	Auth      AuthConfig      `yaml:"auth"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// ReconnectConfig is the backoff policy.
type ReconnectConfig struct {
	BaseInterval    time.Duration `yaml:"base_interval"`
	MaxInterval     time.Duration `yaml:"max_interval"`
	Jitter          float64       `yaml:"jitter"`
	SustainedPeriod time.Duration `yaml:"sustained_period"`
	MaxAttempts     int           `yaml:"max_attempts"` // 0 = unlimited
	MaxDuration     time.Duration `yaml:"max_duration"` // 0 = unlimited
}

// QueueConfig sizes the outbound and inbound queues.
type QueueConfig struct {
	OutboundSize int           `yaml:"outbound_size"`
	InboundSize  int           `yaml:"inbound_size"`
	MaxAge       time.Duration `yaml:"max_age"` // 0 keeps frames until sent
}

// DirectoryConfig tunes the peer key cache.
type DirectoryConfig struct {
	NegativeTTL time.Duration `yaml:"negative_ttl"`
}

// AuthConfig tunes token handling.
type AuthConfig struct {
	RefreshSkew time.Duration `yaml:"refresh_skew"`
}

// HTTPConfig configures REST calls.
type HTTPConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultHome returns $HOME/.peerlink, or .peerlink when HOME is unknown.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".peerlink"
	}
	return filepath.Join(home, ".peerlink")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:    "http://127.0.0.1:8080",
		Home:         DefaultHome(),
		LogLevel:     "info",
		PingInterval: 30 * time.Second,
		Reconnect: ReconnectConfig{
			BaseInterval:    time.Second,
			MaxInterval:     30 * time.Second,
			Jitter:          0.2,
			SustainedPeriod: time.Minute,
		},
		Queue: QueueConfig{
			OutboundSize: 256,
			InboundSize:  64,
			MaxAge:       5 * time.Minute,
		},
		Directory: DirectoryConfig{NegativeTTL: 30 * time.Second},
		Auth:      AuthConfig{RefreshSkew: time.Minute},
		HTTP:      HTTPConfig{Timeout: 15 * time.Second},
	}
}

// ConfigPath returns the config file location inside home.
func ConfigPath(home string) string { return filepath.Join(home, "config.yaml") }

// LoadConfig reads path over the defaults. A missing file yields defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Validate rejects settings the client cannot run with.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("config: invalid server_url %q", c.ServerURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("config: server_url must be http or https, got %q", u.Scheme)
	}
	if c.Home == "" {
		return errors.New("config: home must not be empty")
	}
	r := c.Reconnect
	switch {
	case r.BaseInterval <= 0:
		return errors.New("config: reconnect.base_interval must be positive")
	case r.MaxInterval < r.BaseInterval:
		return errors.New("config: reconnect.max_interval must be at least base_interval")
	case r.Jitter < 0 || r.Jitter > 1:
		return errors.New("config: reconnect.jitter must be within [0, 1]")
	case r.MaxAttempts < 0 || r.MaxDuration < 0:
		return errors.New("config: reconnect ceilings must not be negative")
	}
	if c.PingInterval < 0 {
		return errors.New("config: ping_interval must not be negative")
	}
	if c.Queue.OutboundSize <= 0 || c.Queue.InboundSize <= 0 {
		return errors.New("config: queue sizes must be positive")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// BindFlags registers a flag for each tunable field, bound to c and
// defaulting to its current value.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.ServerURL, "server", c.ServerURL, "coordinating server base URL")
	fs.StringVar(&c.Home, "home", c.Home, "directory for keystore and account data")
	fs.StringVarP(&c.Username, "user", "u", c.Username, "registered username to act as")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.BoolVar(&c.InsecureSkipVerify, "insecure-skip-verify", c.InsecureSkipVerify,
		"disable TLS certificate verification (development only)")
	fs.DurationVar(&c.PingInterval, "ping-interval", c.PingInterval, "websocket ping interval; silence for two intervals drops the connection (0 disables)")
	fs.DurationVar(&c.Reconnect.BaseInterval, "reconnect-base", c.Reconnect.BaseInterval, "initial reconnect delay")
	fs.DurationVar(&c.Reconnect.MaxInterval, "reconnect-max", c.Reconnect.MaxInterval, "maximum reconnect delay")
	fs.Float64Var(&c.Reconnect.Jitter, "reconnect-jitter", c.Reconnect.Jitter, "reconnect jitter fraction in [0, 1]")
	fs.IntVar(&c.Reconnect.MaxAttempts, "reconnect-max-attempts", c.Reconnect.MaxAttempts,
		"give up after this many consecutive failures (0 = never)")
	fs.DurationVar(&c.Reconnect.MaxDuration, "reconnect-max-duration", c.Reconnect.MaxDuration,
		"give up after being disconnected this long (0 = never)")
	fs.DurationVar(&c.Queue.MaxAge, "queue-max-age", c.Queue.MaxAge,
		"report queued messages undeliverable after this long (0 = never)")
	fs.DurationVar(&c.HTTP.Timeout, "http-timeout", c.HTTP.Timeout, "timeout for REST calls")
}

// ApplyFlags copies every flag explicitly set in fs onto c. fs must have
// been populated by BindFlags on some Config.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	bound := pflag.NewFlagSet("config", pflag.ContinueOnError)
	c.BindFlags(bound)

	var err error
	fs.Visit(func(f *pflag.Flag) {
		target := bound.Lookup(f.Name)
		if target == nil || err != nil {
			return
		}
		if setErr := target.Value.Set(f.Value.String()); setErr != nil {
			err = fmt.Errorf("flag --%s: %w", f.Name, setErr)
		}
	})
	return err
}
