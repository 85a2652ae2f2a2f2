package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds runtime key sets for use by other packages.
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	AdminKeys   map[string]struct{}
}

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
	Bot      BotConfig      `yaml:"bot"`
	Platform PlatformConfig `yaml:"platform"`
	Emit     EmitConfig     `yaml:"emit"`
	Janitor  JanitorConfig  `yaml:"janitor"`
	Ingest   IngestConfig   `yaml:"ingest"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	DBPath  string    `yaml:"db_path"`
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig holds security related settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend []string `yaml:"backend"`
		Admin   []string `yaml:"admin"`
	} `yaml:"api_keys"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// BotConfig identifies the bot on the messaging platform. Platform bot
// ids carry the fixed "28:" prefix.
type BotConfig struct {
	ID string `yaml:"id"`
}

// PlatformConfig holds the outbound REST relay settings: the platform
// API base URL and the OAuth client-credential endpoint.
type PlatformConfig struct {
	BaseURL      string   `yaml:"base_url"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scope        string   `yaml:"scope"`
	Timeout      Duration `yaml:"timeout"`
}

// EmitConfig holds the downstream event sink settings. When URL is empty
// events are written to the log instead.
type EmitConfig struct {
	URL         string   `yaml:"url"`
	BearerToken string   `yaml:"bearer_token"`
	Timeout     Duration `yaml:"timeout"`
}

// JanitorConfig holds configuration for the stale-subscription sweeper.
type JanitorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
	DryRun  bool   `yaml:"dry_run"`
}

// IngestConfig holds queueing and processing configuration.
type IngestConfig struct {
	Workers int         `yaml:"workers"`
	Queue   QueueConfig `yaml:"queue"`
}

// QueueConfig holds in-memory queue tunables.
type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// Addr returns the listen address derived from Server.Address and
// Server.Port.
func (c *Config) Addr() string {
	if c == nil {
		return ""
	}
	if c.Server.Address == "" && c.Server.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
