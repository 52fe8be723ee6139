package core

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type WebhookConfig struct {
	URL   string `koanf:"url" mapstructure:"url" yaml:"url"`
	Alias string `koanf:"alias" mapstructure:"alias" yaml:"alias"`
	Path  string `koanf:"path" mapstructure:"path" yaml:"path"`
}

type ServerConfig struct {
	Port                int    `koanf:"port" mapstructure:"port" yaml:"port"`
	ReadHeaderTimeoutMS int64  `koanf:"read_header_timeout_ms" mapstructure:"read_header_timeout_ms" yaml:"read_header_timeout_ms"`
	ShutdownTimeoutMS   int64  `koanf:"shutdown_timeout_ms" mapstructure:"shutdown_timeout_ms" yaml:"shutdown_timeout_ms"`
	MaxBodyBytes        int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	MetricsPath         string `koanf:"metrics_path" mapstructure:"metrics_path" yaml:"metrics_path"`
}

type RemoteConfig struct {
	BaseURL   string `koanf:"base_url" mapstructure:"base_url" yaml:"base_url"`
	ClientID  string `koanf:"client_id" mapstructure:"client_id" yaml:"client_id"`
	ClientKey string `koanf:"client_key" mapstructure:"client_key" yaml:"client_key"`
	TimeoutMS int64  `koanf:"timeout_ms" mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

type VerificationConfig struct {
	Enabled   bool  `koanf:"enabled" mapstructure:"enabled" yaml:"enabled"`
	TimeoutMS int64 `koanf:"timeout_ms" mapstructure:"timeout_ms" yaml:"timeout_ms"`
}

// LedgerConfig selects the optional registration ledger. An empty driver
// disables it.
type LedgerConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver" yaml:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn" yaml:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug" yaml:"debug"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level" yaml:"level"`
	Format string `koanf:"format" mapstructure:"format" yaml:"format"`
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name" yaml:"service_name"`
	Webhook      WebhookConfig      `koanf:"webhook" mapstructure:"webhook" yaml:"webhook"`
	Server       ServerConfig       `koanf:"server" mapstructure:"server" yaml:"server"`
	Remote       RemoteConfig       `koanf:"remote" mapstructure:"remote" yaml:"remote"`
	Verification VerificationConfig `koanf:"verification" mapstructure:"verification" yaml:"verification"`
	Ledger       LedgerConfig       `koanf:"ledger" mapstructure:"ledger" yaml:"ledger"`
	Log          LogConfig          `koanf:"log" mapstructure:"log" yaml:"log"`
}

const (
	DefaultAlias       = "example"
	DefaultPort        = 8080
	DefaultWebhookPath = "/"
	DefaultRemoteURL   = "https://api.schema.io"
)

func DefaultConfig() Config {
	return Config{
		ServiceName: "webhook-endpoint",
		Webhook: WebhookConfig{
			Alias: DefaultAlias,
			Path:  DefaultWebhookPath,
		},
		Server: ServerConfig{
			Port:                DefaultPort,
			ReadHeaderTimeoutMS: 5000,
			ShutdownTimeoutMS:   10000,
			MaxBodyBytes:        1 << 20,
			MetricsPath:         "/metrics",
		},
		Remote: RemoteConfig{
			BaseURL:   DefaultRemoteURL,
			TimeoutMS: 30000,
		},
		Verification: VerificationConfig{
			Enabled:   true,
			TimeoutMS: 10000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.Webhook.Alias) == "" {
		return fmt.Errorf("core: webhook.alias is required")
	}
	if !strings.HasPrefix(strings.TrimSpace(c.Webhook.Path), "/") {
		return fmt.Errorf("core: webhook.path must start with /")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("core: server.port %d is invalid", c.Server.Port)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("core: server.max_body_bytes must not be negative")
	}
	baseURL := strings.TrimSpace(c.Remote.BaseURL)
	if baseURL == "" {
		return fmt.Errorf("core: remote.base_url is required")
	}
	if parsed, err := url.Parse(baseURL); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: remote.base_url %q is invalid", baseURL)
	}
	switch strings.ToLower(strings.TrimSpace(c.Ledger.Driver)) {
	case "", "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("core: ledger.driver %q is not supported", c.Ledger.Driver)
	}
	if strings.TrimSpace(c.Ledger.Driver) != "" && strings.TrimSpace(c.Ledger.DSN) == "" {
		return fmt.Errorf("core: ledger.dsn is required when ledger.driver is set")
	}
	return nil
}

// ValidateForRegistration checks the settings needed to talk to the remote
// source. The callback url itself is left to the remote source to validate.
func (c Config) ValidateForRegistration() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return fmt.Errorf("core: webhook.url is required")
	}
	if strings.TrimSpace(c.Remote.ClientID) == "" || strings.TrimSpace(c.Remote.ClientKey) == "" {
		return fmt.Errorf("core: remote.client_id and remote.client_key are required")
	}
	return nil
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c ServerConfig) ReadHeaderTimeout() time.Duration {
	return millis(c.ReadHeaderTimeoutMS)
}

func (c ServerConfig) ShutdownTimeout() time.Duration {
	return millis(c.ShutdownTimeoutMS)
}

func (c RemoteConfig) Timeout() time.Duration {
	return millis(c.TimeoutMS)
}

func (c VerificationConfig) Timeout() time.Duration {
	return millis(c.TimeoutMS)
}

func millis(value int64) time.Duration {
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Millisecond
}
