// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables (optionally seeded from a
// .env file) with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMS      SMSConfig
	Links    LinkConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on. PORT is honoured for platform hosts.
	Port int `env:"SERVER_PORT" envAlt:"PORT" default:"8000"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`

	// MetricsEnabled exposes Prometheus metrics on /metrics (default: true)
	MetricsEnabled bool `env:"METRICS_ENABLED" default:"true"`
}

// UploadConfig holds spreadsheet upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 16MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"16777216"`

	// MaxConcurrent is the maximum number of parallel uploads (default: 5)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long to wait for an upload slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// TempDir holds uploads while they are parsed. Empty means os.TempDir.
	TempDir string `env:"UPLOAD_TEMP_DIR"`

	// Timeout bounds a single upload from receipt to response (default: 2m).
	// Uploads are not subject to SERVER_REQUEST_TIMEOUT.
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`

	// AllowedExtensions narrows the accepted file types (default: .csv,.xlsx,.xls)
	AllowedExtensions []string `env:"UPLOAD_ALLOWED_EXTENSIONS" default:".csv,.xlsx,.xls"`
}

// Allows reports whether ext (with its leading dot) is an accepted file type.
func (c UploadConfig) Allows(ext string) bool {
	for _, e := range c.AllowedExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// RateLimitConfig holds per-IP request limits.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for the upload endpoint (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`

	// SendLimit is requests per minute for the SMS send endpoint (default: 5)
	SendLimit int `env:"RATE_LIMIT_SEND" default:"5"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// APIKeys is a comma-separated list of accepted X-API-Key values
	APIKeys []string `env:"API_KEYS"`

	// RequireAPIKey rejects API requests without a valid key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// ConsentRequired blocks SMS sends until consent is recorded (default: true)
	ConsentRequired bool `env:"SMS_CONSENT_REQUIRED" default:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// DatabaseConfig holds the optional audit database settings.
// Upload auditing is disabled when URL is empty.
type DatabaseConfig struct {
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RedisConfig holds the optional session store settings.
// Sessions are kept in memory when URL is empty.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`

	// SessionTTL is how long parsed uploads stay available (default: 24h)
	SessionTTL time.Duration `env:"SESSION_TTL" default:"24h"`

	// KeyPrefix namespaces session keys (default: outreach:)
	KeyPrefix string `env:"REDIS_KEY_PREFIX" default:"outreach:"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// SMSConfig holds Twilio dispatch settings.
type SMSConfig struct {
	AccountSID string `env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `env:"TWILIO_PHONE_NUMBER"`

	// BaseURL is the Twilio REST endpoint (default: https://api.twilio.com)
	BaseURL string `env:"TWILIO_BASE_URL" default:"https://api.twilio.com"`

	// RatePerSecond is messages sent per second (default: 1)
	RatePerSecond int `env:"SMS_RATE_LIMIT" default:"1"`

	// MaxLength is the longest accepted body in characters (default: 1600)
	MaxLength int `env:"SMS_MAX_LENGTH" default:"1600"`

	// BatchSize is messages per dispatch batch (default: 50)
	BatchSize int `env:"SMS_BATCH_SIZE" default:"50"`

	// MaxAttempts is attempts per message including the first (default: 3)
	MaxAttempts int `env:"SMS_MAX_ATTEMPTS" default:"3"`

	// Timeout bounds each provider call (default: 10s)
	Timeout time.Duration `env:"SMS_TIMEOUT" default:"10s"`

	// SendTimeout bounds one bulk send request. Sends whose pacing alone would
	// exceed it are rejected up front. Not subject to SERVER_REQUEST_TIMEOUT (default: 10m)
	SendTimeout time.Duration `env:"SMS_SEND_TIMEOUT" default:"10m"`

	// UKMobileOnly restricts raw recipients to UK mobile numbers (default: false)
	UKMobileOnly bool `env:"SMS_UK_MOBILE_ONLY" default:"false"`
}

// Configured reports whether Twilio credentials are present.
func (c SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// LinkConfig holds click-to-chat link settings.
type LinkConfig struct {
	// ChatBase is the deeplink prefix (default: https://wa.me/)
	ChatBase string `env:"CHAT_LINK_BASE" default:"https://wa.me/"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
