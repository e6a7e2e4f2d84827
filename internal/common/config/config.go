// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	API      APIConfig      `mapstructure:"api"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
	Browse   BrowseConfig   `mapstructure:"browse"`
	Enquiry  EnquiryConfig  `mapstructure:"enquiry"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// APIConfig describes the marketplace REST backend.
type APIConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
	TokenHeader string `mapstructure:"token_header"`
	UserAgent   string `mapstructure:"user_agent"`
}

// SessionConfig selects where the login session is persisted.
type SessionConfig struct {
	Backend   string `mapstructure:"backend"` // memory | redis
	ID        string `mapstructure:"id"`      // generated when empty
	KeyPrefix string `mapstructure:"key_prefix"`
	TTL       int    `mapstructure:"ttl"` // minutes
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BrowseConfig holds listing query engine settings.
type BrowseConfig struct {
	DebounceMS  int    `mapstructure:"debounce_ms"`
	DefaultType string `mapstructure:"default_type"`
}

// EnquiryConfig holds enquiry flow settings.
type EnquiryConfig struct {
	EnquiryType string `mapstructure:"enquiry_type"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}
