// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "LANDMARKET"

// Load reads configs/config.yaml, merges configs/config.<env>.yaml on top and
// applies LANDMARKET_* environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	env := os.Getenv(envPrefix + "_APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)
	return v
}

// AutomaticEnv only resolves keys viper already knows about, so every leaf is
// bound up front to make env-only configuration work.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"app.name", "app.version", "app.environment",
		"api.base_url", "api.timeout", "api.token_header", "api.user_agent",
		"session.backend", "session.id", "session.key_prefix", "session.ttl",
		"database.redis.address", "database.redis.password", "database.redis.db",
		"browse.debounce_ms", "browse.default_type",
		"enquiry.enquiry_type",
		"logging.level", "logging.format", "logging.output",
		"metrics.enabled", "metrics.service_name",
	} {
		_ = v.BindEnv(key)
	}
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders left in string values. An unset
// variable expands to "" so applyDefaults can fill the field.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			if expanded := os.ExpandEnv(strVal); expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "landctl"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}

	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = "http://localhost:5000/api"
	}
	cfg.API.BaseURL = strings.TrimSuffix(cfg.API.BaseURL, "/")
	if cfg.API.Timeout == 0 {
		cfg.API.Timeout = 15000
	}
	if cfg.API.TokenHeader == "" {
		cfg.API.TokenHeader = "token"
	}
	if cfg.API.UserAgent == "" {
		cfg.API.UserAgent = cfg.App.Name
	}

	if cfg.Session.Backend == "" {
		cfg.Session.Backend = "memory"
	}
	if cfg.Session.KeyPrefix == "" {
		cfg.Session.KeyPrefix = "landmarket:session"
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = 24 * 60
	}

	if cfg.Browse.DebounceMS == 0 {
		cfg.Browse.DebounceMS = 400
	}
	if cfg.Browse.DefaultType == "" {
		cfg.Browse.DefaultType = "all"
	}

	if cfg.Enquiry.EnquiryType == "" {
		cfg.Enquiry.EnquiryType = "buy_interest"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stderr"
	}

	if cfg.Metrics.ServiceName == "" {
		cfg.Metrics.ServiceName = cfg.App.Name
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute http(s) URL, got %q", cfg.API.BaseURL)
	}
	if cfg.API.Timeout < 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for the redis session backend")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", cfg.Session.Backend)
	}
	if cfg.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must be positive")
	}

	if cfg.Browse.DebounceMS < 0 {
		return fmt.Errorf("browse.debounce_ms must be positive")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
