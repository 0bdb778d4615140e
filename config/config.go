package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Cache     CacheConfig
	Detection DetectionConfig
	Remote    RemoteConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StorageConfig selects where groups, products and feedback live.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // "memory", "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type          string        `mapstructure:"type"` // "memory" or "redis"
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// DetectionConfig holds the stock pass parameters and scheduler knobs.
type DetectionConfig struct {
	Sensitivity      float64       `mapstructure:"sensitivity"`
	MinConfidence    float64       `mapstructure:"min_confidence"`
	MinGroupSize     int           `mapstructure:"min_group_size"`
	MaxAnalysisTime  time.Duration `mapstructure:"max_analysis_time"`
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	RejectionLimit   int           `mapstructure:"rejection_limit"`
	PriceRatioLimit  float64       `mapstructure:"price_ratio_limit"`
	LargeGroupSize   int           `mapstructure:"large_group_size"`
}

// RemoteConfig holds the optional remote detection service settings. When
// disabled, passes run in-process.
type RemoteConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// Defaults returns the pass configuration applied when a run request leaves
// fields unset.
func (c DetectionConfig) Defaults() domain.DetectionConfig {
	return domain.DetectionConfig{
		Sensitivity:     c.Sensitivity,
		MinConfidence:   c.MinConfidence,
		MinGroupSize:    c.MinGroupSize,
		MaxAnalysisTime: c.MaxAnalysisTime,
	}
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/variant-engine/")

	// Environment variable settings
	v.SetEnvPrefix("SELLERDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile loads KEY=VALUE pairs from a .env file in the working
// directory, if one exists. Variables already present in the environment
// are never overridden.
func loadEnvFile() error {
	data, err := os.ReadFile(".env")
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*"})

	// Storage defaults
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.dsn", "")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.ttl", "1h")

	// Detection defaults
	v.SetDefault("detection.sensitivity", domain.DefaultSensitivity)
	v.SetDefault("detection.min_confidence", domain.DefaultMinConfidence)
	v.SetDefault("detection.min_group_size", domain.DefaultMinGroupSize)
	v.SetDefault("detection.max_analysis_time", "0s")
	v.SetDefault("detection.debounce_interval", "30s")
	v.SetDefault("detection.rejection_limit", domain.DefaultRejectionLimit)
	v.SetDefault("detection.price_ratio_limit", domain.DefaultPriceRatioLimit)
	v.SetDefault("detection.large_group_size", domain.DefaultLargeGroupSize)

	// Remote detection defaults
	v.SetDefault("remote.enabled", false)
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.requests_per_second", 5)
	v.SetDefault("remote.burst", 10)
}

// validate validates the configuration
func validate(config *Config) error {
	switch config.Storage.Driver {
	case "memory":
	case "sqlite", "postgres":
		if config.Storage.DSN == "" {
			return fmt.Errorf("storage DSN is required when driver is %q (set SELLERDESK_STORAGE_DSN)", config.Storage.Driver)
		}
	default:
		return fmt.Errorf("storage driver must be 'memory', 'sqlite' or 'postgres', got: %s", config.Storage.Driver)
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisAddr == "" {
		return fmt.Errorf("Redis address is required when cache type is 'redis'")
	}

	if s := config.Detection.Sensitivity; s < 0.1 || s > 1.0 {
		return fmt.Errorf("detection sensitivity must be between 0.1 and 1.0, got: %v", s)
	}
	if m := config.Detection.MinConfidence; m < 0.1 || m > 1.0 {
		return fmt.Errorf("detection min_confidence must be between 0.1 and 1.0, got: %v", m)
	}
	if config.Detection.MinGroupSize < 2 {
		return fmt.Errorf("detection min_group_size must be at least 2, got: %d", config.Detection.MinGroupSize)
	}
	if config.Detection.MaxAnalysisTime < 0 {
		return fmt.Errorf("detection max_analysis_time must not be negative")
	}

	if config.Remote.Enabled {
		if config.Remote.BaseURL == "" {
			return fmt.Errorf("remote base URL is required when remote detection is enabled")
		}
		if config.Remote.APIKey == "" {
			return fmt.Errorf("remote API key is required when remote detection is enabled (set SELLERDESK_REMOTE_API_KEY)")
		}
	}

	return nil
}
