package config

import (
	"os"
	"testing"
	"time"

	"github.com/sellerdesk/variant-engine/internal/domain"
)

func TestLoad(t *testing.T) {
	// Clean up environment before tests
	cleanupEnv := func() {
		os.Unsetenv("SELLERDESK_SERVER_PORT")
		os.Unsetenv("SELLERDESK_SERVER_ENVIRONMENT")
		os.Unsetenv("SELLERDESK_SERVER_ALLOWED_ORIGINS")
		os.Unsetenv("SELLERDESK_STORAGE_DRIVER")
		os.Unsetenv("SELLERDESK_STORAGE_DSN")
		os.Unsetenv("SELLERDESK_CACHE_TYPE")
		os.Unsetenv("SELLERDESK_CACHE_REDIS_ADDR")
		os.Unsetenv("SELLERDESK_CACHE_TTL")
		os.Unsetenv("SELLERDESK_DETECTION_SENSITIVITY")
		os.Unsetenv("SELLERDESK_DETECTION_MIN_CONFIDENCE")
		os.Unsetenv("SELLERDESK_DETECTION_MIN_GROUP_SIZE")
		os.Unsetenv("SELLERDESK_DETECTION_DEBOUNCE_INTERVAL")
		os.Unsetenv("SELLERDESK_REMOTE_ENABLED")
		os.Unsetenv("SELLERDESK_REMOTE_BASE_URL")
		os.Unsetenv("SELLERDESK_REMOTE_API_KEY")
		os.Unsetenv("SELLERDESK_REMOTE_TIMEOUT")
	}

	t.Run("loads with defaults when no env vars set", func(t *testing.T) {
		cleanupEnv()
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		// Check defaults
		if cfg.Server.Port != "8080" {
			t.Errorf("Server.Port = %s, want 8080", cfg.Server.Port)
		}
		if cfg.Server.Environment != "development" {
			t.Errorf("Server.Environment = %s, want development", cfg.Server.Environment)
		}
		if cfg.Storage.Driver != "memory" {
			t.Errorf("Storage.Driver = %s, want memory", cfg.Storage.Driver)
		}
		if cfg.Cache.Type != "memory" {
			t.Errorf("Cache.Type = %s, want memory", cfg.Cache.Type)
		}
		if cfg.Cache.TTL != time.Hour {
			t.Errorf("Cache.TTL = %v, want 1h", cfg.Cache.TTL)
		}
		if cfg.Detection.Sensitivity != domain.DefaultSensitivity {
			t.Errorf("Detection.Sensitivity = %v, want %v", cfg.Detection.Sensitivity, domain.DefaultSensitivity)
		}
		if cfg.Detection.MinConfidence != domain.DefaultMinConfidence {
			t.Errorf("Detection.MinConfidence = %v, want %v", cfg.Detection.MinConfidence, domain.DefaultMinConfidence)
		}
		if cfg.Detection.MinGroupSize != domain.DefaultMinGroupSize {
			t.Errorf("Detection.MinGroupSize = %d, want %d", cfg.Detection.MinGroupSize, domain.DefaultMinGroupSize)
		}
		if cfg.Detection.MaxAnalysisTime != 0 {
			t.Errorf("Detection.MaxAnalysisTime = %v, want 0 (unbounded)", cfg.Detection.MaxAnalysisTime)
		}
		if cfg.Detection.DebounceInterval != 30*time.Second {
			t.Errorf("Detection.DebounceInterval = %v, want 30s", cfg.Detection.DebounceInterval)
		}
		if cfg.Detection.RejectionLimit != domain.DefaultRejectionLimit {
			t.Errorf("Detection.RejectionLimit = %d, want %d", cfg.Detection.RejectionLimit, domain.DefaultRejectionLimit)
		}
		if cfg.Detection.PriceRatioLimit != domain.DefaultPriceRatioLimit {
			t.Errorf("Detection.PriceRatioLimit = %v, want %v", cfg.Detection.PriceRatioLimit, domain.DefaultPriceRatioLimit)
		}
		if cfg.Detection.LargeGroupSize != domain.DefaultLargeGroupSize {
			t.Errorf("Detection.LargeGroupSize = %d, want %d", cfg.Detection.LargeGroupSize, domain.DefaultLargeGroupSize)
		}
		if cfg.Remote.Enabled {
			t.Error("Remote.Enabled = true, want false")
		}
		if cfg.Remote.Timeout != 30*time.Second {
			t.Errorf("Remote.Timeout = %v, want 30s", cfg.Remote.Timeout)
		}
	})

	t.Run("loads custom values from environment variables", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_SERVER_PORT", "9090")
		os.Setenv("SELLERDESK_SERVER_ENVIRONMENT", "production")
		os.Setenv("SELLERDESK_SERVER_ALLOWED_ORIGINS", "https://backoffice.sellerdesk.io,https://staging.sellerdesk.io")
		os.Setenv("SELLERDESK_STORAGE_DRIVER", "sqlite")
		os.Setenv("SELLERDESK_STORAGE_DSN", "file:variants.db")
		os.Setenv("SELLERDESK_CACHE_TYPE", "redis")
		os.Setenv("SELLERDESK_CACHE_REDIS_ADDR", "redis:6379")
		os.Setenv("SELLERDESK_CACHE_TTL", "24h")
		os.Setenv("SELLERDESK_DETECTION_SENSITIVITY", "0.8")
		os.Setenv("SELLERDESK_DETECTION_MIN_CONFIDENCE", "0.7")
		os.Setenv("SELLERDESK_DETECTION_MIN_GROUP_SIZE", "3")
		os.Setenv("SELLERDESK_DETECTION_DEBOUNCE_INTERVAL", "10s")
		os.Setenv("SELLERDESK_REMOTE_ENABLED", "true")
		os.Setenv("SELLERDESK_REMOTE_BASE_URL", "https://detect.sellerdesk.io")
		os.Setenv("SELLERDESK_REMOTE_API_KEY", "custom-api-key")
		os.Setenv("SELLERDESK_REMOTE_TIMEOUT", "5s")
		defer cleanupEnv()

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() error = %v, want nil", err)
		}

		if cfg.Server.Port != "9090" {
			t.Errorf("Server.Port = %s, want 9090", cfg.Server.Port)
		}
		if cfg.Server.Environment != "production" {
			t.Errorf("Server.Environment = %s, want production", cfg.Server.Environment)
		}
		if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[0] != "https://backoffice.sellerdesk.io" {
			t.Errorf("Server.AllowedOrigins = %v, want two sellerdesk origins", cfg.Server.AllowedOrigins)
		}
		if cfg.Storage.Driver != "sqlite" || cfg.Storage.DSN != "file:variants.db" {
			t.Errorf("Storage = %+v, want sqlite with file:variants.db", cfg.Storage)
		}
		if cfg.Cache.Type != "redis" {
			t.Errorf("Cache.Type = %s, want redis", cfg.Cache.Type)
		}
		if cfg.Cache.RedisAddr != "redis:6379" {
			t.Errorf("Cache.RedisAddr = %s, want redis:6379", cfg.Cache.RedisAddr)
		}
		if cfg.Cache.TTL != 24*time.Hour {
			t.Errorf("Cache.TTL = %v, want 24h", cfg.Cache.TTL)
		}
		if cfg.Detection.Sensitivity != 0.8 {
			t.Errorf("Detection.Sensitivity = %v, want 0.8", cfg.Detection.Sensitivity)
		}
		if cfg.Detection.MinConfidence != 0.7 {
			t.Errorf("Detection.MinConfidence = %v, want 0.7", cfg.Detection.MinConfidence)
		}
		if cfg.Detection.MinGroupSize != 3 {
			t.Errorf("Detection.MinGroupSize = %d, want 3", cfg.Detection.MinGroupSize)
		}
		if cfg.Detection.DebounceInterval != 10*time.Second {
			t.Errorf("Detection.DebounceInterval = %v, want 10s", cfg.Detection.DebounceInterval)
		}
		if !cfg.Remote.Enabled {
			t.Error("Remote.Enabled = false, want true")
		}
		if cfg.Remote.BaseURL != "https://detect.sellerdesk.io" {
			t.Errorf("Remote.BaseURL = %s, want https://detect.sellerdesk.io", cfg.Remote.BaseURL)
		}
		if cfg.Remote.APIKey != "custom-api-key" {
			t.Errorf("Remote.APIKey = %s, want custom-api-key", cfg.Remote.APIKey)
		}
		if cfg.Remote.Timeout != 5*time.Second {
			t.Errorf("Remote.Timeout = %v, want 5s", cfg.Remote.Timeout)
		}
	})

	t.Run("fails validation for invalid storage driver", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_STORAGE_DRIVER", "mongodb")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid storage driver")
		}
	})

	t.Run("fails validation when DSN missing for sqlite storage", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_STORAGE_DRIVER", "sqlite")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing DSN")
		}
	})

	t.Run("fails validation for invalid cache type", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_CACHE_TYPE", "invalid")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for invalid cache type")
		}
	})

	t.Run("fails validation for out-of-range sensitivity", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_DETECTION_SENSITIVITY", "1.5")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for out-of-range sensitivity")
		}
	})

	t.Run("fails validation when remote enabled without API key", func(t *testing.T) {
		cleanupEnv()
		os.Setenv("SELLERDESK_REMOTE_ENABLED", "true")
		os.Setenv("SELLERDESK_REMOTE_BASE_URL", "https://detect.sellerdesk.io")
		defer cleanupEnv()

		_, err := Load()
		if err == nil {
			t.Error("Load() error = nil, want error for missing remote API key")
		}
	})
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("returns nil when .env file doesn't exist", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		err := loadEnvFile()
		if err != nil {
			t.Errorf("loadEnvFile() error = %v, want nil when file doesn't exist", err)
		}
	})

	t.Run("loads variables from .env file", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file
		envContent := `
# Comment line
TEST_VAR_1=value1
TEST_VAR_2=value2

# Another comment
TEST_VAR_3=value3
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		// Clear any existing values
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_VAR_1") != "value1" {
			t.Errorf("TEST_VAR_1 = %s, want value1", os.Getenv("TEST_VAR_1"))
		}
		if os.Getenv("TEST_VAR_2") != "value2" {
			t.Errorf("TEST_VAR_2 = %s, want value2", os.Getenv("TEST_VAR_2"))
		}
		if os.Getenv("TEST_VAR_3") != "value3" {
			t.Errorf("TEST_VAR_3 = %s, want value3", os.Getenv("TEST_VAR_3"))
		}

		// Cleanup
		os.Unsetenv("TEST_VAR_1")
		os.Unsetenv("TEST_VAR_2")
		os.Unsetenv("TEST_VAR_3")
	})

	t.Run("skips empty lines and comments", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Create .env file with various formats
		envContent := `
# This is a comment
   # This is also a comment

TEST_SKIP_1=value1

TEST_SKIP_2=value2
# TEST_COMMENTED=should_not_load
`
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
		os.Unsetenv("TEST_COMMENTED")

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		if os.Getenv("TEST_SKIP_1") != "value1" {
			t.Errorf("TEST_SKIP_1 not loaded correctly")
		}
		if os.Getenv("TEST_SKIP_2") != "value2" {
			t.Errorf("TEST_SKIP_2 not loaded correctly")
		}
		if os.Getenv("TEST_COMMENTED") != "" {
			t.Errorf("TEST_COMMENTED should not be loaded from comment")
		}

		os.Unsetenv("TEST_SKIP_1")
		os.Unsetenv("TEST_SKIP_2")
	})

	t.Run("doesn't override existing environment variables", func(t *testing.T) {
		// Save current directory
		originalDir, _ := os.Getwd()
		defer os.Chdir(originalDir)

		// Create temp directory
		tempDir := t.TempDir()
		os.Chdir(tempDir)

		// Set existing env var
		os.Setenv("TEST_OVERRIDE", "existing-value")

		// Create .env file that tries to override
		envContent := "TEST_OVERRIDE=new-value"
		err := os.WriteFile(".env", []byte(envContent), 0644)
		if err != nil {
			t.Fatalf("Failed to create test .env file: %v", err)
		}

		err = loadEnvFile()
		if err != nil {
			t.Fatalf("loadEnvFile() error = %v, want nil", err)
		}

		// Should still have original value
		if os.Getenv("TEST_OVERRIDE") != "existing-value" {
			t.Errorf("TEST_OVERRIDE = %s, want existing-value (should not override)", os.Getenv("TEST_OVERRIDE"))
		}

		os.Unsetenv("TEST_OVERRIDE")
	})
}

func TestValidate(t *testing.T) {
	validConfig := func() *Config {
		return &Config{
			Server: ServerConfig{
				Port:        "8080",
				Environment: "test",
			},
			Storage: StorageConfig{Driver: "memory"},
			Cache:   CacheConfig{Type: "memory"},
			Detection: DetectionConfig{
				Sensitivity:   domain.DefaultSensitivity,
				MinConfidence: domain.DefaultMinConfidence,
				MinGroupSize:  domain.DefaultMinGroupSize,
			},
		}
	}

	t.Run("validates successfully with all required fields", func(t *testing.T) {
		cfg := validConfig()

		err := validate(cfg)
		if err != nil {
			t.Errorf("validate() error = %v, want nil", err)
		}
	})

	t.Run("fails for invalid storage driver", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage.Driver = "cassandra"

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for invalid storage driver")
		}
	})

	t.Run("validates postgres storage with DSN", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage = StorageConfig{
			Driver: "postgres",
			DSN:    "host=localhost user=variants dbname=variants",
		}

		err := validate(cfg)
		if err != nil {
			t.Errorf("validate() error = %v, want nil for valid postgres config", err)
		}
	})

	t.Run("fails for postgres storage without DSN", func(t *testing.T) {
		cfg := validConfig()
		cfg.Storage = StorageConfig{Driver: "postgres"}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for postgres without DSN")
		}
	})

	t.Run("fails for invalid cache type", func(t *testing.T) {
		cfg := validConfig()
		cfg.Cache.Type = "invalid-type"

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for invalid cache type")
		}
	})

	t.Run("validates redis cache type with address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Cache = CacheConfig{
			Type:      "redis",
			RedisAddr: "localhost:6379",
		}

		err := validate(cfg)
		if err != nil {
			t.Errorf("validate() error = %v, want nil for valid redis config", err)
		}
	})

	t.Run("fails for redis cache without address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Cache = CacheConfig{Type: "redis"}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for redis without address")
		}
	})

	t.Run("fails for min group size below two", func(t *testing.T) {
		cfg := validConfig()
		cfg.Detection.MinGroupSize = 1

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for min group size below two")
		}
	})

	t.Run("fails for negative analysis budget", func(t *testing.T) {
		cfg := validConfig()
		cfg.Detection.MaxAnalysisTime = -time.Second

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for negative analysis budget")
		}
	})

	t.Run("fails when remote enabled without base URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.Remote = RemoteConfig{Enabled: true, APIKey: "key"}

		err := validate(cfg)
		if err == nil {
			t.Error("validate() error = nil, want error for remote without base URL")
		}
	})
}
