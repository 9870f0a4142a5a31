package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Nutrition lookup sources
const (
	SourceAPI     = "api"
	SourceParquet = "parquet"
	SourceMock    = "mock"
)

// Config holds all configuration for recipebox
type Config struct {
	// Auth for the MCP HTTP transport
	AuthToken string

	// Backend collaborator
	BackendURL            string
	IngredientAPIUser     string
	IngredientAPIPassword string
	BackendTimeoutSeconds int
	BackendRetrySeconds   int

	// Nutrition lookup
	NutritionSource   string
	LookupConcurrency int

	// Dataset config (parquet source only)
	ParquetURL           string
	DataDir              string
	ParquetPath          string
	MetadataPath         string
	LockFile             string
	DisableRemoteCheck   bool
	IgnoreLock           bool
	RefreshIntervalHours int

	// Draft persistence
	DraftDBPath             string
	AutosaveIntervalSeconds int

	// Server
	Port        string
	Environment string

	// Telemetry
	TelemetryEnabled bool
	OTLPEndpoint     string
}

// Load reads configuration from defaults, an optional CONFIG_FILE (any format
// viper understands) and environment variables, in increasing precedence
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	if path := v.GetString("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	v.SetDefault("AUTH_TOKEN", "super-secret-token")
	v.SetDefault("BACKEND_URL", "http://127.0.0.1:8000/api")
	v.SetDefault("INGREDIENT_API_USER", "")
	v.SetDefault("INGREDIENT_API_PASSWORD", "")
	v.SetDefault("BACKEND_TIMEOUT_SECONDS", 10)
	v.SetDefault("BACKEND_RETRY_MAX_ELAPSED", 5)
	v.SetDefault("NUTRITION_SOURCE", SourceAPI)
	v.SetDefault("LOOKUP_CONCURRENCY", 8)
	v.SetDefault("PARQUET_URL", "https://huggingface.co/datasets/openfoodfacts/product-database/resolve/main/food.parquet")
	v.SetDefault("DATA_DIR", "./data")
	v.SetDefault("DISABLE_REMOTE_CHECK", false)
	v.SetDefault("IGNORE_LOCK", false)
	v.SetDefault("REFRESH_INTERVAL_HOURS", 24)
	v.SetDefault("AUTOSAVE_INTERVAL_SECONDS", 10)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	dataDir := v.GetString("DATA_DIR")
	v.SetDefault("PARQUET_PATH", filepath.Join(dataDir, "food.parquet"))
	v.SetDefault("METADATA_PATH", filepath.Join(dataDir, "metadata.json"))
	v.SetDefault("LOCK_FILE", filepath.Join(dataDir, "refresh.lock"))
	v.SetDefault("DRAFT_DB_PATH", filepath.Join(dataDir, "draft.db"))

	source := strings.ToLower(strings.TrimSpace(v.GetString("NUTRITION_SOURCE")))
	switch source {
	case SourceAPI, SourceParquet, SourceMock:
	default:
		return nil, fmt.Errorf("unknown NUTRITION_SOURCE %q (want %s, %s or %s)", source, SourceAPI, SourceParquet, SourceMock)
	}

	return &Config{
		AuthToken:               v.GetString("AUTH_TOKEN"),
		BackendURL:              strings.TrimRight(v.GetString("BACKEND_URL"), "/"),
		IngredientAPIUser:       v.GetString("INGREDIENT_API_USER"),
		IngredientAPIPassword:   v.GetString("INGREDIENT_API_PASSWORD"),
		BackendTimeoutSeconds:   v.GetInt("BACKEND_TIMEOUT_SECONDS"),
		BackendRetrySeconds:     v.GetInt("BACKEND_RETRY_MAX_ELAPSED"),
		NutritionSource:         source,
		LookupConcurrency:       v.GetInt("LOOKUP_CONCURRENCY"),
		ParquetURL:              v.GetString("PARQUET_URL"),
		DataDir:                 dataDir,
		ParquetPath:             v.GetString("PARQUET_PATH"),
		MetadataPath:            v.GetString("METADATA_PATH"),
		LockFile:                v.GetString("LOCK_FILE"),
		DisableRemoteCheck:      v.GetBool("DISABLE_REMOTE_CHECK"),
		IgnoreLock:              v.GetBool("IGNORE_LOCK"),
		RefreshIntervalHours:    v.GetInt("REFRESH_INTERVAL_HOURS"),
		DraftDBPath:             v.GetString("DRAFT_DB_PATH"),
		AutosaveIntervalSeconds: v.GetInt("AUTOSAVE_INTERVAL_SECONDS"),
		Port:                    v.GetString("PORT"),
		Environment:             v.GetString("ENVIRONMENT"),
		TelemetryEnabled:        v.GetBool("OTEL_ENABLED"),
		OTLPEndpoint:            v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}, nil
}

// BackendTimeout returns the per-request timeout for backend calls
func (c *Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// BackendRetryMaxElapsed bounds how long transient backend failures are retried.
// Zero disables retries.
func (c *Config) BackendRetryMaxElapsed() time.Duration {
	return time.Duration(c.BackendRetrySeconds) * time.Second
}

// RefreshInterval returns how often the parquet dataset is re-checked. Zero
// disables the background refresh.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshIntervalHours <= 0 {
		return 0
	}
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

// AutosaveInterval returns the draft autosave period. Zero disables the timer.
func (c *Config) AutosaveInterval() time.Duration {
	if c.AutosaveIntervalSeconds <= 0 {
		return 0
	}
	return time.Duration(c.AutosaveIntervalSeconds) * time.Second
}

// IsDevelopment reports whether detailed errors may be returned to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
