// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Dedup mode names accepted in configuration. The engine turns these into its
// closed policy variant; nothing else reads them.
const (
	DedupModePermanentBlock = "permanent_block"
	DedupModeAllowImmediate = "allow_immediate"
	DedupModeCooldown       = "cooldown"
)

// Orphan repair strategies for the consistency auditor.
const (
	OrphanRepairArchive = "archive"
	OrphanRepairDelete  = "delete"
)

// Supported database drivers.
const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string `mapstructure:"PORT"`
	Env            string `mapstructure:"APP_ENV"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	AdminJWTSecret string `mapstructure:"ADMIN_JWT_SECRET"`

	DBDriver   string `mapstructure:"DB_DRIVER"`
	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     string `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBSSLMode  string `mapstructure:"DB_SSLMODE"`
	SQLitePath string `mapstructure:"DB_SQLITE_PATH"`

	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`

	RedisURL string `mapstructure:"REDIS_URL"`

	FeatureFlags string `mapstructure:"FEATURE_FLAGS"`

	MaxActive           int     `mapstructure:"MAX_ACTIVE"`
	DedupMode           string  `mapstructure:"DEDUP_MODE"`
	CooldownDays        int     `mapstructure:"REREQUEST_COOLDOWN_DAYS"`
	OrphanRepair        string  `mapstructure:"ORPHAN_REPAIR"`
	LockTimeoutSeconds  int     `mapstructure:"LOCK_TIMEOUT_SECONDS"`
	IdentityAutoRepair  bool    `mapstructure:"IDENTITY_AUTO_REPAIR"`
	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	TracingOTLPEndpoint string  `mapstructure:"TRACING_OTLP_ENDPOINT"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// Initial read to get APP_ENV if set in base config
	// We intentionally ignore this error as the config file may not exist yet
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	// Set default values for development
	viper.SetDefault("PORT", "8460")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("ADMIN_JWT_SECRET", "change-me-in-production")
	viper.SetDefault("DB_DRIVER", "postgres")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "marquee")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SQLITE_PATH", "marquee.db")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("FEATURE_FLAGS", "requester_board_cache=on")
	viper.SetDefault("MAX_ACTIVE", 5)
	viper.SetDefault("DEDUP_MODE", DedupModePermanentBlock)
	viper.SetDefault("REREQUEST_COOLDOWN_DAYS", 0)
	viper.SetDefault("ORPHAN_REPAIR", OrphanRepairArchive)
	viper.SetDefault("LOCK_TIMEOUT_SECONDS", 30)
	viper.SetDefault("IDENTITY_AUTO_REPAIR", false)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("TRACING_OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	switch c.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver)
	}

	if c.MaxActive <= 0 {
		return errors.New("MAX_ACTIVE must be positive")
	}

	switch c.DedupMode {
	case DedupModePermanentBlock, DedupModeAllowImmediate:
		if c.CooldownDays != 0 {
			return fmt.Errorf("REREQUEST_COOLDOWN_DAYS is only valid with DEDUP_MODE=%s", DedupModeCooldown)
		}
	case DedupModeCooldown:
		if c.CooldownDays <= 0 {
			return errors.New("REREQUEST_COOLDOWN_DAYS must be positive when DEDUP_MODE=cooldown")
		}
	default:
		return fmt.Errorf("DEDUP_MODE must be one of %s, %s, %s", DedupModePermanentBlock, DedupModeAllowImmediate, DedupModeCooldown)
	}

	if c.OrphanRepair != OrphanRepairArchive && c.OrphanRepair != OrphanRepairDelete {
		return fmt.Errorf("ORPHAN_REPAIR must be %s or %s", OrphanRepairArchive, OrphanRepairDelete)
	}

	if c.LockTimeoutSeconds <= 0 {
		return errors.New("LOCK_TIMEOUT_SECONDS must be positive")
	}

	isProduction := c.Env == "production" || c.Env == "prod"
	if isProduction && c.AdminJWTSecret == "change-me-in-production" {
		return errors.New("ADMIN_JWT_SECRET must be set to a real secret in production")
	}

	return nil
}
