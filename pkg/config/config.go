package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/orgkit/orgkit/pkg/audit"
	"github.com/orgkit/orgkit/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration (broadcast pub/sub)
	Redis RedisConfig

	// Permission manifest configuration
	Permissions PermissionsConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds database settings
type DatabaseConfig struct {
	// Driver is "postgres" or "sqlite3"
	Driver string

	// URL is the tenant-scoped connection string
	URL string

	// PrivilegedURL is the RLS-bypassing connection used only for actor
	// resolution; empty falls back to URL.
	PrivilegedURL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis settings for the broadcast publisher
type RedisConfig struct {
	// Enabled wires the broadcast publisher; disabled leaves broadcasts
	// as no-ops.
	Enabled bool

	URL      string
	Password string
	DB       int
	PoolSize int
}

// PermissionsConfig holds permission manifest settings
type PermissionsConfig struct {
	// ManifestDir holds plugin permission manifests; empty disables the
	// watcher.
	ManifestDir string

	// WatchEnabled reloads the registry when manifests change on disk
	WatchEnabled bool
}

// AuditConfig holds audit sink settings
type AuditConfig struct {
	// DBEnabled writes audit events to the audit_log table
	DBEnabled bool

	// FilePath appends audit events as JSON lines; empty disables the
	// file sink.
	FilePath string

	RetentionDays     int
	RetentionSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	ServiceName    string
	ServiceVersion string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Permissions:   loadPermissionsConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ORGKIT_HOST", "0.0.0.0"),
		Port:            getEnv("ORGKIT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ORGKIT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ORGKIT_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("ORGKIT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ORGKIT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ORGKIT_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads database configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          getEnv("ORGKIT_DB_DRIVER", "postgres"),
		URL:             getEnv("ORGKIT_DB_URL", ""),
		PrivilegedURL:   getEnv("ORGKIT_DB_PRIVILEGED_URL", ""),
		MaxOpenConns:    getEnvInt("ORGKIT_DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvInt("ORGKIT_DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("ORGKIT_DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:  getEnvBool("ORGKIT_REDIS_ENABLED", false),
		URL:      getEnv("ORGKIT_REDIS_URL", "redis://localhost:6379/0"),
		Password: getEnv("ORGKIT_REDIS_PASSWORD", ""),
		DB:       getEnvInt("ORGKIT_REDIS_DB", -1),
		PoolSize: getEnvInt("ORGKIT_REDIS_POOL_SIZE", 0),
	}
}

// loadPermissionsConfig loads permission manifest configuration from environment
func loadPermissionsConfig() PermissionsConfig {
	return PermissionsConfig{
		ManifestDir:  getEnv("ORGKIT_PERMISSION_MANIFEST_DIR", ""),
		WatchEnabled: getEnvBool("ORGKIT_PERMISSION_WATCH_ENABLED", true),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	defaults := audit.DefaultRetentionPolicy()
	return AuditConfig{
		DBEnabled:         getEnvBool("ORGKIT_AUDIT_DB_ENABLED", true),
		FilePath:          getEnv("ORGKIT_AUDIT_FILE_PATH", ""),
		RetentionDays:     getEnvInt("ORGKIT_AUDIT_RETENTION_DAYS", defaults.RetentionDays),
		RetentionSchedule: getEnv("ORGKIT_AUDIT_RETENTION_SCHEDULE", defaults.Schedule),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       observability.ParseLogLevel(getEnv("ORGKIT_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("ORGKIT_METRICS_ENABLED", true),
		ServiceName:    getEnv("ORGKIT_SERVICE_NAME", "orgkit"),
		ServiceVersion: getEnv("ORGKIT_SERVICE_VERSION", "1.0.0"),
	}
}

// RetentionPolicy converts the audit settings into a retention policy
func (c AuditConfig) RetentionPolicy() audit.RetentionPolicy {
	return audit.RetentionPolicy{
		RetentionDays: c.RetentionDays,
		Schedule:      c.RetentionSchedule,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Database.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Database.Driver)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required when redis is enabled")
	}

	if c.Audit.RetentionDays <= 0 {
		return fmt.Errorf("audit retention days must be positive")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
