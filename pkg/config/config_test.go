package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orgkit/orgkit/pkg/observability"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ORGKIT_DB_URL", "postgres://localhost/orgkit?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	assert.False(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Audit.DBEnabled)
	assert.Equal(t, 90, cfg.Audit.RetentionDays)
	assert.Equal(t, "0 3 * * *", cfg.Audit.RetentionSchedule)

	assert.Equal(t, observability.InfoLevel, cfg.Observability.LogLevel)
	assert.True(t, cfg.Observability.MetricsEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("ORGKIT_DB_URL", "postgres://localhost/orgkit?sslmode=disable")
	t.Setenv("ORGKIT_DB_DRIVER", "sqlite3")
	t.Setenv("ORGKIT_PORT", "8888")
	t.Setenv("ORGKIT_READ_TIMEOUT", "30s")
	t.Setenv("ORGKIT_REDIS_ENABLED", "true")
	t.Setenv("ORGKIT_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("ORGKIT_AUDIT_RETENTION_DAYS", "30")
	t.Setenv("ORGKIT_LOG_LEVEL", "debug")
	t.Setenv("ORGKIT_PERMISSION_MANIFEST_DIR", "/etc/orgkit/permissions")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://cache:6379/1", cfg.Redis.URL)
	assert.Equal(t, 30, cfg.Audit.RetentionDays)
	assert.Equal(t, observability.DebugLevel, cfg.Observability.LogLevel)
	assert.Equal(t, "/etc/orgkit/permissions", cfg.Permissions.ManifestDir)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server: ServerConfig{Port: "8080", HealthPort: "9090"},
			Database: DatabaseConfig{
				Driver: "postgres",
				URL:    "postgres://localhost/orgkit",
			},
			Audit: AuditConfig{RetentionDays: 90},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing port",
			mutate:  func(c *Config) { c.Server.Port = "" },
			wantErr: "server port is required",
		},
		{
			name:    "port collision",
			mutate:  func(c *Config) { c.Server.HealthPort = "8080" },
			wantErr: "must be different",
		},
		{
			name:    "bad driver",
			mutate:  func(c *Config) { c.Database.Driver = "oracle" },
			wantErr: "invalid database driver",
		},
		{
			name:    "missing database URL",
			mutate:  func(c *Config) { c.Database.URL = "" },
			wantErr: "database URL is required",
		},
		{
			name: "redis enabled without URL",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.URL = ""
			},
			wantErr: "redis URL is required",
		},
		{
			name:    "non-positive retention",
			mutate:  func(c *Config) { c.Audit.RetentionDays = 0 },
			wantErr: "retention days must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestAuditConfig_RetentionPolicy(t *testing.T) {
	policy := AuditConfig{RetentionDays: 30, RetentionSchedule: "0 4 * * *"}.RetentionPolicy()
	assert.Equal(t, 30, policy.RetentionDays)
	assert.Equal(t, "0 4 * * *", policy.Schedule)
}
