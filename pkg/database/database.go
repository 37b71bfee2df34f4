package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registered drivers; selection is by config.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Config holds connection settings for one pool
type Config struct {
	// Driver is "postgres" or "sqlite3"
	Driver string

	// URL is the connection string (a file path for sqlite3)
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns default connection settings
func DefaultConfig() Config {
	return Config{
		Driver:          "postgres",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// Open connects a pool with the configured driver and tuning, and verifies
// the connection with a ping.
func Open(ctx context.Context, config Config) (*sql.DB, error) {
	switch config.Driver {
	case "postgres", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", config.Driver)
	}
	if config.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open(config.Driver, config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if config.Driver == "sqlite3" {
		// sqlite serializes writers; a large pool only produces lock errors
		db.SetMaxOpenConns(1)
	} else {
		if config.MaxOpenConns > 0 {
			db.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			db.SetMaxIdleConns(config.MaxIdleConns)
		}
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenPair opens the tenant-scoped pool and the privileged pool. An empty
// privileged URL reuses the primary pool.
func OpenPair(ctx context.Context, config Config, privilegedURL string) (primary, privileged *sql.DB, err error) {
	primary, err = Open(ctx, config)
	if err != nil {
		return nil, nil, err
	}

	if privilegedURL == "" || privilegedURL == config.URL {
		return primary, primary, nil
	}

	privilegedConfig := config
	privilegedConfig.URL = privilegedURL

	privileged, err = Open(ctx, privilegedConfig)
	if err != nil {
		primary.Close()
		return nil, nil, err
	}

	return primary, privileged, nil
}
