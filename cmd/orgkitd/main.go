package main

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/orgkit/orgkit/pkg/audit"
	"github.com/orgkit/orgkit/pkg/broadcast"
	"github.com/orgkit/orgkit/pkg/config"
	"github.com/orgkit/orgkit/pkg/database"
	"github.com/orgkit/orgkit/pkg/httputil"
	"github.com/orgkit/orgkit/pkg/middleware"
	"github.com/orgkit/orgkit/pkg/observability"
	"github.com/orgkit/orgkit/pkg/permissions"
	"github.com/orgkit/orgkit/pkg/rbac"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx := context.Background()

	// Database pools: a tenant-scoped pool for the service and a privileged
	// pool for actor resolution.
	db, privilegedDB, err := database.OpenPair(ctx, database.Config{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, cfg.Database.PrivilegedURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if privilegedDB != db {
		defer privilegedDB.Close()
	}
	logger.WithField("driver", cfg.Database.Driver).Info("database connected")

	// Permission registry, optionally extended by on-disk manifests.
	registry := permissions.CoreRegistry()
	var watcher *permissions.Watcher

	metricsRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(metricsRegistry)
	metrics.RegistryPermissions.Set(float64(registry.Metadata.TotalPermissions))

	if cfg.Permissions.ManifestDir != "" && cfg.Permissions.WatchEnabled {
		watcher, err = permissions.NewWatcher(
			cfg.Permissions.ManifestDir,
			registry,
			permissions.DefaultMergeOptions(),
			func(result *permissions.MergeResult) {
				metrics.RegistryReloadsTotal.WithLabelValues("success").Inc()
				metrics.RegistryPermissions.Set(float64(result.Registry.Metadata.TotalPermissions))
				logger.WithField("permissions", result.Registry.Metadata.TotalPermissions).Info("permission registry reloaded")
			},
			func(err error) {
				metrics.RegistryReloadsTotal.WithLabelValues("failure").Inc()
				logger.WithError(err).Error("permission registry reload failed")
			},
		)
		if err != nil {
			return err
		}
		defer watcher.Close()
		registry = watcher.Current()
		logger.WithField("dir", cfg.Permissions.ManifestDir).Info("watching permission manifests")
	}

	// Audit sinks.
	var sinks []audit.Logger
	var dbSink *audit.DBLogger
	if cfg.Audit.DBEnabled {
		dbSink, err = audit.NewDBLogger(db)
		if err != nil {
			return err
		}
		sinks = append(sinks, dbSink)
	}
	if cfg.Audit.FilePath != "" {
		fileSink, err := audit.NewFileLogger(audit.FileLoggerConfig{Path: cfg.Audit.FilePath})
		if err != nil {
			return err
		}
		defer fileSink.Close()
		sinks = append(sinks, fileSink)
	}

	var auditLogger audit.Logger = audit.NoOpLogger{}
	if len(sinks) == 1 {
		auditLogger = sinks[0]
	} else if len(sinks) > 1 {
		auditLogger = audit.NewMultiLogger(sinks...)
	}

	var sweeper *audit.RetentionSweeper
	if dbSink != nil {
		sweeper = audit.NewRetentionSweeper(dbSink, cfg.Audit.RetentionPolicy(), logger)
		if err := sweeper.Start(); err != nil {
			return err
		}
		defer sweeper.Stop()
	}

	// Broadcast publisher.
	var publisher *broadcast.Publisher
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		publisher, err = broadcast.NewPublisher(broadcast.Config{
			RedisURL:       cfg.Redis.URL,
			Password:       cfg.Redis.Password,
			DB:             cfg.Redis.DB,
			PoolSize:       cfg.Redis.PoolSize,
			MaxConcurrency: broadcast.DefaultConfig().MaxConcurrency,
		}, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		redisClient = redis.NewClient(mustParseRedisURL(cfg.Redis.URL))
		defer redisClient.Close()
		logger.Info("broadcast publisher connected")
	}

	hooks := rbac.NewLiveHooks(rbac.LiveHooksConfig{
		Audit:     auditLogger,
		Publisher: publisher,
		Metrics:   metrics,
		Tracer:    observability.NewTracer(cfg.Observability.ServiceName),
		Logger:    logger,
	})

	manager := rbac.NewManager(db, privilegedDB, registry, hooks, logger)
	if err := manager.Initialize(ctx); err != nil {
		return err
	}
	logger.Info("migrations applied, permissions seeded")

	// Main API server.
	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware)
	router.Use(httputil.RecoveryMiddleware(logger))
	router.Use(httputil.LoggingMiddleware(logger))
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	router.Use(rbac.ActorMiddleware(manager.GetResolver(), headerUserID))
	if redisClient != nil {
		router.Use(middleware.NewRateLimitMiddleware(redisClient, logger).Handler)
	}
	manager.RegisterRoutes(router)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics server on its own port for probes.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, metricsRegistry)
	}
	healthServer := &http.Server{
		Addr:    cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	return shutdown.WaitForShutdown()
}

// headerUserID resolves the acting user from the X-User-ID header set by
// the authenticating proxy in front of this service.
func headerUserID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// mustParseRedisURL is only called after the publisher already validated
// the URL by connecting with it.
func mustParseRedisURL(url string) *redis.Options {
	opts, err := redis.ParseURL(url)
	if err != nil {
		panic(err)
	}
	opts.DialTimeout = 5 * time.Second
	return opts
}
