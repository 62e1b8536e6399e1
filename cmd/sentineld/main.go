// Package main is the entry point for the sentinel daemon. It loads
// configuration, starts the dependency watch loops, serves the ops surface
// (health, metrics, admin), and handles graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dskow/resilience-core/internal/admin"
	"github.com/dskow/resilience-core/internal/config"
	"github.com/dskow/resilience-core/internal/health"
	"github.com/dskow/resilience-core/internal/logging"
	"github.com/dskow/resilience-core/internal/metrics"
	"github.com/dskow/resilience-core/internal/middleware"
	"github.com/dskow/resilience-core/internal/sentinel"
	"github.com/dskow/resilience-core/internal/tlsutil"
	"github.com/dskow/resilience-core/pkg/breaker"
)

func main() {
	configPath := flag.String("config", "configs/sentinel.yaml", "path to configuration file")
	logLevel := flag.String("log-level", "", "override the configured log level")
	flag.Parse()

	bootLogger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, logCloser, err := logging.Setup(cfg.Logging)
	if err != nil {
		bootLogger.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	logger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"dependencies", len(cfg.Sentinel.Dependencies),
		"admin_enabled", cfg.Admin.Enabled,
		"metrics_enabled", cfg.Metrics.IsEnabled(),
		"max_probe_rate", cfg.Sentinel.MaxProbeRate,
	)

	// Initialize Prometheus metrics
	if cfg.Metrics.IsEnabled() {
		metrics.Init()
	}

	// One breaker per watched dependency, shared by the watch loops and the
	// HTTP surface.
	group, err := breaker.NewGroup(breaker.Settings{
		FailureThreshold: cfg.Breakers.FailureThreshold,
		SuccessThreshold: cfg.Breakers.SuccessThreshold,
		RecoveryTimeout:  cfg.Breakers.RecoveryTimeout,
	}, breaker.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create breaker group", "error", err)
		os.Exit(1)
	}
	if cfg.Metrics.IsEnabled() {
		group.Subscribe(metrics.BreakerListener())
	}

	watcher, err := sentinel.NewWatcher(group, cfg.Sentinel, cfg.Breakers, logger)
	if err != nil {
		logger.Error("failed to create dependency watcher", "error", err)
		os.Exit(1)
	}
	watcher.Start()
	defer watcher.Stop()

	// Initialize config reloader
	reloader := config.NewReloader(*configPath, cfg, logger)
	reloader.Start()
	defer reloader.Stop()

	reloader.OnReload(func(newCfg *config.Config) {
		watcher.UpdateConfig(newCfg.Sentinel, newCfg.Breakers)
	})

	mux := http.NewServeMux()
	health.New(group, logger).RegisterRoutes(mux)

	if cfg.Metrics.IsEnabled() {
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		logger.Info("metrics endpoint registered", "path", cfg.Metrics.Path)
	}

	if cfg.Admin.Enabled {
		admin.New(reloader, group, cfg.Admin, logger).RegisterRoutes(mux)
		logger.Info("admin endpoints registered", "allowlist", cfg.Admin.IPAllowlist)
	}

	var handler http.Handler = mux
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Recovery(logger)(handler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Server.TLS.Enabled {
		tlsCfg, certLoader, err := tlsutil.ServerTLS(cfg.Server.TLS, logger)
		if err != nil {
			logger.Error("failed to load TLS configuration", "error", err)
			os.Exit(1)
		}
		defer certLoader.Stop()
		srv.TLSConfig = tlsCfg
	}

	// Start server in a goroutine
	go func() {
		logger.Info("starting sentinel", "addr", srv.Addr, "tls", cfg.Server.TLS.Enabled)
		var err error
		if cfg.Server.TLS.Enabled {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("draining in-flight requests", "timeout", cfg.Server.ShutdownTimeout)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("sentinel stopped gracefully")
}
