package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrimarket/internal/config"
	"agrimarket/internal/infrastructure/health"
	"agrimarket/internal/infrastructure/metrics"
	"agrimarket/internal/lifecycle"
	"agrimarket/internal/marketplace"
	"agrimarket/internal/notify"
	"agrimarket/pkg/logging"
	"agrimarket/pkg/telemetry"
)

var (
	configFile  = flag.String("config", "configs/marketd.yaml", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

var version = "dev"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("marketd", version)
		return
	}

	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		*configFile = envConfig
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewZapLogger(cfg.System.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetGlobalLogger(logger)
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting marketd", "version", version, "owner", cfg.App.OwnerID)

	// Telemetry providers; the prometheus exporter feeds the ops server.
	tel, err := telemetry.Setup("agrimarket")
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", "error", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	market := marketplace.NewClient(
		cfg.Service.BaseURL,
		time.Duration(cfg.Service.TimeoutSeconds)*time.Second,
		cfg.Service.RateLimitPerSecond,
		logger,
	)

	controller := lifecycle.NewController(lifecycle.Config{
		OwnerID:      cfg.App.OwnerID,
		BidLoadLimit: cfg.Concurrency.BidLoadLimit,
	}, market, logger)

	hm := health.NewManager(logger)

	var opsServer *metrics.Server
	if cfg.Telemetry.EnableMetrics {
		opsServer = metrics.NewServer(cfg.Telemetry.MetricsPort, hm, logger)
		opsServer.Start()
	}

	// Initial synchronization. A failure here is not fatal: the notify
	// listener (or the next manual refresh) will retry, and the health
	// endpoint reports the gap in the meantime.
	startCtx, startCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Service.TimeoutSeconds)*time.Second)
	if err := controller.Refresh(startCtx); err != nil {
		logger.Warn("Initial refresh failed, continuing degraded", "error", err)
	}
	startCancel()

	var listener *notify.Listener
	if cfg.Notify.Enabled {
		listener = notify.NewListener(notify.Config{
			URL:            cfg.Notify.URL,
			ReconnectDelay: time.Duration(cfg.Notify.ReconnectDelaySeconds) * time.Second,
			PoolSize:       cfg.Concurrency.RefreshPoolSize,
			PoolBuffer:     cfg.Concurrency.RefreshPoolBuffer,
		}, controller, logger)
		listener.Start()
		hm.Register("notify", listener.Healthy)
		logger.Info("Notify stream enabled", "url", cfg.Notify.URL)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("Shutting down", "signal", sig.String())

	if listener != nil {
		listener.Stop()
	}
	if opsServer != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := opsServer.Stop(stopCtx); err != nil {
			logger.Warn("Ops server shutdown failed", "error", err)
		}
		cancel()
	}

	logger.Info("Shutdown complete")
}
