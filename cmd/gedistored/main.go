// Package main implements the gedistored entry point. gedistored serves
// GEDI lidar products over NATS: it registers the "gedi" data store,
// instantiates it from configuration, and exposes its catalog, describe,
// open, and search operations as request/reply subjects.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/xcube-dev/xcube-gedidb/config"
	"github.com/xcube-dev/xcube-gedidb/datastore"
	"github.com/xcube-dev/xcube-gedidb/gateway"
	"github.com/xcube-dev/xcube-gedidb/gedi"
	"github.com/xcube-dev/xcube-gedidb/health"
	"github.com/xcube-dev/xcube-gedidb/metric"
	"github.com/xcube-dev/xcube-gedidb/natsclient"
)

// Build information constants
const (
	Version = "0.2.0"
	appName = "gedistored"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	slog.Info("Starting gedistored",
		"version", Version,
		"config_path", cliCfg.ConfigPath)

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()

	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor(appName)

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, metricsRegistry)
		metricsServer.SetHealthHandler(monitor.Handler())
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer stopMetricsServer(metricsServer)
	}

	natsClient, err := setupNATS(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer closeNATS(natsClient)
	monitor.Register("nats", natsCheck(natsClient))

	store, err := setupStore(cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer closeStore(store)

	gw, err := gateway.New(gateway.Config{
		StoreName:   gedi.StoreName,
		QueueGroup:  cfg.Gateway.QueueGroup,
		CacheBucket: cfg.Gateway.CacheBucket,
		CacheTTL:    cfg.Gateway.CacheTTL,
	}, store, natsClient,
		gateway.WithLogger(logger),
		gateway.WithMetrics(metricsRegistry.Metrics),
	)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}
	monitor.Register("gateway", gatewayCheck(gw))

	return runWithSignalHandling(ctx, gw, cliCfg.ShutdownTimeout)
}

// natsCheck reports the NATS connection state for the health endpoint.
func natsCheck(client *natsclient.Client) health.Check {
	return func() health.Status {
		status := client.Status()
		if status == natsclient.StatusConnected {
			return health.Healthy("", "connected")
		}
		return health.Unhealthy("", status.String())
	}
}

// gatewayCheck reports the gateway state for the health endpoint.
func gatewayCheck(gw *gateway.Gateway) health.Check {
	return func() health.Status {
		h := gw.GetHealth()
		if !h.Running {
			return health.Unhealthy("", "not running")
		}
		status := health.Healthy("", "running")
		if !h.NATSHealthy {
			status = health.Degraded("", "running without NATS connection")
		}
		return status.WithDetails(map[string]any{
			"uptime":          h.Uptime.String(),
			"requests_total":  h.RequestsTotal,
			"requests_failed": h.RequestsFailed,
		})
	}
}

// setupNATS creates and connects the NATS client.
func setupNATS(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*natsclient.Client, error) {
	natsClient, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithClientName(cfg.NATS.ClientName),
		natsclient.WithTimeout(cfg.NATS.ConnectTimeout),
		natsclient.WithRequestTimeout(cfg.NATS.RequestTimeout),
		natsclient.WithLogger(logger),
		natsclient.WithMetrics(metricsRegistry.Metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.NATS.ConnectTimeout)
	defer cancel()

	if err := natsClient.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return natsClient, nil
}

// setupStore registers the gedi store and instantiates it from the
// configured parameters.
func setupStore(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (datastore.DataStore, error) {
	registry := datastore.NewRegistry()
	if err := gedi.Register(registry); err != nil {
		return nil, fmt.Errorf("register store: %w", err)
	}
	slog.Info("store factories registered", "stores", registry.ListStores())

	params, err := cfg.StoreParams()
	if err != nil {
		return nil, fmt.Errorf("store params: %w", err)
	}

	store, err := registry.NewStore(gedi.StoreName, params, datastore.Dependencies{
		Logger:          logger,
		MetricsRegistry: metricsRegistry,
		HTTPClient:      &http.Client{Timeout: 60 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}

	return store, nil
}

// runWithSignalHandling starts the gateway and shuts down on SIGINT or
// SIGTERM.
func runWithSignalHandling(ctx context.Context, gw *gateway.Gateway, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := gw.Start(signalCtx); err != nil {
		return fmt.Errorf("start gateway: %w", err)
	}
	slog.Info("gedistored started")

	<-signalCtx.Done()
	slog.Info("Received shutdown signal", "shutdown_timeout", shutdownTimeout)

	gw.Stop()
	return nil
}

func stopMetricsServer(server *metric.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}
}

func closeNATS(client *natsclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		slog.Error("NATS client close failed", "error", err)
	}
}

func closeStore(store datastore.DataStore) {
	if closer, ok := store.(*gedi.Store); ok {
		if err := closer.Close(); err != nil {
			slog.Error("store close failed", "error", err)
		}
	}
}
