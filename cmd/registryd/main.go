// Package main implements the entry point for the name registry service.
// The service is stateless: every request is served from the shared record
// store, so any number of replicas can run behind the edge router.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/config"
	"github.com/wintermutant/anvil-composable-tutorial/metric"
	"github.com/wintermutant/anvil-composable-tutorial/natsclient"
	"github.com/wintermutant/anvil-composable-tutorial/registry"
	"github.com/wintermutant/anvil-composable-tutorial/store"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "registryd"
)

func main() {
	// Add panic recovery
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
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	cfg, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid")
		return nil
	}

	ctx := context.Background()
	natsClient, metricsRegistry, err := setupInfrastructure(ctx, cfg)
	if err != nil {
		return err
	}
	defer natsClient.Close(ctx)

	recordStore, err := store.NewJetStreamStore(ctx, natsClient, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("create record store: %w", err)
	}
	defer recordStore.Close()

	server, err := setupServer(cfg, recordStore, logger, metricsRegistry)
	if err != nil {
		return err
	}

	metricsServer := startMetricsServer(cliCfg, metricsRegistry, logger)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	return runWithSignalHandling(ctx, server, cliCfg.ShutdownTimeout)
}

// initializeCLI parses flags and sets up logging
func initializeCLI() (*CLIConfig, *slog.Logger, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting name registry service",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// initializeConfiguration loads and validates configuration
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, error) {
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupInfrastructure creates and connects core infrastructure
func setupInfrastructure(
	ctx context.Context,
	cfg *config.Config,
) (*natsclient.Client, *metric.MetricsRegistry, error) {
	natsURL := cfg.Store.NATSURLs[0]

	// Environment variable override takes precedence
	if envURL := os.Getenv("ANVIL_NATS_URLS"); envURL != "" {
		natsURL = envURL
	}

	natsClient, err := natsclient.NewClient(natsURL,
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.Store.MaxReconnects),
		natsclient.WithReconnectWait(cfg.Store.ReconnectWait),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create NATS client: %w", err)
	}

	if err := connectToNATS(ctx, natsClient); err != nil {
		return nil, nil, err
	}

	metricsRegistry := metric.NewMetricsRegistry()

	return natsClient, metricsRegistry, nil
}

// connectToNATS establishes NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, natsClient *natsclient.Client) error {
	slog.Info("Connecting to NATS")
	if err := natsClient.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := natsClient.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// setupServer builds the HTTP service and server
func setupServer(
	cfg *config.Config,
	recordStore store.Store,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*registry.Server, error) {
	service, err := registry.NewService(recordStore, cfg.Registry, logger, metricsRegistry.CoreMetrics())
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}

	server, err := registry.NewServer(cfg.Registry, service, logger)
	if err != nil {
		return nil, fmt.Errorf("create server: %w", err)
	}

	if err := server.Setup(); err != nil {
		return nil, fmt.Errorf("setup server: %w", err)
	}

	return server, nil
}

// startMetricsServer starts the Prometheus endpoint when enabled
func startMetricsServer(cliCfg *CLIConfig, metricsRegistry *metric.MetricsRegistry, logger *slog.Logger) *metric.Server {
	if cliCfg.MetricsPort <= 0 {
		return nil
	}

	metricsServer := metric.NewServer(cliCfg.MetricsPort, "/metrics", metricsRegistry)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	logger.Info("Metrics server started", "address", metricsServer.Address())
	return metricsServer
}

// runWithSignalHandling starts the server and handles shutdown signals
func runWithSignalHandling(ctx context.Context, server *registry.Server, shutdownTimeout time.Duration) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	errChan := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errChan <- server.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("Name registry started successfully")
	case err := <-errChan:
		return fmt.Errorf("start server: %w", err)
	}

	select {
	case <-signalCtx.Done():
		slog.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	if err := server.Stop(shutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	slog.Info("Name registry shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}

// loadConfig loads configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path == "" {
		return loader.Load()
	}
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
