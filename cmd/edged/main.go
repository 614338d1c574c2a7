// Package main implements the entry point for the edge router. It fronts
// the name registry replicas: API traffic is forwarded round-robin across
// the healthy replicas, everything else goes to the UI target.
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
	"github.com/wintermutant/anvil-composable-tutorial/health"
	"github.com/wintermutant/anvil-composable-tutorial/metric"
	"github.com/wintermutant/anvil-composable-tutorial/resolver"
	"github.com/wintermutant/anvil-composable-tutorial/router"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "edged"
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
	metricsRegistry := metric.NewMetricsRegistry()
	monitor := health.NewMonitor()

	pool, checker, err := setupDiscovery(cfg, logger, metricsRegistry, monitor)
	if err != nil {
		return err
	}

	server, err := setupServer(cfg, pool, logger, metricsRegistry)
	if err != nil {
		return err
	}

	metricsServer := startMetricsServer(cliCfg, metricsRegistry, logger)
	if metricsServer != nil {
		defer func() { _ = metricsServer.Stop() }()
	}

	return runWithSignalHandling(ctx, server, checker, cliCfg.ShutdownTimeout)
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

	slog.Info("Starting edge router",
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

// setupDiscovery builds the replica pool and its health checker
func setupDiscovery(
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*resolver.Pool, *resolver.Checker, error) {
	pool, err := resolver.NewPool(cfg.Discovery.Replicas)
	if err != nil {
		return nil, nil, fmt.Errorf("create replica pool: %w", err)
	}

	checker, err := resolver.NewChecker(pool, cfg.Discovery, logger, metricsRegistry.CoreMetrics(), monitor)
	if err != nil {
		return nil, nil, fmt.Errorf("create health checker: %w", err)
	}

	return pool, checker, nil
}

// setupServer builds the route table, router, and HTTP server
func setupServer(
	cfg *config.Config,
	pool *resolver.Pool,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) (*router.Server, error) {
	table := router.NewTable()
	table.Add(cfg.Router.APIPrefix, pool)
	if cfg.Router.UITarget != "" {
		table.Add("/", router.StaticTarget(cfg.Router.UITarget))
	}

	edgeRouter, err := router.NewRouter(table, cfg.Router, logger, metricsRegistry.CoreMetrics())
	if err != nil {
		return nil, fmt.Errorf("create router: %w", err)
	}

	server, err := router.NewServer(cfg.Router, edgeRouter, logger)
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

// runWithSignalHandling starts the checker and server, then handles shutdown
func runWithSignalHandling(
	ctx context.Context,
	server *router.Server,
	checker *resolver.Checker,
	shutdownTimeout time.Duration,
) error {
	signalCtx, signalCancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	if err := checker.Start(signalCtx); err != nil {
		return fmt.Errorf("start health checker: %w", err)
	}
	defer checker.Stop()

	errChan := make(chan error, 1)
	ready := make(chan struct{})
	go func() {
		errChan <- server.Start(signalCtx, ready)
	}()

	select {
	case <-ready:
		slog.Info("Edge router started successfully")
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

	slog.Info("Edge router shutdown complete")
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
