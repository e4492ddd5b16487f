// Package main implements the entry point for the SensorsReport bridge.
// SensorsReport samples hardware monitoring values and flat files on a
// fixed interval and republishes them as labeled MQTT messages, optionally
// wrapped in CloudEvents envelopes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/penguineer/SensorsReport/config"
	"github.com/penguineer/SensorsReport/metric"
	"github.com/penguineer/SensorsReport/mqttclient"
	"github.com/penguineer/SensorsReport/output"
	"github.com/penguineer/SensorsReport/provider"
	"github.com/penguineer/SensorsReport/service"
)

// Build information constants
const (
	Version   = "0.2.0"
	BuildTime = "dev"
	appName   = "sensors-report"
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

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, logger, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load and validate configuration
	cfg, err := loadConfig(cliCfg, logger)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "sensors", len(cfg.Sensors))
		return nil
	}

	// First signal cancels the context for a graceful shutdown, a second
	// one exits immediately.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	installSignalHandler(cancel)

	metricsRegistry := metric.NewRegistry()

	// Connect to the broker before touching any hardware; a broker that
	// never becomes reachable is a startup failure.
	client, err := connectBroker(ctx, cfg, logger, metricsRegistry)
	if err != nil {
		return err
	}
	defer disconnectBroker(client)

	poller, err := setupPoller(cfg, cliCfg, client, logger, metricsRegistry)
	if err != nil {
		return err
	}

	return runUntilShutdown(ctx, cliCfg, poller, metricsRegistry, logger)
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
		printDetailedHelp()
		return nil, nil, true, nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	slog.Info("Starting SensorsReport (hardware sensor MQTT bridge)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, logger, false, nil
}

// loadConfig loads and validates the configuration document
func loadConfig(cliCfg *CLIConfig, logger *slog.Logger) (*config.Config, error) {
	loader := config.NewLoader(logger)
	cfg, err := loader.LoadFile(cliCfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// installSignalHandler wires the two-stage shutdown: the first SIGINT or
// SIGTERM cancels the run context, the second exits the process directly.
func installSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("Received shutdown signal", "signal", sig.String())
		cancel()

		sig = <-sigCh
		slog.Warn("Received second signal, exiting immediately", "signal", sig.String())
		os.Exit(130)
	}()
}

// connectBroker creates the MQTT client and blocks until the first
// connection is established
func connectBroker(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	metricsRegistry *metric.Registry,
) (*mqttclient.Client, error) {
	client, err := mqttclient.New(mqttclient.ConfigFromMQTT(cfg.MQTT), logger, metricsRegistry)
	if err != nil {
		return nil, fmt.Errorf("create MQTT client: %w", err)
	}

	slog.Info("Connecting to MQTT broker", "broker", cfg.MQTT.BrokerURL())
	if err := client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", err)
	}

	return client, nil
}

func disconnectBroker(client *mqttclient.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		slog.Warn("Broker disconnect failed", "error", err)
	}
}

// setupPoller builds the providers and emitter and initializes the poller
func setupPoller(
	cfg *config.Config,
	cliCfg *CLIConfig,
	client *mqttclient.Client,
	logger *slog.Logger,
	metricsRegistry *metric.Registry,
) (*service.Poller, error) {
	providers, err := provider.Build(cfg.Sensors, provider.Deps{
		Logger:  logger,
		Metrics: metricsRegistry,
	})
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}

	emitter := output.NewEmitter(output.Deps{
		Publisher:   client,
		Prefix:      cfg.MQTT.Prefix,
		CloudEvents: cfg.CloudEvents,
		Logger:      logger,
		Metrics:     metricsRegistry,
	})

	interval := cfg.PollInterval()
	if cliCfg.Interval > 0 {
		interval = time.Duration(cliCfg.Interval) * time.Second
		slog.Info("Poll interval overridden from command line", "interval", interval)
	}

	poller := service.NewPoller(service.PollerDeps{
		Providers: providers,
		Emitter:   emitter,
		Sensors:   cfg.Sensors,
		Interval:  interval,
		Logger:    logger,
		Metrics:   metricsRegistry,
	})
	if err := poller.Initialize(); err != nil {
		provider.CloseAll(providers)
		return nil, fmt.Errorf("initialize poller: %w", err)
	}
	return poller, nil
}

// runUntilShutdown starts the poller and the optional metrics endpoint and
// blocks until the run context is cancelled
func runUntilShutdown(
	ctx context.Context,
	cliCfg *CLIConfig,
	poller *service.Poller,
	metricsRegistry *metric.Registry,
	logger *slog.Logger,
) error {
	if err := poller.Start(ctx); err != nil {
		return fmt.Errorf("start poller: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if cliCfg.MetricsPort > 0 {
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cliCfg.MetricsPort),
			Handler:           metricsMux(metricsRegistry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Metrics endpoint listening", "port", cliCfg.MetricsPort)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	slog.Info("SensorsReport started")
	<-ctx.Done()
	slog.Info("Shutting down")

	if err := poller.Stop(cliCfg.ShutdownTimeout); err != nil {
		slog.Warn("Poller stop failed", "error", err)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("SensorsReport shutdown complete")
	return nil
}

func metricsMux(metricsRegistry *metric.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsRegistry.Handler())
	return mux
}
