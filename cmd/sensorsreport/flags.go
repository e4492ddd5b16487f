package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	Interval        int
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("SENSORSREPORT_CONFIG", "sensors-report.json"),
		"Path to configuration file (env: SENSORSREPORT_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("SENSORSREPORT_CONFIG", "sensors-report.json"),
		"Path to configuration file (env: SENSORSREPORT_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("SENSORSREPORT_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: SENSORSREPORT_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("SENSORSREPORT_LOG_FORMAT", "json"),
		"Log format: json, text (env: SENSORSREPORT_LOG_FORMAT)")

	flag.IntVar(&cfg.Interval, "interval",
		getEnvInt("SENSORSREPORT_INTERVAL", 0),
		"Poll interval in seconds, 0 to use the configured value (env: SENSORSREPORT_INTERVAL)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("SENSORSREPORT_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: SENSORSREPORT_METRICS_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SENSORSREPORT_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: SENSORSREPORT_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate config file exists
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Interval < 0 {
		return fmt.Errorf("invalid interval: %d", cfg.Interval)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Hardware Sensor MQTT Bridge

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Run with custom config
  %s --config=/etc/sensors-report.json

  # Run with debug logging
  %s --log-level=debug --log-format=text

  # Run with environment variables
  export SENSORSREPORT_CONFIG=/etc/sensors-report.json
  export SENSORSREPORT_LOG_LEVEL=debug
  %s

  # Validate configuration only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
