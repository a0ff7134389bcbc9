package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Pipeline configuration
	Pipeline PipelineConfig

	// Watch daemon configuration
	Watch WatchConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// PipelineConfig holds scan and patch run configuration
type PipelineConfig struct {
	PluginDir string // directory scanned for *.patcher.o / *.patcher.a files
	ModuleDir string // directory holding the descriptor modules to patch
	DebugDump bool   // write <name>_patched.<ext> next to each patched module

	// Decode cache
	CacheEntries int
	CacheTTL     time.Duration
}

// WatchConfig holds watch daemon configuration
type WatchConfig struct {
	Addr            string        // HTTP listen address for health and metrics
	Debounce        time.Duration // quiet window before a change triggers a run
	RescanSchedule  string        // cron spec for periodic full rescans, empty disables
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// OpenTelemetry
	OTelEnabled  bool
	OTelEndpoint string
	OTelInsecure bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Pipeline:      loadPipelineConfig(),
		Watch:         loadWatchConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadPipelineConfig loads pipeline configuration from environment
func loadPipelineConfig() PipelineConfig {
	return PipelineConfig{
		PluginDir:    getEnv("STITCH_PLUGIN_DIR", "./patchers"),
		ModuleDir:    getEnv("STITCH_MODULE_DIR", "./modules"),
		DebugDump:    getEnvBool("STITCH_DEBUG_DUMP", false),
		CacheEntries: getEnvInt("STITCH_CACHE_ENTRIES", 64),
		CacheTTL:     getEnvDuration("STITCH_CACHE_TTL", 5*time.Minute),
	}
}

// loadWatchConfig loads watch daemon configuration from environment
func loadWatchConfig() WatchConfig {
	return WatchConfig{
		Addr:            getEnv("STITCH_WATCH_ADDR", ":8420"),
		Debounce:        getEnvDuration("STITCH_WATCH_DEBOUNCE", 500*time.Millisecond),
		RescanSchedule:  getEnv("STITCH_RESCAN_SCHEDULE", ""),
		ShutdownTimeout: getEnvDuration("STITCH_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:     getEnv("STITCH_LOG_LEVEL", "info"),
		LogFormat:    getEnv("STITCH_LOG_FORMAT", "text"),
		OTelEnabled:  getEnvBool("STITCH_OTEL_ENABLED", false),
		OTelEndpoint: getEnv("STITCH_OTEL_ENDPOINT", "localhost:4317"),
		OTelInsecure: getEnvBool("STITCH_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate pipeline config
	if c.Pipeline.PluginDir == "" {
		return fmt.Errorf("plugin directory is required")
	}
	if c.Pipeline.ModuleDir == "" {
		return fmt.Errorf("module directory is required")
	}
	if c.Pipeline.CacheEntries < 0 {
		return fmt.Errorf("cache entries must not be negative")
	}
	if c.Pipeline.CacheTTL <= 0 {
		return fmt.Errorf("cache TTL must be positive")
	}

	// Validate watch config
	if c.Watch.Addr == "" {
		return fmt.Errorf("watch address is required")
	}
	if c.Watch.Debounce <= 0 {
		return fmt.Errorf("watch debounce must be positive")
	}
	if c.Watch.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	// Validate observability config
	switch c.Observability.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Observability.LogFormat)
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
