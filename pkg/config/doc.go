// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables
// with sensible defaults for all settings. CLI flags layer on top: commands
// load the environment first and let explicit flags override single fields.
//
// # Configuration Structure
//
// Pipeline settings:
//
//	STITCH_PLUGIN_DIR="./patchers"
//	STITCH_MODULE_DIR="./modules"
//	STITCH_DEBUG_DUMP="false"
//	STITCH_CACHE_ENTRIES="64"
//	STITCH_CACHE_TTL="5m"
//
// Watch daemon settings:
//
//	STITCH_WATCH_ADDR=":8420"
//	STITCH_WATCH_DEBOUNCE="500ms"
//	STITCH_RESCAN_SCHEDULE="@every 10m"  # cron spec, empty disables
//	STITCH_SHUTDOWN_TIMEOUT="30s"
//
// Observability settings:
//
//	STITCH_LOG_LEVEL="info"  # trace, debug, info, warn, error
//	STITCH_LOG_FORMAT="text" # text, json
//	STITCH_OTEL_ENABLED="false"
//	STITCH_OTEL_ENDPOINT="localhost:4317"
//	STITCH_OTEL_INSECURE="true"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Plugins: %s\n", cfg.Pipeline.PluginDir)
//	fmt.Printf("Modules: %s\n", cfg.Pipeline.ModuleDir)
//	fmt.Printf("Log level: %s\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/observability: Uses observability configuration
//   - pkg/watch: Uses watch daemon configuration
package config
