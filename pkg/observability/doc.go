// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes observability infrastructure for the patch pipeline:
// logrus logger construction, metrics collection, health checks for the watch
// daemon, panic recovery helpers, graceful shutdown, and tracing integration.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger("info", "json")
//	logger.WithField("target", "inventory.binpb").Info("patched")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.PatchRunsTotal.WithLabelValues("module", "success").Inc()
//	metrics.PatchRunDuration.Observe(0.123)
//
// Serve them:
//
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(pluginDir, moduleDir)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
// Initialize tracing:
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "stitch",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers, logger)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/watch: Daemon wiring for health, metrics, and traces
package observability
