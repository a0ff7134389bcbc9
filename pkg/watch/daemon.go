package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/stitchworks/stitch/pkg/async"
	"github.com/stitchworks/stitch/pkg/config"
	"github.com/stitchworks/stitch/pkg/descriptor"
	"github.com/stitchworks/stitch/pkg/observability"
	"github.com/stitchworks/stitch/pkg/patcher"
)

// Patch run trigger labels. Filesystem triggers reuse the Kind values.
const (
	triggerInitial = "initial"
	triggerCron    = "cron"
)

// Daemon runs the patch pipeline continuously: one initial scan+patch, then
// re-runs on filesystem changes and on an optional cron schedule, serving
// health and metrics over HTTP the whole time.
type Daemon struct {
	cfg *config.Config
	log *logrus.Logger

	scanner *patcher.Scanner
	engine  *patcher.Engine
	cached  *descriptor.CachedCodec

	registry *prometheus.Registry
	metrics  *observability.Metrics
	health   *observability.HealthChecker

	server  *http.Server
	watcher *Watcher
	sched   *cron.Cron

	providers *observability.OTelProviders
	tracer    trace.Tracer

	// runMu serializes patch runs. tableMu guards the table pointer only;
	// the table itself is immutable once built.
	runMu   sync.Mutex
	tableMu sync.RWMutex
	table   *patcher.RoutingTable

	onRun  func(modules []*descriptor.Module, errs []error)
	cancel context.CancelFunc
	group  *errgroup.Group
}

// NewDaemon assembles a daemon from configuration. Start must be called to
// run it.
func NewDaemon(cfg *config.Config, log *logrus.Logger) *Daemon {
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	health := observability.NewHealthChecker(cfg.Pipeline.PluginDir, cfg.Pipeline.ModuleDir)

	var codec descriptor.Codec = descriptor.NewProtoCodec()
	var cached *descriptor.CachedCodec
	if cfg.Pipeline.CacheEntries > 0 {
		cached = descriptor.NewCachedCodec(codec, cfg.Pipeline.CacheEntries, cfg.Pipeline.CacheTTL)
		codec = cached
	}

	engine := patcher.NewEngine(codec, log)
	engine.SetDebugDump(cfg.Pipeline.DebugDump)

	router := mux.NewRouter()
	router.Use(observability.HTTPMetricsMiddleware(metrics))
	observability.RegisterHealthRoutes(router, health)
	router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:         cfg.Watch.Addr,
		Handler:      otelhttp.NewHandler(router, "stitch-watch"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	watcher := NewWatcher(
		[]string{cfg.Pipeline.PluginDir, cfg.Pipeline.ModuleDir},
		cfg.Watch.Debounce,
		log,
	)

	return &Daemon{
		cfg:      cfg,
		log:      log,
		scanner:  patcher.NewScanner(log),
		engine:   engine,
		cached:   cached,
		registry: registry,
		metrics:  metrics,
		health:   health,
		server:   server,
		watcher:  watcher,
	}
}

// Scanner exposes the plugin scanner so callers can swap the plugin opener.
func (d *Daemon) Scanner() *patcher.Scanner {
	return d.scanner
}

// Server exposes the HTTP server for graceful shutdown wiring.
func (d *Daemon) Server() *http.Server {
	return d.server
}

// SetOnRun registers a callback invoked after every patch run with the
// patched module records and the collected errors. The callback runs on the
// run goroutine; the host consumes the records from there.
func (d *Daemon) SetOnRun(fn func(modules []*descriptor.Module, errs []error)) {
	d.onRun = fn
}

// Start initializes telemetry, performs the initial scan and patch run, and
// launches the HTTP server, the filesystem watcher and the optional rescan
// schedule. It returns once everything is running.
func (d *Daemon) Start(ctx context.Context) error {
	// Validate the schedule up front so a typo fails before anything runs.
	if d.cfg.Watch.RescanSchedule != "" {
		if _, err := cron.ParseStandard(d.cfg.Watch.RescanSchedule); err != nil {
			return fmt.Errorf("invalid rescan schedule %q: %w", d.cfg.Watch.RescanSchedule, err)
		}
	}

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        d.cfg.Observability.OTelEnabled,
		Endpoint:       d.cfg.Observability.OTelEndpoint,
		ServiceName:    "stitch",
		ServiceVersion: observability.Version,
		Insecure:       d.cfg.Observability.OTelInsecure,
	}, d.log)
	if err != nil {
		return fmt.Errorf("init otel: %w", err)
	}
	d.providers = providers
	d.tracer = otel.Tracer("stitch/watch")

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	group, groupCtx := errgroup.WithContext(runCtx)
	d.group = group

	// First run is synchronous so the daemon comes up with a routing table
	// or fails fast on an unreadable plugin directory.
	if err := d.runOnce(groupCtx, triggerInitial, true); err != nil {
		cancel()
		if serr := observability.ShutdownOTel(context.Background(), d.providers, d.log); serr != nil {
			d.log.WithError(serr).Warn("OTel shutdown failed")
		}
		return err
	}

	group.Go(func() error {
		d.log.Infof("HTTP server listening on %s", d.server.Addr)
		if err := d.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if err := d.watcher.Start(groupCtx); err != nil {
		cancel()
		return err
	}
	group.Go(func() error {
		// A panic here must not take the health and metrics endpoints down
		// with it; the daemon runs on without filesystem triggers.
		defer observability.RecoverPanic(d.log, "watch trigger loop")
		d.consumeTriggers(groupCtx)
		return nil
	})

	if d.cfg.Watch.RescanSchedule != "" {
		d.sched = cron.New()
		_, err := d.sched.AddFunc(d.cfg.Watch.RescanSchedule, func() {
			async.SafeGo(groupCtx, d.log, 0, "scheduled rescan", func(ctx context.Context) error {
				return d.runOnce(ctx, triggerCron, true)
			})
		})
		if err != nil {
			cancel()
			return fmt.Errorf("invalid rescan schedule %q: %w", d.cfg.Watch.RescanSchedule, err)
		}
		d.sched.Start()
		d.log.Infof("Periodic rescan scheduled: %s", d.cfg.Watch.RescanSchedule)
	}

	return nil
}

// Wait blocks until a background component fails or the daemon is stopped,
// returning the first fatal error.
func (d *Daemon) Wait() error {
	if d.group == nil {
		return nil
	}
	return d.group.Wait()
}

// Stop tears the daemon down: trigger sources first so no new runs start,
// then the in-flight run via context cancellation, then telemetry. Shutting
// the HTTP server down here is idempotent with the shutdown manager doing it.
func (d *Daemon) Stop(ctx context.Context) error {
	if d.sched != nil {
		select {
		case <-d.sched.Stop().Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := d.watcher.Stop(); err != nil {
		d.log.WithError(err).Warn("Watcher stop failed")
	}
	if d.cancel != nil {
		d.cancel()
	}
	if err := d.server.Shutdown(ctx); err != nil {
		d.log.WithError(err).Warn("HTTP server shutdown failed")
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil {
			d.log.WithError(err).Warn("Background component exited with error")
		}
	}

	d.tableMu.Lock()
	table := d.table
	d.table = nil
	d.tableMu.Unlock()
	if table != nil {
		if err := table.Close(); err != nil {
			d.log.WithError(err).Warn("Failed to close routing table")
		}
	}

	return observability.ShutdownOTel(ctx, d.providers, d.log)
}

// consumeTriggers drains the watcher channel and runs the pipeline once per
// trigger. Plugin changes rescan; module changes reuse the current table.
func (d *Daemon) consumeTriggers(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case kind, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			d.metrics.WatchEventsTotal.WithLabelValues(string(kind)).Inc()
			async.SafeGo(ctx, d.log, 0, "triggered patch run", func(ctx context.Context) error {
				return d.runOnce(ctx, string(kind), kind == KindPlugin)
			})
		}
	}
}

// runOnce performs one serialized patch run: an optional rescan followed by a
// patch pass over the module directory. Collected per-target errors are
// normal partial success; only environmental failures return an error.
func (d *Daemon) runOnce(ctx context.Context, trigger string, rescan bool) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	ctx, span := d.tracer.Start(ctx, "patch_run", trace.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.Bool("rescan", rescan),
	))
	defer span.End()

	log := observability.LoggerWithTraceContext(ctx, d.log)

	if rescan {
		table, err := d.scanner.Scan(ctx, d.cfg.Pipeline.PluginDir)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			d.metrics.PatchRunsTotal.WithLabelValues(trigger, "error").Inc()
			return fmt.Errorf("scan %s: %w", d.cfg.Pipeline.PluginDir, err)
		}
		d.swapTable(table)
		d.metrics.PluginsLoaded.Set(float64(len(table.Plugins())))
		d.metrics.TargetsRouted.Set(float64(len(table.Targets())))
		d.metrics.RegistrationsActive.Set(float64(table.Registrations()))
		log.Infof("Scan complete: %d plugins, %d targets, %d registrations",
			len(table.Plugins()), len(table.Targets()), table.Registrations())
	}

	table := d.currentTable()
	if table == nil {
		return errors.New("no routing table; daemon not started")
	}
	start := time.Now()
	modules, errs := d.engine.Patch(ctx, table, d.cfg.Pipeline.ModuleDir)
	elapsed := time.Since(start)

	d.recordRun(trigger, table, modules, errs, elapsed)
	span.SetAttributes(
		attribute.Int("modules", len(modules)),
		attribute.Int("errors", len(errs)),
	)

	log.WithFields(logrus.Fields{
		"trigger":  trigger,
		"modules":  len(modules),
		"errors":   len(errs),
		"duration": elapsed.Round(time.Millisecond).String(),
	}).Info("Patch run complete")

	if d.onRun != nil {
		d.onRun(modules, errs)
	}
	return nil
}

// recordRun translates one run's outcome into metrics and health state.
func (d *Daemon) recordRun(trigger string, table *patcher.RoutingTable, modules []*descriptor.Module, errs []error, elapsed time.Duration) {
	status := "success"
	if len(errs) > 0 {
		status = "partial"
	}
	d.metrics.PatchRunsTotal.WithLabelValues(trigger, status).Inc()
	d.metrics.PatchRunDuration.Observe(elapsed.Seconds())
	d.metrics.ModulesPatchedTotal.Add(float64(len(modules)))

	var failed, panicked, decodeSkips int
	cancelled := false
	for _, err := range errs {
		var perr *patcher.PatchError
		var derr *descriptor.DecodeError
		switch {
		case errors.As(err, &perr):
			if perr.Panicked {
				panicked++
			} else {
				failed++
			}
		case errors.As(err, &derr):
			decodeSkips++
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			cancelled = true
		}
	}

	// Every transform routed to a patched target either applied or is
	// accounted for in the failure counts.
	applied := -failed - panicked
	for _, m := range modules {
		applied += len(table.TransformsFor(m.Name))
	}
	if applied > 0 {
		d.metrics.TransformsTotal.WithLabelValues("applied").Add(float64(applied))
	}
	if failed > 0 {
		d.metrics.TransformsTotal.WithLabelValues("failed").Add(float64(failed))
	}
	if panicked > 0 {
		d.metrics.TransformsTotal.WithLabelValues("panicked").Add(float64(panicked))
	}
	if decodeSkips > 0 {
		d.metrics.TargetsSkippedTotal.WithLabelValues("decode_error").Add(float64(decodeSkips))
	}
	// Targets with no record and no decode error were absent from the module
	// directory (stat failures count as missing). Skip the arithmetic on a
	// cancelled run, when the remainder is simply unprocessed.
	if !cancelled {
		if missing := len(table.Targets()) - len(modules) - decodeSkips; missing > 0 {
			d.metrics.TargetsSkippedTotal.WithLabelValues("missing").Add(float64(missing))
		}
	}

	if d.cached != nil {
		stats := d.cached.Stats()
		d.metrics.DecodeCacheHits.Set(float64(stats.Hits))
		d.metrics.DecodeCacheMisses.Set(float64(stats.Misses))
		d.metrics.DecodeCacheEntries.Set(float64(stats.Entries))
	}

	d.health.RecordRun(len(modules), len(errs))
}

func (d *Daemon) swapTable(table *patcher.RoutingTable) {
	d.tableMu.Lock()
	old := d.table
	d.table = table
	d.tableMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			d.log.WithError(err).Warn("Failed to close previous routing table")
		}
	}
}

func (d *Daemon) currentTable() *patcher.RoutingTable {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()
	return d.table
}
