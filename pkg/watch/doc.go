// Package watch keeps a patch pipeline running continuously.
//
// # Overview
//
// The package has two layers. Watcher turns raw fsnotify events on the
// plugin and module directories into debounced triggers, classified by
// whether a plugin file changed (rescan needed) or only module files did
// (repatch with the current table). Daemon consumes those triggers, runs the
// pipeline under a single run lock, publishes Prometheus metrics and health
// state, and serves both over HTTP.
//
// # Watcher
//
// A watcher coalesces event bursts into one trigger per quiet window:
//
//	w := watch.NewWatcher([]string{"./patchers", "./modules"}, 500*time.Millisecond, log)
//	if err := w.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer w.Stop()
//
//	for kind := range w.Events() {
//		// kind is watch.KindPlugin or watch.KindModule
//	}
//
// # Daemon
//
// A daemon owns the whole loop. It scans once at startup, then re-runs on
// triggers and on an optional cron schedule:
//
//	d := watch.NewDaemon(cfg, log)
//	if err := d.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer d.Stop(context.Background())
//
// Health endpoints and /metrics are served on cfg.Watch.Addr while the
// daemon runs.
//
// # Related Packages
//
//   - pkg/patcher: the scanner and engine the daemon drives
//   - pkg/config: the configuration consumed by NewDaemon
//   - pkg/observability: metrics, health checks and tracing
package watch
