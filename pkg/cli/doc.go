// Package cli provides the stitch command-line interface.
//
// # Overview
//
// This package implements the `stitch` tool: one-shot patch runs, plugin
// inspection, descriptor compilation, and the long-running watch daemon.
//
// # Commands
//
// patch: scan plugins once and patch the module directory
//
//	stitch patch \
//		-patchers ./patchers \
//		-modules ./modules \
//		-debug-dump
//
// A run that collects per-target errors still exits zero; partial success is
// the normal outcome. Pass -strict to exit nonzero instead.
//
// plugins: show what a scan of the plugin directory yields
//
//	stitch plugins -patchers ./patchers
//
// compile: build a binary descriptor module from .proto sources
//
//	stitch compile -dir ./proto -out ./modules/orders.binpb
//
// watch: run the pipeline as a daemon
//
//	stitch watch \
//		-patchers ./patchers \
//		-modules ./modules \
//		-addr :8420 \
//		-rescan-schedule "@hourly"
//
// The daemon re-runs on filesystem changes, serves /health and /metrics on
// the configured address, and shuts down gracefully on SIGINT/SIGTERM.
//
// # Configuration
//
// The watch daemon reads STITCH_* environment variables (see pkg/config);
// explicit flags override them:
//
//	export STITCH_PLUGIN_DIR=/var/lib/stitch/patchers
//	export STITCH_MODULE_DIR=/var/lib/stitch/modules
//
// # Related Packages
//
//   - pkg/patcher: the scanner and engine behind patch and plugins
//   - pkg/descriptor: codec and compiler behind compile
//   - pkg/watch: the daemon behind watch
package cli
