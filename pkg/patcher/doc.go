// Package patcher implements the preload patch pipeline that rewrites
// compiled protobuf descriptor modules before anything consumes them.
//
// # Overview
//
// This package discovers patcher plugins on disk, routes their transforms to
// the descriptor modules they declare an interest in, and applies those
// transforms in a deterministic order. A broken plugin or a failing transform
// is isolated and logged; it never takes down the run.
//
// # Plugin Contract
//
// A patcher plugin is a compiled Go object file (*.patcher.o or *.patcher.a)
// that exports a Patchers constructor:
//
//	func Patchers() []any
//
// Each returned value that satisfies the Patcher interface is registered;
// values that do not are skipped without complaint, so a plugin may expose
// values meant for other hosts alongside its patchers:
//
//	type Patcher interface {
//		TargetModules() []string
//		Patch(m *descriptor.Module) error
//	}
//
// A sidecar manifest (<name>.patcher.yaml) may accompany the object file to
// pin the plugin's package path, version, and API version. Plugins without a
// sidecar run with defaults.
//
// # Scanning and Routing
//
// Scanner walks a directory in name order and loads every plugin file it
// finds. The registrations land in a RoutingTable whose iteration order is
// fixed by the scan: file name order first, then export order within a
// plugin, then target order within a patcher. Scanning the same directory
// twice yields the same table.
//
// # Patch Runs
//
// Engine resolves each routed target to a file under the module directory,
// decodes it once, and applies its transforms in table order. Missing targets
// are skipped with a warning. Transform failures (including panics) are
// captured as PatchError values and collected; the run continues with the
// next transform.
//
// # Usage Example
//
// Scan and patch:
//
//	scanner := patcher.NewScanner(log)
//	table, err := scanner.Scan(ctx, "/etc/stitch/patchers")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer table.Close()
//
//	engine := patcher.NewEngine(descriptor.NewProtoCodec(), log)
//	modules, errs := engine.Patch(ctx, table, "/var/lib/stitch/modules")
//	for _, err := range errs {
//		log.Warn(err)
//	}
//
// # Related Packages
//
//   - pkg/descriptor: module representation, codec, and compilation
//   - pkg/watch: re-runs the pipeline when plugins or modules change
package patcher
