// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error logging.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, log, 0, "patch run", func(ctx context.Context) error {
//		// Task code with automatic panic recovery
//		return runPatch(ctx)
//	})
//
// SafeGoNoError: Same safety net for functions without an error return
//
//	async.SafeGoNoError(ctx, log, time.Minute, "debounce flush", func(ctx context.Context) {
//		flushEvents(ctx)
//	})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Optional per-task timeouts
// Context Cancellation: Respects context cancellation
//
// # Related Packages
//
//   - pkg/watch: Uses SafeGo for triggered patch runs
package async
