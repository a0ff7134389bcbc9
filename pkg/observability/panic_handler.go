package observability

import (
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// RecoverPanic recovers a panic and logs it at Error level with the panic
// value, the full stack trace and a short context label.
//
// Meant for defer at the top of long-lived goroutines:
//
//	go func() {
//	    defer observability.RecoverPanic(logger, "watch trigger loop")
//	    consume()
//	}()
//
// The panic is not re-raised; the goroutine returns normally. Whatever it
// was mid-way through stays as it was, so reserve this for loops whose loss
// the process can survive.
func RecoverPanic(logger *logrus.Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("Recovered from panic")
	}
}

// RecoverPanicWithCallback is RecoverPanic with a cleanup hook that runs
// after the panic is logged. Use it when a dying goroutine must close a
// channel or flip a flag so its peers do not block forever. The callback
// does not run when there was no panic.
func RecoverPanicWithCallback(logger *logrus.Logger, context string, callback func()) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("Recovered from panic")
		if callback != nil {
			callback()
		}
	}
}
