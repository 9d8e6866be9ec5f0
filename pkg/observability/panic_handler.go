package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the full stack trace.
// Call it directly in a defer:
//
//	defer observability.RecoverPanic(logger, "seat autoscale")
//
// The panic is swallowed after logging; the caller returns normally.
func RecoverPanic(logger *Logger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
	}
}

// RecoverPanicWithCallback is RecoverPanic plus a cleanup hook that runs
// only when a panic was recovered. Used to close channels or write an
// error response after the panicking work is abandoned.
func RecoverPanicWithCallback(logger *Logger, where string, callback func()) {
	if r := recover(); r != nil {
		logPanic(logger, where, r)
		if callback != nil {
			callback()
		}
	}
}

func logPanic(logger *Logger, where string, r interface{}) {
	logger.WithFields(map[string]interface{}{
		"panic": r,
		"stack": string(debug.Stack()),
		"where": where,
	}).Error("panic recovered")
}
