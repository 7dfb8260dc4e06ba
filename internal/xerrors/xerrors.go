// Package xerrors centralizes the fatal-error policy used across gopoisson:
// configuration problems are returned as errors, invariant violations found
// while a solve is in flight are fatal and carry a source location.
package xerrors

import (
	"fmt"
	"runtime"
)

// Config wraps a configuration-time error (bad boundary conditions, mismatched
// process grid, unsupported lda, ...). Callers get it back from New/Setup.
func Config(format string, args ...interface{}) error {
	return fmt.Errorf("gopoisson: configuration error: "+format, args...)
}

// Fatalf reports an invariant violation discovered during Solve. Per the
// library's "succeed or abort" contract there is no recovery path: it panics
// with a location-tagged message rather than returning an error.
func Fatalf(format string, args ...interface{}) {
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		file, line = "???", 0
	}
	panic(fmt.Sprintf("gopoisson: fatal: %s:%d: %s", file, line, fmt.Sprintf(format, args...)))
}

// Warn reports a non-fatal condition (misaligned user buffer, partitioner
// falling back to identity). Separated from Fatalf so call sites read as
// intent, not severity-by-convention.
func Warn(format string, args ...interface{}) {
	fmt.Printf("gopoisson: warning: "+format+"\n", args...)
}
