// internal/recovery/recovery.go
package recovery

import (
	"fmt"
	"os"
	"runtime/debug"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// HandlePanic should be deferred at the top of main() or goroutines.
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		logPanic(r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details and calls the provided cleanup function.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		logPanic(r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// logPanic reports through the global zap logger, or straight to stderr
// when no logger has been installed.
func logPanic(r any, stack []byte) {
	logger := zap.L()
	if !logger.Core().Enabled(zapcore.ErrorLevel) {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, stack)
		return
	}
	logger.Error("FATAL: panic recovered",
		zap.String("panic", fmt.Sprint(r)),
		zap.ByteString("stack", stack),
	)
	_ = logger.Sync()
}

// Usage in goroutines (with cleanup):
//go func() {
//	defer recovery.HandlePanicFunc(func() {
//		_ = capture.Close()
//	})
//	stream.Process(samples)
//}()
