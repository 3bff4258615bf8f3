package debug

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init installs the process-wide zap logger. Verbose switches to a
// development encoder at debug level.
func Init(verbose bool) (func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		cfg.Development = true
	}

	logger, err := cfg.Build()
	if err != nil {
		return func() {}, eris.Wrap(err, "debug: build logger")
	}

	restore := zap.ReplaceGlobals(logger)
	return func() {
		_ = logger.Sync()
		restore()
	}, nil
}

// DebugHeader prints debug header if debugging is enabled
func DebugHeader(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG START ===")
	}
}

// DebugFooter prints debug footer if debugging is enabled
func DebugFooter(enabled bool) {
	if enabled {
		zap.S().Debug("=== DEBUG END ===")
	}
}

// DebugOutput prints debug output if debugging is enabled
func DebugOutput(enabled bool, format string, args ...interface{}) {
	if enabled {
		zap.S().Debugf(format, args...)
	}
}

// DebugTiming measures and logs execution time if debugging is enabled
func DebugTiming(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	DebugOutput(enabled, "Starting: %s", operation)

	return func() {
		DebugOutput(enabled, "Completed: %s (took %v)", operation, time.Since(start))
	}
}
