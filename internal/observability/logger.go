// Package observability holds the process-wide CLI logger.
//
// Commands log through CLILogger rather than constructing loggers locally,
// so verbosity and output destination are decided once at startup. The
// logger writes to stderr; stdout is reserved for command output.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the shared command logger. It is a no-op until Init runs, so
// packages may log safely during early startup and in tests.
var CLILogger = zap.NewNop()

// Init builds the CLI logger. Verbose enables debug-level output.
func Init(verbose bool) error {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	CLILogger = logger
	return nil
}

// Sync flushes buffered log entries. Called on process exit.
func Sync() {
	_ = CLILogger.Sync()
}
