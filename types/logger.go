package types

// Logger defines methods for structured logging.
//
// Compatible with zap.SugaredLogger and other structured loggers; internal/logging
// adapts log/slog. All methods accept key-value pairs for structured fields.
type Logger interface {
	// Debug logs a message at DebugLevel. Per-decision traces use this level.
	Debug(msg string, keysAndValues ...any)

	// Info logs a message at InfoLevel.
	Info(msg string, keysAndValues ...any)

	// Warn logs a message at WarnLevel. Upstream contract violations use this level.
	Warn(msg string, keysAndValues ...any)

	// Error logs a message at ErrorLevel. Internal consistency faults use this level.
	Error(msg string, keysAndValues ...any)

	// Fatal logs a message at FatalLevel and calls os.Exit(1).
	//
	// The logger then calls os.Exit(1), even if logging at FatalLevel is disabled.
	Fatal(msg string, keysAndValues ...any)
}
