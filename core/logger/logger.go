// Package logger declares the logging interface used by core packages so
// they never import a logging backend directly.
package logger

// Logger exposes logging methods for common severity levels.
type Logger interface {
	Debugf(format string, args ...any)
	// Debugw logs a message with structured fields.
	Debugw(msg string, fields map[string]any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	// Errorf is reserved for failures that need attention, such as a
	// schedule that fails verification.
	Errorf(format string, args ...any)
}
