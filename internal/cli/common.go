// Package cli holds the small set of command-line conveniences shared
// by this module's single entry point.
package cli

import (
	"fmt"
	"os"
	"time"
)

// Logger is a leveled, timestamped logger for CLI output.
type Logger struct {
	Verbose   bool
	DebugMode bool
}

// NewLogger creates a logger instance.
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, DebugMode: debug}
}

// Info logs an info message when Verbose is set.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Printf("[INFO] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

// Debug logs a debug message when DebugMode is set.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		fmt.Printf("[DEBUG] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	}
}

// Warn always logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Printf("[WARN] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// Error always logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Printf("[ERROR] %s: %s\n", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
}

// ExitWithError prints an error message and exits with code 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// HandleError logs err through logger, if non-nil, and exits with code 1.
// A nil logger falls back to writing straight to stderr.
func HandleError(err error, logger *Logger) {
	if err == nil {
		return
	}

	if logger != nil {
		logger.Error("%v", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	os.Exit(1)
}
