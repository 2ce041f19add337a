package logging

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

// Logger provides leveled output for the operator tools: info to stdout,
// warnings and errors to stderr, debug only in verbose mode.
type Logger struct {
	quiet   bool
	verbose bool
}

// NewLogger creates a new logger
func NewLogger(quiet, verbose bool) *Logger {
	return &Logger{quiet: quiet, verbose: verbose}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	if !l.quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// Debugf logs a debug message in verbose mode
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.verbose && !l.quiet {
		fmt.Printf("DEBUG: "+format+"\n", args...)
	}
}

// Warnf logs a warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
}

// Errorf logs an error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
}

// Summary prints the final transfer report
func (l *Logger) Summary(succeeded, failed, pending int, bytes int64, duration time.Duration) {
	if l.quiet && failed == 0 && pending == 0 {
		return
	}

	fmt.Println()
	fmt.Println("=== Summary ===")
	fmt.Printf("Copied: %d files (%s)\n", succeeded, humanize.IBytes(uint64(bytes)))
	if failed > 0 {
		fmt.Printf("Failed: %d\n", failed)
	}
	if pending > 0 {
		fmt.Printf("Pending: %d\n", pending)
	}
	fmt.Printf("Duration: %s\n", duration.Round(time.Millisecond))
}
