// Package cnwlog provides the shared logging backbone for every subsystem
// of this module. Subsystems register a placeholder logger at init time
// and are wired to the real, leveled root logger once the host process has
// a log file (or decides to log only to stdout).
package cnwlog

import (
	"github.com/decred/slog"
)

// replaceableLogger is a thin wrapper around a logger that is used so the
// logger can be replaced easily without some black pointer magic.
type replaceableLogger struct {
	slog.Logger
	subsystem string
}

// Loggers discard everything until they are wired to a root log writer.
// This is performed early during application startup by calling
// InitLogRotator() on the RotatingLogWriter, followed by SetupLoggers().
var (
	// pkgLoggers is a list of all module-level loggers that are
	// registered. They are tracked here so they can be replaced once
	// SetupLoggers is called with the final root logger.
	pkgLoggers []*replaceableLogger

	// addPkgLogger creates a new replaceable subsystem logger and adds
	// it to the list of loggers replaced once the real root logger is
	// ready.
	addPkgLogger = func(subsystem string) *replaceableLogger {
		l := &replaceableLogger{
			Logger:    NewSubLogger(subsystem, nil),
			subsystem: subsystem,
		}
		pkgLoggers = append(pkgLoggers, l)
		return l
	}

	// Log is the logger used by the consumer facade and batch pipeline.
	Log = addPkgLogger("CNSM")

	// ScanLog is the logger used by the scanner, transfer builder, and
	// preprocessor.
	ScanLog = addPkgLogger("SCAN")

	// SeenLog is the logger used by the seen-keys registry.
	SeenLog = addPkgLogger("SEEN")

	// SubLog is the logger used by the reference subscription container.
	SubLog = addPkgLogger("SUBS")
)

// NewSubLogger creates a new subsystem logger backed by root, or an
// unconfigured (but non-nil) logger if root is nil. This mirrors the
// behavior wallet daemons in this ecosystem use so that loggers are always
// safe to call before SetupLoggers runs.
func NewSubLogger(subsystem string, root *RotatingLogWriter) slog.Logger {
	if root == nil {
		return slog.Disabled
	}
	return root.GenSubLogger(subsystem)
}

// SetupLoggers initializes all module-global logger variables against the
// given root log writer.
func SetupLoggers(root *RotatingLogWriter) {
	for _, l := range pkgLoggers {
		l.Logger = NewSubLogger(l.subsystem, root)
		root.RegisterSubLogger(l.subsystem, l.Logger)
	}
}

// AddSubLogger is a helper for external packages to register and wire the logger of one or more sub-components that live
// outside this module's own package set.
func AddSubLogger(root *RotatingLogWriter, subsystem string,
	useLoggers ...func(slog.Logger)) {

	logger := NewSubLogger(subsystem, root)
	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// logClosure is used to provide a closure over expensive logging operations
// so they aren't performed when the logging level doesn't warrant it.
type logClosure func() string

// String invokes the underlying function and returns the result.
func (c logClosure) String() string {
	return c()
}

// NewLogClosure returns a new closure over a function that returns a string,
// suitable for lazy evaluation in a Debugf/Tracef call.
func NewLogClosure(c func() string) logClosure {
	return logClosure(c)
}
