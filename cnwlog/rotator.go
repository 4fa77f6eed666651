package cnwlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// RotatingLogWriter manages the logging subsystems for the module. It
// provides a root logger backend that writes to both stdout and a rotating
// on-disk log file, and tracks each subsystem logger registered against it
// so their levels can be adjusted one subsystem at a time (SetLogLevel) or
// all to a single level (SetLogLevels).
type RotatingLogWriter struct {
	mtx sync.Mutex

	backend     *slog.Backend
	rotator     *rotator.Rotator
	subLoggers  map[string]slog.Logger
	logRotators []*rotator.Rotator
}

// NewRotatingLogWriter creates a new log writer that logs to stdout only,
// until InitLogRotator is called with an on-disk destination.
func NewRotatingLogWriter() *RotatingLogWriter {
	return &RotatingLogWriter{
		backend:    slog.NewBackend(os.Stdout),
		subLoggers: make(map[string]slog.Logger),
	}
}

// InitLogRotator initializes the log rotator to write logs to logFile and
// create roll files in the same directory. It must be called before the
// log rotator is used, otherwise logging will initially be write-only to
// stdout.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxRolls int) error {
	logDir := filepath.Dir(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rot, err := rotator.New(logFile, 10*1024, false, maxRolls)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.rotator = rot
	r.backend = slog.NewBackend(logWriter{rotator: rot})
	return nil
}

// logWriter implements io.Writer by forwarding to both stdout and the
// rotator, mirroring the dual stdout+file logging used by daemons in this
// ecosystem.
type logWriter struct {
	rotator *rotator.Rotator
}

func (w logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	return w.rotator.Write(p)
}

// GenSubLogger creates a new logger for a particular subsystem.
func (r *RotatingLogWriter) GenSubLogger(tag string) slog.Logger {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.backend.Logger(tag)
}

// RegisterSubLogger registers the given subsystem logger so its level may
// later be changed in bulk via SetLogLevels.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string, logger slog.Logger) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.subLoggers[subsystem] = logger
}

// SetLogLevel sets the logging level for the provided subsystem. It is a
// no-op if the subsystem was never registered.
func (r *RotatingLogWriter) SetLogLevel(subsystem, level string) {
	r.mtx.Lock()
	logger, ok := r.subLoggers[subsystem]
	r.mtx.Unlock()
	if !ok {
		return
	}

	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return
	}
	logger.SetLevel(lvl)
}

// SetLogLevels sets the logging level for every registered subsystem.
func (r *RotatingLogWriter) SetLogLevels(level string) {
	r.mtx.Lock()
	subsystems := make([]string, 0, len(r.subLoggers))
	for s := range r.subLoggers {
		subsystems = append(subsystems, s)
	}
	r.mtx.Unlock()

	for _, s := range subsystems {
		r.SetLogLevel(s, level)
	}
}

// Close shuts down the file rotator, if one was initialized.
func (r *RotatingLogWriter) Close() error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.rotator == nil {
		return nil
	}
	return r.rotator.Close()
}
