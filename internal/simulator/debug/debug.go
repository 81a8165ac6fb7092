// Package debug is the verbose diagnostics sink shared by the simulator
// packages: silent until a writer is installed, mirroring
// internal/lidar/l2frames's SetDebugLogger/Debugf pair.
package debug

import (
	"io"
	"log"
	"sync"
)

var (
	mu     sync.RWMutex
	logger *log.Logger
)

// SetLogger installs a debug logger that receives verbose simulator
// diagnostics (collision checks, prune sweeps, ranked alert summaries).
// Pass nil to disable debug logging.
func SetLogger(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		logger = nil
		return
	}
	logger = log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

// Enabled reports whether a debug logger is currently installed, so callers
// can skip building an expensive diagnostic payload (a report snapshot, a
// ranked alert table) when nothing will read it.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger != nil
}

// Debugf logs a formatted debug message when a logger is installed.
func Debugf(format string, args ...interface{}) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		l.Printf(format, args...)
	}
}
