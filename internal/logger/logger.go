// Package logger provides the process-wide logging facade.
package logger

import (
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
)

var (
	mu  sync.RWMutex
	log = hclog.New(&hclog.LoggerOptions{
		Name:   "muse",
		Level:  hclog.Info,
		Output: os.Stderr,
	})
)

// SetLevel adjusts the global log level ("debug", "info", "warn", "error").
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	log.SetLevel(hclog.LevelFromString(strings.ToLower(level)))
}

// Named returns a sub-logger scoped to a component name.
func Named(name string) hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log.Named(name)
}

// Info logs informational messages
func Info(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Info(msg, args...)
}

// Warn logs warning messages
func Warn(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Warn(msg, args...)
}

// Error logs error messages
func Error(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Error(msg, args...)
}

// Debug logs debug messages
func Debug(msg string, args ...interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	log.Debug(msg, args...)
}
