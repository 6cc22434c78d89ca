//go:build darwin || linux

package dylib

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger = zap.NewNop()
	loggerMu sync.RWMutex
)

// SetLogger sets the logger for the native bundle loader.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	logger = l
}

// Logger returns the current logger.
func Logger() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}
