package wasm

import (
	"sync"

	"go.uber.org/zap"
)

var (
	logger   *zap.Logger = zap.NewNop()
	loggerMu sync.RWMutex
)

// SetLogger sets the logger for the wasm bundle loader.
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
