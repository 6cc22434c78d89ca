package plugin

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/cadenza-audio/clap-runtime/abi"
	"github.com/cadenza-audio/clap-runtime/errors"
)

var (
	logger     *zap.Logger
	loggerSet  bool
	loggerOnce sync.Once
)

// Logger returns the plugin package's logger instance.
// It uses a no-op logger by default.
func Logger() *zap.Logger {
	loggerOnce.Do(func() {
		if logger == nil {
			logger = zap.NewNop()
		}
	})
	return logger
}

// SetLogger configures the plugin package's logger.
// This must be called before any dispatch activity.
func SetLogger(l *zap.Logger) {
	logger = l
	loggerSet = l != nil
}

// reportFailure routes a dispatch failure to the host's log callback. When
// the host has no log capability, or logging itself panics, the message
// goes to the configured zap logger, or to stderr as the last resort.
// Failures are never discarded.
func reportFailure(host *abi.Host, err *errors.Error) {
	severity := err.Severity()
	msg := err.Error()

	if host != nil && host.Log != nil {
		if hostLog(host, severity, msg) {
			return
		}
	}

	if loggerSet {
		logger.Error(msg, zap.Stringer("severity", severity))
		return
	}
	fmt.Fprintf(os.Stderr, "[clap-plugin %s] %s\n", severity, msg)
}

// hostLog calls the host's log callback, absorbing any panic it raises.
func hostLog(host *abi.Host, severity abi.LogSeverity, msg string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	host.Log(host, severity, msg)
	return true
}
