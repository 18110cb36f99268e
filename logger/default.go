package logger

import "sync/atomic"

type loggerRef struct {
	Logger
}

var defLogger atomic.Pointer[loggerRef]

func init() {
	defLogger.Store(&loggerRef{NewSlog(InfoLevel, false)})
}

// GetLogger returns the default logger, used by connections and simulated
// units created without an explicit logger.
func GetLogger() Logger {
	return defLogger.Load().Logger
}

// SetDefault replaces the default logger. Objects that already captured the
// previous default keep using it. A nil l is ignored.
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defLogger.Store(&loggerRef{l})
}
