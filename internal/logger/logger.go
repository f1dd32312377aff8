package logger

import (
	"sync"
)

// Log levels accepted in log.level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Get returns the process logger. The level of the first call wins.
func Get(level string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level)
	})
	return globalLogger
}

// Nop returns a logger that discards everything. Services fall back to it when constructed
// without a logger, which keeps tests quiet.
func Nop() *Logger {
	return nopLogger
}
