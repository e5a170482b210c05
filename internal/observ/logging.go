package observ

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Init installs the process-wide logger. Call once from main before any
// component starts; components created earlier log to a nop logger.
func Init(debug bool) error {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.DisableStacktrace = true
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}
	mu.Lock()
	logger = l
	mu.Unlock()
	return nil
}

// Sync flushes buffered log entries. Safe to call on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = logger.Sync()
}

// Log emits a structured event with arbitrary key/value context.
func Log(event string, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	fields := make([]zap.Field, 0, len(kv))
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	l.Info(event, fields...)
}

// Warn emits a warning-level event.
func Warn(event string, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	fields := make([]zap.Field, 0, len(kv))
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	l.Warn(event, fields...)
}

// Error emits an error-level event.
func Error(event string, err error, kv map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()

	fields := make([]zap.Field, 0, len(kv)+1)
	fields = append(fields, zap.Error(err))
	for k, v := range kv {
		fields = append(fields, zap.Any(k, v))
	}
	l.Error(event, fields...)
}
