package telemetry

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures the process logger.
type Options struct {
	Level string
	Dir   string
}

var (
	mu     sync.RWMutex
	logger = newLogger(zapcore.InfoLevel, zapcore.AddSync(os.Stdout))
)

// Init replaces the process logger. When opts.Dir is set, log lines are also
// appended to <Dir>/app.log. The returned func flushes and closes the file.
func Init(opts Options) (func(), error) {
	level := parseLevel(opts.Level)
	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	closeFn := func() {}
	if dir := strings.TrimSpace(opts.Dir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return closeFn, err
		}
		f, err := os.OpenFile(filepath.Join(dir, "app.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closeFn, err
		}
		sinks = append(sinks, zapcore.AddSync(f))
		closeFn = func() { _ = f.Close() }
	}
	l := newLogger(level, zapcore.NewMultiWriteSyncer(sinks...))
	swap(l)
	return func() {
		_ = l.Sync()
		closeFn()
	}, nil
}

// SetOutput redirects logs to w at debug level. Intended for tests.
func SetOutput(w io.Writer) {
	swap(newLogger(zapcore.DebugLevel, zapcore.AddSync(w)))
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	current().Debug(msg, toZap(fields)...)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	current().Info(msg, toZap(fields)...)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	current().Warn(msg, toZap(fields)...)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	current().Error(msg, toZap(fields)...)
}

func newLogger(level zapcore.Level, out zapcore.WriteSyncer) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.RFC3339TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
	}
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), out, level)
	return zap.New(core)
}

func parseLevel(raw string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(raw)))); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func toZap(fields map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func swap(l *zap.Logger) {
	mu.Lock()
	logger = l
	mu.Unlock()
}
