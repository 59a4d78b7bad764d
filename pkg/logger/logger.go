package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the global structured logger. Packages that need typed fields use
// it directly; everything else goes through the sugared helpers in this
// package.
var Log *zap.Logger

var sugar *zap.SugaredLogger

func init() {
	// keep a usable logger before Init runs (tests, tools)
	Log = zap.NewNop()
	sugar = Log.Sugar()
}

// Init configures the global logger. level is one of "debug", "info",
// "warn", "error"; empty falls back to NOTICEBOARD_LOG_LEVEL and then to
// info. The sink can be redirected to a file via NOTICEBOARD_LOG_SINK
// ("file:/path/to/log").
func Init(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("NOTICEBOARD_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.OutputPaths = []string{"stdout"}
	if sink := os.Getenv("NOTICEBOARD_LOG_SINK"); strings.HasPrefix(sink, "file:") {
		cfg.OutputPaths = []string{strings.TrimPrefix(sink, "file:")}
	}

	l, err := cfg.Build()
	if err != nil {
		// fall back to a no-op logger rather than failing startup
		l = zap.NewNop()
	}
	Log = l
	sugar = l.Sugar()
}

// Sync flushes buffered log entries; call on shutdown.
func Sync() {
	_ = Log.Sync()
}

// Sugared helpers so call sites can log event names with loose key/value
// pairs without importing zap.

func Debug(msg string, kv ...interface{}) { sugar.Debugw(msg, kv...) }
func Info(msg string, kv ...interface{})  { sugar.Infow(msg, kv...) }
func Warn(msg string, kv ...interface{})  { sugar.Warnw(msg, kv...) }
func Error(msg string, kv ...interface{}) { sugar.Errorw(msg, kv...) }
