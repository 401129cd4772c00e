package logger

import (
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured entries with alternating key/value pairs:
//
//	log.Info("ListingStore.LoadCategory: fetched", "category", c, "count", n)
type Logger struct {
	config *LoggerConfig
	sugar  *zap.SugaredLogger
}

// NewLogger builds a logger from LOG_LEVEL / LOG_FORMAT.
func NewLogger() *Logger {
	return New(DefaultConfig())
}

func New(cfg *LoggerConfig) *Logger {
	return newWithWriter(cfg, os.Stdout)
}

// NewStderr logs to stderr, for command line tools whose stdout is their output.
func NewStderr(cfg *LoggerConfig) *Logger {
	return newWithWriter(cfg, os.Stderr)
}

func newWithWriter(cfg *LoggerConfig, w io.Writer) *Logger {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zapcore.InfoLevel
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "text" || cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(w), level)
	z := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{config: cfg, sugar: z.Sugar()}
}

// Nop discards everything. Used by tests and optional dependencies.
func Nop() *Logger {
	return &Logger{config: &LoggerConfig{Level: "error"}, sugar: zap.NewNop().Sugar()}
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, keysAndValues...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// With returns a child logger that adds the given pairs to every entry.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{config: l.config, sugar: l.sugar.With(keysAndValues...)}
}

// Zap exposes the underlying logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	return l.sugar.Desugar()
}

func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
