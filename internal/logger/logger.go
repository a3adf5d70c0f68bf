package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how much the service logs.
// Levels: "debug", "info", "warn", "error" (case-insensitive); invalid levels fall back to info.
// An empty File logs JSON to stderr; otherwise the file is rotated by lumberjack.
type Options struct {
	Service string
	Level   string
	File    string
	// Extra cores are tee'd next to the primary one (e.g. the OpenTelemetry bridge).
	Extra []zapcore.Core
}

func New(opts Options) *zap.SugaredLogger {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sink zapcore.WriteSyncer
	if opts.File != "" {
		sink = zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    100, // MB
			MaxBackups: 5,
			MaxAge:     28,
		})
	} else {
		sink = zapcore.Lock(os.Stderr)
	}

	cores := append([]zapcore.Core{zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, level)}, opts.Extra...)
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if opts.Service != "" {
		l = l.With(zap.String("service", opts.Service))
	}
	return l.Sugar()
}
