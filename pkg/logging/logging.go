package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	encCfg  = makeEncoderConfig(false)
	logger  *zap.Logger
	sugared *zap.SugaredLogger
)

func init() {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	logger = zap.New(core)
	sugared = logger.Sugar()
}

func makeEncoderConfig(timestamps bool) zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !timestamps {
		// By default we elide timestamps; the --add-timestamp flag restores
		// them for users who funnel output into CI log collectors.
		cfg.TimeKey = zapcore.OmitKey
	}
	return cfg
}

// L returns the global raw logger.
func L() *zap.Logger {
	return logger
}

// S returns the global sugared logger.
func S() *zap.SugaredLogger {
	return sugared
}

// SetLevel adjusts the level of the global loggers.
func SetLevel(l zapcore.Level) {
	level.SetLevel(l)
}

// SetTimestamps re-creates the global loggers with timestamp decoration
// toggled on or off.
func SetTimestamps(enabled bool) {
	encCfg = makeEncoderConfig(enabled)
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	logger = zap.New(core)
	sugared = logger.Sugar()
}

// SetColor disables or forces ANSI color in level encoding.
func SetColor(enabled bool) {
	if enabled {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stderr),
		level,
	)
	logger = zap.New(core)
	sugared = logger.Sugar()
}

// NewLogger returns a logger writing to the supplied WriteSyncer with the
// global level and encoder configuration applied.
func NewLogger(ws zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), ws, level)
	return zap.New(core)
}
