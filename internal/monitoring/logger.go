// Package monitoring owns process-wide logging. The structured logger is
// go.uber.org/zap; Logf remains as a printf-style hook for code paths that
// only need a diagnostic line.
package monitoring

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DevelopmentEnvironment selects a human readable console logger.
	DevelopmentEnvironment = "development"
	// ProductionEnvironment selects a JSON logger at info level.
	ProductionEnvironment = "production"
)

var logger = zap.NewNop()

// Logf is the package-level diagnostic logger. It defaults to the structured
// logger's Infof but may be replaced by SetLogger. Tests or production code
// can redirect or mute it.
var Logf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	logger.Sugar().Infof(format, v...)
}

// Setup builds the structured logger for the given environment. Unknown
// environments fall back to development. When verbose is set the level is
// lowered to debug.
func Setup(environment string, verbose bool) error {
	var cfg zap.Config
	if environment == ProductionEnvironment {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	l, err := cfg.Build()
	if err != nil {
		return err
	}
	SetZap(l)
	return nil
}

// SetZap installs l as the structured logger. Passing nil installs a no-op
// logger.
func SetZap(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// Logger returns the structured logger.
func Logger() *zap.Logger {
	return logger
}

// Sync flushes buffered log entries.
func Sync() {
	_ = logger.Sync()
}

// SetLogger replaces the printf hook. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
