// Package logging provides zap logger helpers.
//
// The pipeline runs unattended for hours, so the logger carries two sinks:
// a durable JSON file that records everything at Info and above, and the
// console, which only sees warnings and errors. Retry chatter, checkpoint
// saves and per-page detail stay out of the interactive surface.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls logger construction.
type Config struct {
	// Development switches the file sink to a human-readable encoder.
	Development bool `mapstructure:"development"`
	// File is the path of the durable log sink.
	File string `mapstructure:"file"`
}

// New builds a zap.Logger with a durable file sink and a terse console sink.
// The returned close function flushes and releases the file.
func New(cfg Config) (*zap.Logger, func(), error) {
	if cfg.File == "" {
		cfg.File = "wikichron.log"
	}
	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}
	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var fileEncoder zapcore.Encoder
	if cfg.Development {
		fileEncoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		fileEncoder = zapcore.NewJSONEncoder(encCfg)
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = "ts"
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(fileEncoder, zapcore.AddSync(file), zapcore.InfoLevel),
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), zapcore.WarnLevel),
	)

	logger := zap.New(core)
	closeFn := func() {
		_ = logger.Sync()
		_ = file.Close()
	}
	return logger, closeFn, nil
}
