package logging

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns the Interface for config.Backend.
func New(config *Config) (Interface, error) {
	switch config.Backend {
	case BackendZap, "":
		l, err := NewLogger(config)
		if err != nil {
			return nil, err
		}
		return ForZap(l), nil
	case BackendLogrus:
		l, err := NewLogrusLogger(config)
		if err != nil {
			return nil, err
		}
		return ForLogrus(logrus.NewEntry(l)), nil
	}
	return nil, fmt.Errorf("unknown logging backend: %s", config.Backend)
}

// NewLogger takes a logging config and returns a new Zap logger that writes to
// the log file pointed to by the config and, unless disabled, to stderr.
// Stdout is left to the command output of atlas-fetch.
func NewLogger(config *Config) (*zap.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	lvl, err := config.effectiveLevels()
	if err != nil {
		return nil, err
	}

	encoder := newZapEncoder(config)
	var cores []zapcore.Core
	if config.Filename != "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(&config.Logger), lvl.zap))
	}
	if !config.DisableConsoleOutput {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), lvl.zap))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}

func newZapEncoder(config *Config) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	if config.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	if config.EncodeTimeAsRFC3339Nano {
		encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}

	if config.Debug {
		return zapcore.NewConsoleEncoder(encoderConfig)
	}
	return zapcore.NewJSONEncoder(encoderConfig)
}
