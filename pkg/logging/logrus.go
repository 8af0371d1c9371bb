package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

type logrusLogger struct {
	entry *logrus.Entry
}

// ForLogrus wraps a logrus entry.
func ForLogrus(entry *logrus.Entry) Interface {
	return logrusLogger{entry}
}

// NewLogrusLogger builds a logrus logger from config with the same sinks
// and levels NewLogger gives zap: text output in debug mode, JSON otherwise.
func NewLogrusLogger(config *Config) (*logrus.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}
	lvl, err := config.effectiveLevels()
	if err != nil {
		return nil, err
	}

	timestampFormat := time.RFC3339
	if config.EncodeTimeAsRFC3339Nano {
		timestampFormat = time.RFC3339Nano
	}

	logger := logrus.New()
	logger.SetLevel(lvl.logrus)
	if config.Debug {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: timestampFormat})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	}

	var sinks []io.Writer
	if config.Filename != "" {
		sinks = append(sinks, &config.Logger)
	}
	if !config.DisableConsoleOutput {
		sinks = append(sinks, os.Stderr)
	}
	logger.SetOutput(io.MultiWriter(sinks...))
	return logger, nil
}

func (l logrusLogger) WithField(key string, value interface{}) Interface {
	return logrusLogger{l.entry.WithField(key, value)}
}

func (l logrusLogger) WithError(err error) Interface {
	return logrusLogger{l.entry.WithError(err)}
}

func (l logrusLogger) Debug(msg string)                          { l.entry.Debug(msg) }
func (l logrusLogger) Info(msg string)                           { l.entry.Info(msg) }
func (l logrusLogger) Warn(msg string)                           { l.entry.Warn(msg) }
func (l logrusLogger) Error(msg string)                          { l.entry.Error(msg) }
func (l logrusLogger) Fatal(msg string)                          { l.entry.Fatal(msg) }
func (l logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l logrusLogger) Fatalf(format string, args ...interface{}) { l.entry.Fatalf(format, args...) }
