package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger reports the caller of the Interface method, not this file.
type zapLogger struct {
	logger *zap.Logger
}

// ForZap wraps a zap logger. Caller annotation is turned on.
func ForZap(logger *zap.Logger) Interface {
	return zapLogger{logger: logger.WithOptions(zap.AddCaller(), zap.AddCallerSkip(2))}
}

func (l zapLogger) WithField(key string, value interface{}) Interface {
	return zapLogger{l.logger.With(zap.Any(key, value))}
}

func (l zapLogger) WithError(err error) Interface {
	return zapLogger{l.logger.With(zap.Error(err))}
}

func (l zapLogger) write(level zapcore.Level, msg string) {
	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write()
	}
}

func (l zapLogger) Debug(msg string) { l.write(zapcore.DebugLevel, msg) }
func (l zapLogger) Info(msg string)  { l.write(zapcore.InfoLevel, msg) }
func (l zapLogger) Warn(msg string)  { l.write(zapcore.WarnLevel, msg) }
func (l zapLogger) Error(msg string) { l.write(zapcore.ErrorLevel, msg) }
func (l zapLogger) Fatal(msg string) { l.write(zapcore.FatalLevel, msg) }

func (l zapLogger) Debugf(format string, args ...interface{}) {
	l.write(zapcore.DebugLevel, fmtMsg(format, args))
}
func (l zapLogger) Infof(format string, args ...interface{}) {
	l.write(zapcore.InfoLevel, fmtMsg(format, args))
}
func (l zapLogger) Warnf(format string, args ...interface{}) {
	l.write(zapcore.WarnLevel, fmtMsg(format, args))
}
func (l zapLogger) Errorf(format string, args ...interface{}) {
	l.write(zapcore.ErrorLevel, fmtMsg(format, args))
}
func (l zapLogger) Fatalf(format string, args ...interface{}) {
	l.write(zapcore.FatalLevel, fmtMsg(format, args))
}
