package logging

import (
	"fmt"
)

// Interface decouples the dataset clients from the concrete logging backend
// (zap in binaries, logrus or a Recorder in tests).
//
// Soft failures of the fetch layer (unknown identifiers, output collisions)
// are reported through Warn, so every backend must keep Warn distinct from
// Info.
type Interface interface {
	WithField(key string, value interface{}) Interface
	WithError(err error) Interface

	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
}

func fmtMsg(format string, args []interface{}) string {
	msg := format
	if len(args) != 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return msg
}
