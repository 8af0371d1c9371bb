package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap/zapcore"
)

// Level is the logging level, as written in atlas-fetch configuration.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type backendLevels struct {
	zap    zapcore.Level
	logrus logrus.Level
}

// An empty Level means INFO.
var levels = map[Level]backendLevels{
	"":         {zapcore.InfoLevel, logrus.InfoLevel},
	LevelDebug: {zapcore.DebugLevel, logrus.DebugLevel},
	LevelInfo:  {zapcore.InfoLevel, logrus.InfoLevel},
	LevelWarn:  {zapcore.WarnLevel, logrus.WarnLevel},
	LevelError: {zapcore.ErrorLevel, logrus.ErrorLevel},
}

// ParseLevel parses a level name case-insensitively. The empty string
// parses as INFO.
func ParseLevel(level string) (Level, error) {
	l := Level(strings.ToUpper(level))
	if _, ok := levels[l]; !ok {
		return "", fmt.Errorf("unknown log level: %s", level)
	}
	if l == "" {
		return LevelInfo, nil
	}
	return l, nil
}

// Validate validates whether this Level is valid.
func (l Level) Validate() error {
	_, err := ParseLevel(string(l))
	return err
}

// String implements fmt.Stringer.
func (l Level) String() string { return strings.ToUpper(string(l)) }

func (l Level) backend() (backendLevels, error) {
	b, ok := levels[Level(l.String())]
	if !ok {
		return levels[LevelInfo], fmt.Errorf("unknown log level: %s", l)
	}
	return b, nil
}

// effectiveLevels applies Debug on top of Level.
func (c *Config) effectiveLevels() (backendLevels, error) {
	if c.Debug {
		return levels[LevelDebug], nil
	}
	return c.Level.backend()
}
