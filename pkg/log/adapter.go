package log

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// BadgerLogger implements badger.Logger on top of a logrus entry.
// Badger's info messages are logged at debug level and its debug messages at trace.
type BadgerLogger struct {
	entry *logrus.Entry
}

// NewBadgerLogger wraps entry for use with badger.Options.WithLogger
func NewBadgerLogger(entry *logrus.Entry) *BadgerLogger {
	return &BadgerLogger{entry: entry}
}

func (l *BadgerLogger) Errorf(f string, v ...interface{}) { l.entry.Errorf(trim(f), v...) }

func (l *BadgerLogger) Warningf(f string, v ...interface{}) { l.entry.Warnf(trim(f), v...) }

func (l *BadgerLogger) Infof(f string, v ...interface{}) { l.entry.Debugf(trim(f), v...) }

func (l *BadgerLogger) Debugf(f string, v ...interface{}) { l.entry.Tracef(trim(f), v...) }

// badger terminates most format strings with a newline; logrus adds its own
func trim(f string) string {
	return strings.TrimRight(f, "\n")
}
