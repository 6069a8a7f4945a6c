// Package logging wires pipeline.Logger to logrus, the structured-logging
// library the broader example pack uses for audio-pipeline diagnostics.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/keathmilligan/flowstt-core/pkg/pipeline"
)

// Logger adapts a *logrus.Logger to pipeline.Logger. The variadic args
// are treated as alternating key/value pairs, mirroring logrus.Fields
// construction.
type Logger struct {
	entry *logrus.Logger
}

// New builds a Logger writing structured, leveled output to stderr.
func New() *Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &Logger{entry: l}
}

// NewWithLevel builds a Logger at the given logrus level (e.g.
// logrus.DebugLevel for verbose runs).
func NewWithLevel(level logrus.Level) *Logger {
	l := New()
	l.entry.SetLevel(level)
	return l
}

func fields(args []interface{}) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f[key] = args[i+1]
	}
	return f
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.entry.WithFields(fields(args)).Debug(msg)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.entry.WithFields(fields(args)).Info(msg)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.entry.WithFields(fields(args)).Warn(msg)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.entry.WithFields(fields(args)).Error(msg)
}

var _ pipeline.Logger = (*Logger)(nil)
