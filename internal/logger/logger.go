package logger

import (
	"io"
	"maps"

	"github.com/sirupsen/logrus"
	"github.com/smartcontractkit/libocr/commontypes"
)

var _ commontypes.Logger = &Logger{}

// Logger implements commontypes.Logger on top of logrus. It is the default logger of key generation sessions that
// are not given one explicitly.
type Logger struct {
	logger *logrus.Logger
}

func New(level logrus.Level) *Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	return &Logger{logger}
}

// NewWithOutput is like New, but writes JSON formatted entries to out.
func NewWithOutput(level logrus.Level, out io.Writer) *Logger {
	l := New(level)
	l.logger.SetOutput(out)
	l.logger.SetFormatter(&logrus.JSONFormatter{})
	return l
}

func (l *Logger) Trace(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Trace(msg)
}

func (l *Logger) Debug(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l *Logger) Info(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Info(msg)
}

func (l *Logger) Warn(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Warn(msg)
}

func (l *Logger) Error(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Error(msg)
}

func (l *Logger) Critical(msg string, fields commontypes.LogFields) {
	l.logger.WithFields(logrus.Fields(fields)).Error("CRITICAL: " + msg)
}

// With returns a logger that adds the given fields to every entry.
func With(logger commontypes.Logger, fields commontypes.LogFields) commontypes.Logger {
	return &withFields{logger, fields}
}

type withFields struct {
	logger commontypes.Logger
	fields commontypes.LogFields
}

func (w *withFields) merge(fields commontypes.LogFields) commontypes.LogFields {
	merged := make(commontypes.LogFields, len(w.fields)+len(fields))
	maps.Copy(merged, w.fields)
	maps.Copy(merged, fields)
	return merged
}

func (w *withFields) Trace(msg string, fields commontypes.LogFields) {
	w.logger.Trace(msg, w.merge(fields))
}

func (w *withFields) Debug(msg string, fields commontypes.LogFields) {
	w.logger.Debug(msg, w.merge(fields))
}

func (w *withFields) Info(msg string, fields commontypes.LogFields) {
	w.logger.Info(msg, w.merge(fields))
}

func (w *withFields) Warn(msg string, fields commontypes.LogFields) {
	w.logger.Warn(msg, w.merge(fields))
}

func (w *withFields) Error(msg string, fields commontypes.LogFields) {
	w.logger.Error(msg, w.merge(fields))
}

func (w *withFields) Critical(msg string, fields commontypes.LogFields) {
	w.logger.Critical(msg, w.merge(fields))
}
