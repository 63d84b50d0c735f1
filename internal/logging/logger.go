// Package logging provides structured logging for the equipment-sync core.
package logging

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogLevel represents a log level.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// Logger provides structured JSON logging backed by logrus.
type Logger struct {
	l *logrus.Logger
}

var (
	// global logger instance
	global *Logger
	once   sync.Once
)

// Init initializes the global logger.
func Init(out io.Writer, minLevel LogLevel) {
	once.Do(func() {
		global = NewLogger(out, minLevel)
	})
}

// Get returns the global logger instance.
func Get() *Logger {
	if global == nil {
		Init(os.Stdout, LevelInfo)
	}
	return global
}

// NewLogger creates an independent logger instance. Tests use this to
// avoid sharing the global.
func NewLogger(out io.Writer, minLevel LogLevel) *Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	l.SetLevel(toLogrusLevel(minLevel))
	return &Logger{l: l}
}

// toLogrusLevel maps a LogLevel to the logrus equivalent.
func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// entry builds a logrus entry carrying the merged context maps.
func (lg *Logger) entry(context ...map[string]interface{}) *logrus.Entry {
	fields := logrus.Fields{}
	for _, c := range context {
		for k, v := range c {
			fields[k] = v
		}
	}
	return lg.l.WithFields(fields)
}

// Debug logs a debug message.
func (lg *Logger) Debug(message string, context ...map[string]interface{}) {
	lg.entry(context...).Debug(message)
}

// Info logs an info message.
func (lg *Logger) Info(message string, context ...map[string]interface{}) {
	lg.entry(context...).Info(message)
}

// Warn logs a warning message.
func (lg *Logger) Warn(message string, context ...map[string]interface{}) {
	lg.entry(context...).Warn(message)
}

// Error logs an error message.
func (lg *Logger) Error(message string, err error, context ...map[string]interface{}) {
	e := lg.entry(context...)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// ErrorWithCode logs an error message tagged with an application error code.
func (lg *Logger) ErrorWithCode(message, code string, err error, context ...map[string]interface{}) {
	e := lg.entry(context...).WithField("code", code)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(message)
}

// Convenience functions using global logger

func Debug(message string, context ...map[string]interface{}) {
	Get().Debug(message, context...)
}

func Info(message string, context ...map[string]interface{}) {
	Get().Info(message, context...)
}

func Warn(message string, context ...map[string]interface{}) {
	Get().Warn(message, context...)
}

func Error(message string, err error, context ...map[string]interface{}) {
	Get().Error(message, err, context...)
}

func ErrorWithCode(message, code string, err error, context ...map[string]interface{}) {
	Get().ErrorWithCode(message, code, err, context...)
}
