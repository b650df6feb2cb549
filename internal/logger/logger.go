package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide logger. It is usable before Initialize is called
// so packages and tests can log without setup.
var Logger = newLogger(os.Stderr, logrus.InfoLevel, "text")

// Initialize configures the process logger from config values. An empty level
// falls back to LOG_LEVEL, then to info.
func Initialize(level, format string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	Logger = newLogger(os.Stdout, parseLevel(level), format)
	Logger.WithFields(logrus.Fields{
		"log_level":  Logger.GetLevel().String(),
		"log_format": format,
	}).Info("logging initialized")
}

// SetOutput redirects the logger, mostly for tests that assert on log lines.
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

func newLogger(w io.Writer, level logrus.Level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(level)
	if strings.EqualFold(format, "json") {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
			DisableColors:   true,
		})
	}
	return l
}

func parseLevel(s string) logrus.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return logrus.DebugLevel
	case "WARN", "WARNING":
		return logrus.WarnLevel
	case "ERROR":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// WithContext creates a logger with additional context fields
func WithContext(fields map[string]interface{}) *logrus.Entry {
	return Logger.WithFields(fields)
}

// WithSession tags entries with the session and component they concern.
func WithSession(sessionID, component string) *logrus.Entry {
	return Logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"component":  component,
	})
}

// WithError creates a logger with error context
func WithError(err error, component string) *logrus.Entry {
	fields := logrus.Fields{"component": component}
	if err != nil {
		fields["error"] = err.Error()
	}
	return Logger.WithFields(fields)
}

func Debug(msg string, fields map[string]interface{}) {
	Logger.WithFields(fields).Debug(msg)
}

func Info(msg string, fields map[string]interface{}) {
	Logger.WithFields(fields).Info(msg)
}

func Warn(msg string, fields map[string]interface{}) {
	Logger.WithFields(fields).Warn(msg)
}

func Error(msg string, fields map[string]interface{}) {
	Logger.WithFields(fields).Error(msg)
}

func Fatal(msg string, fields map[string]interface{}) {
	Logger.WithFields(fields).Fatal(msg)
}
