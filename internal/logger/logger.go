package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

type Logger struct {
	log *logrus.Logger
}

func New(level string) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &Logger{log: l}
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.log.Infof(msg, args...)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log.Debugf(msg, args...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log.Warnf(msg, args...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.log.Errorf(msg, args...)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log.Fatalf(msg, args...)
}
