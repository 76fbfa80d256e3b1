package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	l logrus.FieldLogger
}

type Conf struct {
	Level string
	// File enables size-rotated file output next to stderr.
	File string
}

func New(conf Conf) (*Logger, error) {
	base := logrus.New()
	base.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	level := logrus.InfoLevel

	if conf.Level != "" {
		var err error

		level, err = logrus.ParseLevel(conf.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", conf.Level, err)
		}
	}

	base.SetLevel(level)

	var out io.Writer = os.Stderr

	if conf.File != "" {
		//nolint:gomnd
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   conf.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}

	base.SetOutput(out)

	return &Logger{l: base}, nil
}

// Wrap builds a Logger on top of an existing logrus logger or entry.
func Wrap(l logrus.FieldLogger) *Logger {
	return &Logger{l: l}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	base := logrus.New()
	base.SetOutput(io.Discard)

	return &Logger{l: base}
}

func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{l: l.l.WithFields(fields)}
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.l.Errorf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.l.Warnf(format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.l.Infof(format, v...)
}

func (l *Logger) LogDebugf(format string, v ...any) {
	l.l.Debugf(format, v...)
}
