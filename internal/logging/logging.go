package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps a logrus logger writing to both stdout and a rotated file.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger rotating under dir. Level falls back to info when
// unparseable or empty.
func New(dir, level string) (*Logger, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "farm-alert-service.log"),
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return &Logger{Logger: l}, nil
}

// NewNop returns a logger that discards everything. Used in tests.
func NewNop() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}
