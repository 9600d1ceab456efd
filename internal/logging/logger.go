// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mci-report-consolidator/internal/domain"
)

// Output destinations.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputFile   = "file"
)

// Formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger from config. The returned closer releases the log
// file when output is "file" and is a no-op otherwise.
func New(cfg domain.LoggingConfig) (*logrus.Logger, io.Closer) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(formatter(cfg.Format))

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(cfg.Output) {
	case OutputStdout:
		logger.SetOutput(os.Stdout)
	case OutputFile:
		if cfg.Filename == "" {
			logger.SetOutput(os.Stderr)
			logger.Warn("Log output is file but no filename is configured, logging to stderr")
			break
		}
		rotating := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		logger.SetOutput(rotating)
		closer = rotating
	default:
		logger.SetOutput(os.Stderr)
	}

	if err != nil && cfg.Level != "" {
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
	}
	return logger, closer
}

func formatter(format string) logrus.Formatter {
	if strings.ToLower(format) == FormatJSON {
		return &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}
	return &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
	}
}
