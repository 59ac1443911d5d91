package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/any-hub/npmcache/internal/config"
)

// InitLogger builds the process-wide structured JSON logger, rotating to a
// file when LogFilePath is set and falling back to stdout otherwise.
func InitLogger(cfg *config.Config) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	output, outErr := buildOutput(cfg.LogFilePath, cfg.LogMaxSize, cfg.LogMaxBackups, cfg.LogCompress)
	if outErr != nil {
		fmt.Fprintf(os.Stderr, "logger_fallback: %v\n", outErr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetOutput(output)
	logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})

	if outErr != nil {
		logger.WithFields(logrus.Fields{
			"action": "logger_fallback",
			"path":   cfg.LogFilePath,
		}).Warn(outErr.Error())
	}

	return logger, nil
}

// buildOutput creates the rotating file writer, or stdout when path is empty.
// Also used by the stats sink (§4.3) to back its own append-only event log.
func buildOutput(path string, maxSize, maxBackups int, compress bool) (io.Writer, error) {
	if path == "" {
		return os.Stdout, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.Stdout, fmt.Errorf("create log dir: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Compress:   compress,
		LocalTime:  true,
	}
	return rotator, nil
}

// NewRotatingWriter exposes buildOutput for other packages (stats sink) that
// want the same rotation behavior for a separate log stream.
func NewRotatingWriter(path string, maxSize, maxBackups int, compress bool) (io.Writer, error) {
	return buildOutput(path, maxSize, maxBackups, compress)
}
