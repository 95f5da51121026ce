// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "concierge.log"

const (
	maxLogSizeMB  = 5
	maxLogBackups = 5
	maxLogAgeDays = 14
)

// Config selects the level, format and destination of the logs.
type Config struct {
	// Level is one of debug, info, warn or error. Empty means info.
	Level string `yaml:"level"`
	// Format is json or text. Empty means json.
	Format string `yaml:"format"`
	// File is the path of a rotating log file. Empty means stderr.
	File string `yaml:"file"`
}

// Init builds a logger from cfg and installs it as the slog default. When the log directory cannot be
// created the returned logger discards everything and the error is returned alongside it.
func Init(cfg Config) (*slog.Logger, error) {
	handlerOptions := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}

	logPath := strings.TrimSpace(cfg.File)
	if logPath == "" {
		logger := slog.New(newHandler(cfg.Format, os.Stderr, handlerOptions))
		slog.SetDefault(logger)
		return logger, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		logger := slog.New(newHandler(cfg.Format, io.Discard, handlerOptions))
		slog.SetDefault(logger)
		return logger, err
	}

	writer := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    maxLogSizeMB,
		MaxBackups: maxLogBackups,
		MaxAge:     maxLogAgeDays,
		Compress:   true,
	}

	logger := slog.New(newHandler(cfg.Format, writer, handlerOptions))
	slog.SetDefault(logger)
	return logger, nil
}

// DefaultFile returns the log file used when logging to stderr is not an option, e.g. while the
// terminal is owned by the chat UI.
func DefaultFile() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil || strings.TrimSpace(cacheDir) == "" {
		return filepath.Join(".concierge", "logs", defaultLogFile)
	}
	return filepath.Join(cacheDir, "concierge", "logs", defaultLogFile)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newHandler(format string, out io.Writer, opts *slog.HandlerOptions) slog.Handler {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text":
		return slog.NewTextHandler(out, opts)
	default:
		return slog.NewJSONHandler(out, opts)
	}
}
