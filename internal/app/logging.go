package app

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const logLevelEnv = "SESSIONCTL_LOG_LEVEL"

// openLog opens the controller log for appending and returns a JSON logger
// writing to it. extra, when non-nil, receives a copy of every record.
func openLog(path string, extra io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log: %w", err)
	}
	var w io.Writer = file
	if extra != nil {
		w = io.MultiWriter(file, extra)
	}
	return newLogger(w, levelFromEnv()), file, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func levelFromEnv() slog.Level {
	if strings.EqualFold(strings.TrimSpace(os.Getenv(logLevelEnv)), "debug") {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
