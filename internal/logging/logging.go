package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger is the process-wide logger of the local CLI. It discards everything
// until Initialize enables debug output.
var Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))

// Initialize sets up the logger based on the debug flag. With debug on, logs go
// to debugFile as JSON, or to stderr as text when no file is given.
func Initialize(debug bool, debugFile string) error {
	if !debug && debugFile == "" {
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return nil
	}

	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	if debugFile == "" {
		Logger = slog.New(slog.NewTextHandler(os.Stderr, opts))
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(debugFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(debugFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	Logger = slog.New(slog.NewJSONHandler(logFile, opts))
	Logger.Info("Debug logging initialized", "log_file", debugFile)
	return nil
}
