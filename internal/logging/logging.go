// Package logging builds the process logger: a slog text handler writing to
// stdout and, optionally, appending to a log file.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Logger pairs the slog logger with the file it appends to, if any.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a logger at the given level. When path is non-empty the
// output is also appended to that file; its directory is created if needed.
func New(stdout io.Writer, path string, level slog.Level) (*Logger, error) {
	if stdout == nil {
		stdout = os.Stdout
	}
	writers := []io.Writer{stdout}

	var file *os.File
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: level})
	return &Logger{Logger: slog.New(handler), file: file}, nil
}

// Close releases the log file. Safe to call when there is none.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
