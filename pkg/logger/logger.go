// Package logger provides structured logging for the application on top of
// log/slog, with a process-wide default instance.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger to provide consistent logging across the
// application. The slog methods (Debug, Info, Warn, Error, With) are
// available through embedding.
type Logger struct {
	*slog.Logger
}

// Config holds logger configuration.
type Config struct {
	Level  string `yaml:"level" json:"level"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" json:"format"` // "text", "json"
	Output string `yaml:"output" json:"output"` // "stdout", "stderr", "file"
	File   string `yaml:"file" json:"file"`     // path when Output is "file"
}

var globalLogger *Logger

// New creates a new Logger instance. When a log file cannot be opened the
// logger falls back to stdout and notes the failure on stderr.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(config.Level)}

	var writer io.Writer = os.Stdout
	switch strings.ToLower(config.Output) {
	case "stderr":
		writer = os.Stderr
	case "file":
		if config.File != "" {
			f, err := os.OpenFile(config.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "logger: cannot open %s, falling back to stdout: %v\n", config.File, err)
			} else {
				writer = f
			}
		}
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	l := &Logger{Logger: slog.New(handler)}
	if globalLogger == nil {
		globalLogger = l
	}
	return l
}

// parseLevel maps a config string to a slog level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// Global returns the global logger instance.
func Global() *Logger {
	if globalLogger == nil {
		return New(Config{Level: "info", Format: "text"})
	}
	return globalLogger
}

// SetGlobal sets the global logger instance.
func SetGlobal(l *Logger) {
	globalLogger = l
}
