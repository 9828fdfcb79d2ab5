// Package logger builds the panel's zap logger. The terminal belongs to the
// TUI, so log output goes to a file.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels accepted in configuration.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// defaultLevel applies when an unknown level string is provided.
const defaultLevel = zapcore.InfoLevel

// Options configure a logger.
type Options struct {
	// Path is the log file; it is created along with its directory.
	Path  string
	Level string
}

// Logger owns the sugared logger and the file behind it.
type Logger struct {
	*zap.SugaredLogger
	file *os.File
}

// New opens opts.Path for appending and returns a console-encoded logger.
func New(opts Options) (*Logger, error) {
	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	core := newFileCore(file, ParseLevel(opts.Level))
	return &Logger{SugaredLogger: zap.New(core).Sugar(), file: file}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Close flushes buffered entries and closes the file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = l.Sync()
	return l.file.Close()
}

// ParseLevel converts a textual level; unknown values fall back to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return defaultLevel
	}
}

func newFileCore(file *os.File, level zapcore.Level) zapcore.Core {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder

	encoder := zapcore.NewConsoleEncoder(cfg)
	return zapcore.NewCore(encoder, zapcore.Lock(file), zap.NewAtomicLevelAt(level))
}
