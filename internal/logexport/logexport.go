// Package logexport writes the log stream buffer out as plain text, for the
// logs view's copy and download actions.
package logexport

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeflow/panel/internal/logstream"
)

// FilePrefix starts every exported file name.
const FilePrefix = "codeflow-logs-"

// Text joins entry texts with newlines, oldest first.
func Text(entries []logstream.Entry) string {
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.Text)
	}
	return b.String()
}

// FileName returns the export name for a given time, e.g.
// codeflow-logs-2026-10-14T09:30:00Z.txt.
func FileName(at time.Time) string {
	return FilePrefix + at.UTC().Format(time.RFC3339) + ".txt"
}

// Write saves entries to a new file in dir and returns its path. An existing
// file with the same name is never overwritten.
func Write(dir string, entries []logstream.Entry, at time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(at))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create export: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, e := range entries {
		if _, err := w.WriteString(e.Text); err != nil {
			_ = file.Close()
			return "", fmt.Errorf("write export: %w", err)
		}
		_ = w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		_ = file.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	return path, nil
}
