package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the panel's settings.
type Config struct {
	APIBind              string
	StatusPath           string
	LogsPath             string
	DocumentPath         string
	PollInterval         time.Duration
	Reconnect            bool
	ReconnectMaxAttempts int
	ConflictCheck        bool
	LogFile              string
	LogLevel             string
	ExportDir            string
}

const (
	defaultConfigPath           = "~/.config/codeflow/panel.toml"
	defaultAPIBind              = "127.0.0.1:8000"
	defaultStatusPath           = "/status"
	defaultLogsPath             = "/ws/logs"
	defaultDocumentPath         = "~/.autopr.yaml"
	defaultPollInterval         = 5 * time.Second
	defaultReconnectMaxAttempts = 5
	defaultLogFile              = "~/.local/state/codeflow/panel.log"
	defaultLogLevel             = "info"
	defaultExportDir            = "~/Downloads"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBind:              defaultAPIBind,
		StatusPath:           defaultStatusPath,
		LogsPath:             defaultLogsPath,
		DocumentPath:         mustExpand(defaultDocumentPath),
		PollInterval:         defaultPollInterval,
		Reconnect:            true,
		ReconnectMaxAttempts: defaultReconnectMaxAttempts,
		LogFile:              mustExpand(defaultLogFile),
		LogLevel:             defaultLogLevel,
		ExportDir:            mustExpand(defaultExportDir),
	}
}

// Load locates and parses the panel config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBind              string `toml:"api_bind"`
		StatusPath           string `toml:"status_path"`
		LogsPath             string `toml:"logs_path"`
		DocumentPath         string `toml:"document_path"`
		PollInterval         string `toml:"poll_interval"`
		Reconnect            *bool  `toml:"reconnect"`
		ReconnectMaxAttempts *int   `toml:"reconnect_max_attempts"`
		ConflictCheck        bool   `toml:"conflict_check"`
		LogFile              string `toml:"log_file"`
		LogLevel             string `toml:"log_level"`
		ExportDir            string `toml:"export_dir"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIBind = orDefault(raw.APIBind, defaultAPIBind)
	cfg.StatusPath = orDefault(raw.StatusPath, defaultStatusPath)
	cfg.LogsPath = orDefault(raw.LogsPath, defaultLogsPath)
	cfg.DocumentPath = mustExpand(orDefault(raw.DocumentPath, defaultDocumentPath))
	cfg.LogFile = mustExpand(orDefault(raw.LogFile, defaultLogFile))
	cfg.LogLevel = strings.ToLower(orDefault(raw.LogLevel, defaultLogLevel))
	cfg.ExportDir = mustExpand(orDefault(raw.ExportDir, defaultExportDir))
	cfg.ConflictCheck = raw.ConflictCheck

	if interval := strings.TrimSpace(raw.PollInterval); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return Config{}, fmt.Errorf("parse config: poll_interval: %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("parse config: poll_interval must be positive, got %s", d)
		}
		cfg.PollInterval = d
	}
	if raw.Reconnect != nil {
		cfg.Reconnect = *raw.Reconnect
	}
	if raw.ReconnectMaxAttempts != nil {
		if *raw.ReconnectMaxAttempts < 0 {
			return Config{}, fmt.Errorf("parse config: reconnect_max_attempts must not be negative")
		}
		cfg.ReconnectMaxAttempts = *raw.ReconnectMaxAttempts
	}

	return cfg, nil
}

// ExpandPath expands a leading ~ to the home directory and returns an
// absolute path.
func ExpandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return ExpandPath(defaultConfigPath)
	}
	return ExpandPath(path)
}

func mustExpand(path string) string {
	expanded, err := ExpandPath(path)
	if err != nil {
		return path
	}
	return expanded
}
