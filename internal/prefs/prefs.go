// Package prefs persists panel UI preferences in
// ~/.config/codeflow/prefs.toml. A missing or unreadable file never stops the
// panel; defaults are used instead.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/codeflow/panel/internal/config"
)

// Prefs holds user preferences.
type Prefs struct {
	Theme string `toml:"theme"`
	// View is the view shown at startup: dashboard, logs or config.
	View string `toml:"view"`
}

const (
	defaultPrefsPath = "~/.config/codeflow/prefs.toml"
	defaultTheme     = "Dracula"
	defaultView      = "dashboard"
)

var knownViews = map[string]bool{"dashboard": true, "logs": true, "config": true}

// Default returns the preferences used when none are stored.
func Default() Prefs {
	return Prefs{Theme: defaultTheme, View: defaultView}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from path, falling back to defaults for anything
// missing or invalid.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Default()
	}
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Default()
	}

	var p Prefs
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Default()
	}
	p.Theme = strings.TrimSpace(p.Theme)
	if p.Theme == "" {
		p.Theme = defaultTheme
	}
	p.View = strings.ToLower(strings.TrimSpace(p.View))
	if !knownViews[p.View] {
		p.View = defaultView
	}
	return p
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return config.ExpandPath(defaultPrefsPath)
	}
	return config.ExpandPath(path)
}
