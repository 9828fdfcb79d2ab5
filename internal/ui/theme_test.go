package ui

import (
	"testing"

	"github.com/codeflow/panel/internal/logstream"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 2 {
		t.Fatalf("ThemeNames() returned %d names, want 2", len(names))
	}
	if names[0] != "Dracula" || names[1] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Dracula Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	if got := NextTheme("Dracula"); got != "Slate" {
		t.Fatalf("NextTheme(Dracula) = %q, want Slate", got)
	}
	if got := NextTheme("Slate"); got != "Dracula" {
		t.Fatalf("NextTheme(Slate) = %q, want Dracula", got)
	}
	if got := NextTheme("missing"); got != "Dracula" {
		t.Fatalf("NextTheme(missing) = %q, want Dracula", got)
	}
}

func TestGetTheme_FallsBackToDracula(t *testing.T) {
	if got := GetTheme("nope").Name; got != "Dracula" {
		t.Fatalf("GetTheme(nope).Name = %q, want Dracula", got)
	}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		if th.ChromaStyle == "" {
			t.Fatalf("theme %s has no chroma style", name)
		}
	}
}

func TestConnectionStyle_DistinguishesStates(t *testing.T) {
	styles := GetTheme("Dracula").Styles()
	open := styles.ConnectionStyle(logstream.Open).GetForeground()
	failed := styles.ConnectionStyle(logstream.Failed).GetForeground()
	if open == failed {
		t.Fatalf("open and failed share foreground %v", open)
	}
}
