package ui

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codeflow/panel/internal/document"
)

// parseAssignment turns "path.to.key = value" into a merge patch. The value
// is read as a YAML scalar or flow collection, so 5 is an int, true a bool
// and "5" a string. An empty value deletes the key.
func parseAssignment(input string) (document.Document, error) {
	path, raw, ok := strings.Cut(input, "=")
	if !ok {
		return nil, errors.New("expected key = value")
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("missing key")
	}
	keys := strings.Split(path, ".")
	for i, k := range keys {
		keys[i] = strings.TrimSpace(k)
		if keys[i] == "" {
			return nil, fmt.Errorf("empty key segment in %q", path)
		}
	}

	var value any
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("parse value: %w", err)
		}
		value = document.Normalize(value)
	}
	return document.Patch(value, keys...), nil
}
