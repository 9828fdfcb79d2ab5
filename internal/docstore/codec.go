package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/codeflow/panel/internal/document"
)

// Codec converts a document to and from its serialized form.
type Codec interface {
	Decode(data []byte) (document.Document, error)
	Encode(doc document.Document) ([]byte, error)
	Name() string
}

// YAML is the engine's native config format (~/.autopr.yaml).
type YAML struct{}

func (YAML) Name() string { return "yaml" }

// Decode parses YAML. Empty input decodes to an empty document.
func (YAML) Decode(data []byte) (document.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return document.New(), nil
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	doc, err := document.FromValue(raw)
	if err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return doc, nil
}

// Encode renders YAML with two-space indentation and sorted keys.
func (YAML) Encode(doc document.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(normalized(doc))); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// JSON accepts JSON with comments and trailing commas and writes plain
// indented JSON.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Decode(data []byte) (document.Document, error) {
	stripped := jsonc.ToJSON(data)
	if len(bytes.TrimSpace(stripped)) == 0 {
		return document.New(), nil
	}
	doc, err := document.DecodeJSON(stripped)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return doc, nil
}

func (JSON) Encode(doc document.Document) ([]byte, error) {
	data, err := json.MarshalIndent(map[string]any(normalized(doc)), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// CodecFor picks a codec from the file extension; unknown extensions use YAML.
func CodecFor(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return JSON{}
	default:
		return YAML{}
	}
}

func normalized(doc document.Document) document.Document {
	if doc == nil {
		return document.New()
	}
	return doc
}
