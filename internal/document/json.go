package document

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeJSON parses a JSON object. Integral numbers decode as int64 and the
// rest as float64, so counts keep their integer type.
func DecodeJSON(data []byte) (Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	doc, err := FromValue(jsonNumbers(raw))
	if err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return doc, nil
}

func jsonNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		for k, val := range t {
			t[k] = jsonNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = jsonNumbers(val)
		}
		return t
	default:
		return v
	}
}
