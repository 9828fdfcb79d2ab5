package ui

import (
	"testing"

	"github.com/codeflow/panel/internal/document"
)

func TestParseAssignment(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  document.Document
	}{
		{"int", "retries = 5", document.Document{"retries": 5}},
		{"nested", "engine.mode = fast", document.Document{"engine": map[string]any{"mode": "fast"}}},
		{"bool", "debug=true", document.Document{"debug": true}},
		{"quoted_string", `name = "5"`, document.Document{"name": "5"}},
		{"float", "ratio = 0.5", document.Document{"ratio": 0.5}},
		{"flow_list", "tags = [a, b]", document.Document{"tags": []any{"a", "b"}}},
		{"empty_deletes", "engine.mode =", document.Document{"engine": map[string]any{"mode": nil}}},
		{"spaces_in_value", "title = hello world", document.Document{"title": "hello world"}},
		{"equals_in_value", "expr = a=b", document.Document{"expr": "a=b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseAssignment(tc.input)
			if err != nil {
				t.Fatalf("parseAssignment(%q) error: %v", tc.input, err)
			}
			if !document.Equal(got, tc.want) {
				t.Fatalf("parseAssignment(%q) = %#v, want %#v", tc.input, got, tc.want)
			}
		})
	}
}

func TestParseAssignment_Errors(t *testing.T) {
	for _, input := range []string{"retries", " = 5", "a..b = 1", "a. = 1", "a = [1, 2"} {
		if _, err := parseAssignment(input); err == nil {
			t.Fatalf("parseAssignment(%q) expected error", input)
		}
	}
}

func TestParseAssignment_AppliesAsMergePatch(t *testing.T) {
	base := document.Document{"engine": map[string]any{"mode": "fast", "workers": 2}}
	patch, err := parseAssignment("engine.mode =")
	if err != nil {
		t.Fatalf("parseAssignment error: %v", err)
	}
	got := document.Merge(base, patch)
	want := document.Document{"engine": map[string]any{"workers": 2}}
	if !document.Equal(got, want) {
		t.Fatalf("merged = %#v, want %#v", got, want)
	}
}
