package document

import (
	"math"
	"testing"
)

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"both nil", nil, nil, true},
		{"scalar strings", "a", "a", true},
		{"different strings", "a", "b", false},
		{"int vs float", 3, 3.0, true},
		{"int vs uint64", int64(7), uint64(7), true},
		{"large uints differ", uint64(math.MaxUint64), uint64(math.MaxUint64 - 1), false},
		{"large uints match", uint64(math.MaxUint64), uint64(math.MaxUint64), true},
		{"large uint vs int", uint64(1 << 63), int64(math.MinInt64), false},
		{"two to the 63 vs min int", float64(1 << 63), int64(math.MinInt64), false},
		{"two to the 63 vs uint", float64(1 << 63), uint64(1 << 63), true},
		{"min int float", float64(math.MinInt64), int64(math.MinInt64), true},
		{"huge float vs max uint", float64(1<<63) * 4, uint64(math.MaxUint64), false},
		{"NaN", math.NaN(), math.NaN(), false},
		{"fraction differs", 3, 3.5, false},
		{"number vs string", 3, "3", false},
		{"key order ignored",
			map[string]any{"a": 1, "b": map[string]any{"x": true, "y": "z"}},
			map[string]any{"b": map[string]any{"y": "z", "x": true}, "a": 1},
			true},
		{"missing key", map[string]any{"a": 1}, map[string]any{"a": 1, "b": 2}, false},
		{"sequence order matters", []any{1, 2}, []any{2, 1}, false},
		{"nested sequences", []any{map[string]any{"k": []any{"v"}}}, []any{map[string]any{"k": []any{"v"}}}, true},
		{"document vs map", Document{"a": 1}, map[string]any{"a": 1}, true},
		{"nil vs value", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Equal(tt.a, tt.b); got != tt.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := Equal(tt.b, tt.a); got != tt.want {
				t.Fatalf("Equal(%v, %v) = %v, want %v (symmetry)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestMerge_AppliesPatchWithoutMutatingInputs(t *testing.T) {
	base := Document{
		"retries": 3,
		"llm":     map[string]any{"provider": "openai", "model": "gpt"},
		"drop":    "me",
	}
	patch := Document{
		"retries": 5,
		"llm":     map[string]any{"model": "o3"},
		"drop":    nil,
	}

	got := Merge(base, patch)
	want := Document{
		"retries": 5,
		"llm":     map[string]any{"provider": "openai", "model": "o3"},
	}
	if !Equal(got, want) {
		t.Fatalf("Merge = %#v, want %#v", got, want)
	}
	if base["retries"] != 3 || base["drop"] != "me" {
		t.Fatalf("base mutated: %#v", base)
	}
	if base["llm"].(map[string]any)["model"] != "gpt" {
		t.Fatalf("nested base mutated: %#v", base["llm"])
	}

	got["llm"].(map[string]any)["provider"] = "changed"
	if base["llm"].(map[string]any)["provider"] != "openai" {
		t.Fatalf("result shares storage with base")
	}
}

func TestMerge_MapReplacesScalar(t *testing.T) {
	got := Merge(Document{"a": 1}, Document{"a": map[string]any{"b": 2}})
	if !Equal(got, Document{"a": map[string]any{"b": 2}}) {
		t.Fatalf("Merge = %#v", got)
	}
}

func TestClone_IsDeep(t *testing.T) {
	orig := Document{"list": []any{map[string]any{"k": "v"}}}
	dup := orig.Clone()
	dup["list"].([]any)[0].(map[string]any)["k"] = "changed"
	if orig["list"].([]any)[0].(map[string]any)["k"] != "v" {
		t.Fatalf("Clone shares nested storage")
	}
	if Document(nil).Clone() != nil {
		t.Fatalf("Clone(nil) should be nil")
	}
}

func TestNormalize_StringifiesKeys(t *testing.T) {
	in := map[any]any{1: "one", "nested": map[any]any{true: []any{map[any]any{"x": 1}}}}
	doc, err := FromValue(in)
	if err != nil {
		t.Fatalf("FromValue returned error: %v", err)
	}
	want := Document{"1": "one", "nested": map[string]any{"true": []any{map[string]any{"x": 1}}}}
	if !Equal(doc, want) {
		t.Fatalf("FromValue = %#v, want %#v", doc, want)
	}
}

func TestFromValue_RejectsNonMapping(t *testing.T) {
	if _, err := FromValue([]any{1}); err == nil {
		t.Fatalf("FromValue([]any) returned nil error")
	}
	doc, err := FromValue(nil)
	if err != nil || doc == nil || len(doc) != 0 {
		t.Fatalf("FromValue(nil) = %#v, %v; want empty document", doc, err)
	}
}

func TestLookupAndPatch(t *testing.T) {
	p := Patch(5, "workflow", "limits", "retries")
	v, ok := p.Lookup("workflow", "limits", "retries")
	if !ok || v != 5 {
		t.Fatalf("Lookup = %v, %v; want 5, true", v, ok)
	}
	if _, ok := p.Lookup("workflow", "missing"); ok {
		t.Fatalf("Lookup of missing path reported ok")
	}
	if _, ok := p.Lookup("workflow", "limits", "retries", "deeper"); ok {
		t.Fatalf("Lookup through scalar reported ok")
	}
	if len(Patch(1)) != 0 {
		t.Fatalf("Patch with no path should be empty")
	}
}
