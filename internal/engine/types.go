package engine

import (
	"fmt"
	"strconv"

	"github.com/codeflow/panel/internal/document"
)

// Summary is the subset of /status the dashboard renders. The document
// itself stays opaque; missing or mistyped fields read as zero values.
type Summary struct {
	Engine         string
	WorkflowEngine string
	Actions        int64
	Integrations   int64
	LLMProviders   int64
}

// Running reports whether the engine declares itself running.
func (s Summary) Running() bool {
	return s.Engine == "running"
}

// WorkflowActive reports whether the workflow engine is active.
func (s Summary) WorkflowActive() bool {
	return s.WorkflowEngine == "active"
}

// Summarize extracts the dashboard fields from a status document.
func Summarize(doc document.Document) Summary {
	return Summary{
		Engine:         stringAt(doc, "engine"),
		WorkflowEngine: stringAt(doc, "workflow_engine", "status"),
		Actions:        countAt(doc, "actions"),
		Integrations:   countAt(doc, "integrations"),
		LLMProviders:   countAt(doc, "llm_providers"),
	}
}

func stringAt(doc document.Document, path ...string) string {
	v, ok := doc.Lookup(path...)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// countAt accepts a number or a collection; collections count their members,
// since the engine reports some registries as lists.
func countAt(doc document.Document, path ...string) int64 {
	v, ok := doc.Lookup(path...)
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case []any:
		return int64(len(t))
	case map[string]any:
		return int64(len(t))
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
