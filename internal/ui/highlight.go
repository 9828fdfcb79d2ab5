package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
)

// highlightYAML colors YAML for a 256-color terminal. On any lexer or
// style error the source is returned unchanged.
func highlightYAML(src, style string) string {
	if strings.TrimSpace(src) == "" {
		return src
	}
	if style == "" {
		style = "monokai"
	}
	var buffer strings.Builder
	if err := quick.Highlight(&buffer, src, "yaml", "terminal256", style); err != nil {
		return src
	}
	return strings.TrimRight(buffer.String(), "\n")
}
