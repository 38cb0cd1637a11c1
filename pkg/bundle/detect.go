package bundle

import (
	"strings"

	"empacy/pkg/protocol"
)

// DetectContentType classifies a context file. The checks form a
// first-match-wins cascade: extension first, then content sniffing. Reordering
// them changes results for ambiguous files.
func DetectContentType(name, content string) protocol.ContentType {
	switch {
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return protocol.ContentYAML
	case strings.HasSuffix(name, ".json"):
		return protocol.ContentJSON
	case strings.HasSuffix(name, ".md"):
		return protocol.ContentMarkdown
	case strings.HasSuffix(name, ".txt"):
		return protocol.ContentText
	}

	trimmed := strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(trimmed, "{"), strings.HasPrefix(trimmed, "["):
		return protocol.ContentJSON
	case strings.Contains(content, "---") && strings.Contains(content, ":"):
		return protocol.ContentYAML
	case strings.Contains(content, "#"):
		return protocol.ContentMarkdown
	default:
		return protocol.ContentText
	}
}
