package chat

import (
	"regexp"
	"strings"
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// StripHTML removes anything that looks like a markup tag from s.
func StripHTML(s string) string {
	return strings.TrimSpace(htmlTag.ReplaceAllString(s, ""))
}

// SanitizeContext returns a copy of ctx with HTML stripped from every string,
// including keys and values nested in maps and slices.
func SanitizeContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[StripHTML(k)] = sanitizeValue(v)
	}
	return out
}

func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return StripHTML(t)
	case map[string]any:
		return SanitizeContext(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}
