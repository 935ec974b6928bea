package llm

import (
	"encoding/json"
	"strings"
)

// ParseJSONResponse parses an object-shaped JSON response from an LLM. It
// strips markdown code fences, then falls back to the outermost {...}
// substring when the completion wraps the object in prose. Returns nil when
// no valid object can be recovered.
func ParseJSONResponse(text string) map[string]any {
	text = stripFences(text)
	if text == "" {
		return nil
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	if sub := outermost(text, '{', '}'); sub != "" {
		if err := json.Unmarshal([]byte(sub), &result); err == nil {
			return result
		}
	}
	return nil
}

// ParseJSONArray parses an array-shaped JSON response from an LLM with the
// same fence-stripping and substring recovery as ParseJSONResponse.
func ParseJSONArray(text string) []any {
	text = stripFences(text)
	if text == "" {
		return nil
	}

	var result []any
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return result
	}

	if sub := outermost(text, '[', ']'); sub != "" {
		if err := json.Unmarshal([]byte(sub), &result); err == nil {
			return result
		}
	}
	return nil
}

// stripFences removes a surrounding markdown code fence, if any.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	lines := strings.Split(text, "\n")
	endIdx := len(lines) - 1
	for i := len(lines) - 1; i > 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			endIdx = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[1:endIdx], "\n"))
}

// outermost returns the substring from the first open delimiter to the last
// close delimiter, or "" when no such span exists.
func outermost(text string, open, close byte) string {
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, close)
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
