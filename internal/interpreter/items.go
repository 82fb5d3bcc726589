package interpreter

import (
	"encoding/json"
	"strings"
)

// ParseItems extracts a list of strings from raw reasoning output.
//
// It strips fence markers first, then tries the whole text as a JSON array.
// On failure it retries the substring between the first '[' and the last
// ']'. On total failure it returns an empty list; callers treat that as a
// no-op, not an error.
func ParseItems(raw string) []string {
	text := stripFences(raw)

	if items, ok := tryParseArray(text); ok {
		return items
	}

	open := strings.Index(text, "[")
	close := strings.LastIndex(text, "]")
	if open >= 0 && close > open {
		if items, ok := tryParseArray(text[open : close+1]); ok {
			return items
		}
	}

	return []string{}
}

func tryParseArray(text string) ([]string, bool) {
	var items []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &items); err != nil {
		return nil, false
	}
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned, true
}

// stripFences removes a wrapping markdown code fence, with or without a
// language tag, leaving the inner content.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the language tag on the opening fence line.
	if idx := strings.Index(text, "\n"); idx >= 0 {
		first := strings.TrimSpace(text[:idx])
		if first != "" && !strings.ContainsAny(first, "[{") {
			text = text[idx+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
