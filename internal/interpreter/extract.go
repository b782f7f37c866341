package interpreter

import (
	"encoding/json"
	"strings"
)

// ExtractJSON pulls a JSON object out of free text. It strips a surrounding
// code fence, tries a direct parse, then tries each balanced {...} span and
// finally the span from the first '{' to the last '}'. Anything that is not
// a JSON object yields false.
func ExtractJSON(content string) (map[string]any, bool) {
	content = StripFence(strings.TrimSpace(content))
	if content == "" {
		return nil, false
	}
	if obj, ok := parseObject(content); ok {
		return obj, true
	}
	for start := strings.IndexByte(content, '{'); start >= 0; {
		if end := matchBrace(content, start); end > start {
			if obj, ok := parseObject(content[start : end+1]); ok {
				return obj, true
			}
		}
		next := strings.IndexByte(content[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	first, last := strings.IndexByte(content, '{'), strings.LastIndexByte(content, '}')
	if first >= 0 && last > first {
		return parseObject(content[first : last+1])
	}
	return nil, false
}

// StripFence removes a leading ``` line and, when present, the closing ```
// line. Text that does not start with a fence is returned unchanged.
func StripFence(content string) string {
	if !strings.HasPrefix(content, "```") {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 1 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		return strings.Join(lines[1:len(lines)-1], "\n")
	}
	return strings.Join(lines[1:], "\n")
}

func parseObject(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// matchBrace returns the index of the '}' closing the '{' at start, skipping
// braces inside string literals, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
