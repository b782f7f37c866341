// Package clip bounds text and lists before they are placed into prompts or
// reports, so every truncation carries the same visible marker.
package clip

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Marker is appended to text that was cut short.
const Marker = "\n... (output truncated)"

// Text returns s unchanged when it holds at most max runes. Longer input is
// cut so that the kept prefix plus Marker is exactly max runes.
func Text(s string, max int) string {
	return TextWith(s, max, Marker)
}

// TextWith is Text with a caller supplied marker.
func TextWith(s string, max int, marker string) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	keep := max - utf8.RuneCountInString(marker)
	if keep < 0 {
		keep = 0
	}
	return prefix(s, keep) + marker
}

// Truncated reports whether Text would cut s.
func Truncated(s string, max int) bool {
	return max > 0 && utf8.RuneCountInString(s) > max
}

// Head returns at most n items. When items are dropped, a last line built
// from more (a format with one %d verb for the dropped count) is appended.
// An empty more drops silently.
func Head(items []string, n int, more string) []string {
	if n < 0 {
		n = 0
	}
	if len(items) <= n {
		return append([]string(nil), items...)
	}
	out := append([]string(nil), items[:n]...)
	if more != "" {
		out = append(out, fmt.Sprintf(more, len(items)-n))
	}
	return out
}

// Join is Head followed by strings.Join.
func Join(items []string, n int, sep, more string) string {
	return strings.Join(Head(items, n, more), sep)
}

// Lines keeps the last n lines of s.
func Lines(s string, n int) string {
	if n <= 0 {
		return s
	}
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) <= n {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func prefix(s string, runes int) string {
	if runes <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == runes {
			return s[:i]
		}
		count++
	}
	return s
}
