package clip

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTextUnderLimit(t *testing.T) {
	if got := Text("short", 10); got != "short" {
		t.Fatalf("expected input unchanged, got %q", got)
	}
	exact := strings.Repeat("x", 10)
	if got := Text(exact, 10); got != exact {
		t.Fatalf("expected input at limit unchanged, got %q", got)
	}
}

func TestTextOverLimit(t *testing.T) {
	for _, size := range []int{15001, 20000, 100000} {
		in := strings.Repeat("a", size)
		got := Text(in, 15000)
		if len(got) >= len(in) {
			t.Fatalf("size %d: expected output shorter than input, got %d", size, len(got))
		}
		if !strings.HasSuffix(got, Marker) {
			t.Fatalf("size %d: expected marker suffix", size)
		}
		if n := utf8.RuneCountInString(got); n != 15000 {
			t.Fatalf("size %d: expected 15000 runes, got %d", size, n)
		}
	}
}

func TestTextKeepsRunesWhole(t *testing.T) {
	in := strings.Repeat("✓", 50)
	got := TextWith(in, 10, "…")
	if !utf8.ValidString(got) {
		t.Fatalf("expected valid utf8, got %q", got)
	}
	if got != strings.Repeat("✓", 9)+"…" {
		t.Fatalf("unexpected truncation %q", got)
	}
}

func TestTextTinyLimit(t *testing.T) {
	got := Text("abcdefghijklmnopqrstuvwxyz0123456789", 3)
	if got != Marker {
		t.Fatalf("expected bare marker when limit is smaller than marker, got %q", got)
	}
}

func TestHead(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	got := Head(items, 2, "... and %d more")
	want := []string{"a", "b", "... and 2 more"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("Head = %v, want %v", got, want)
	}
	if got := Head(items, 10, "... and %d more"); len(got) != 4 {
		t.Fatalf("expected all items, got %v", got)
	}
	if got := Head(items, 1, ""); len(got) != 1 {
		t.Fatalf("expected silent drop, got %v", got)
	}
	got[0] = "mutated"
	if items[0] != "a" {
		t.Fatalf("Head must not alias its input")
	}
}

func TestJoinAndLines(t *testing.T) {
	if got := Join([]string{"x", "y", "z"}, 2, ", ", "+%d"); got != "x, y, +1" {
		t.Fatalf("Join = %q", got)
	}
	if got := Lines("1\n2\n3\n4\n", 2); got != "3\n4" {
		t.Fatalf("Lines = %q", got)
	}
}
