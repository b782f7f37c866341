package filter

import (
	"strings"
	"testing"
)

func TestCompileAndMatch(t *testing.T) {
	patterns, err := Compile([]string{"Divide", "  ", "/^test_add\\b/"})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(patterns) != 2 {
		t.Fatalf("blank pattern must be dropped, got %d", len(patterns))
	}
	cases := []struct {
		value string
		want  bool
	}{
		{"tests/test_calc.py::test_divide_by_zero", true},
		{"test_add", true},
		{"test_addition", false},
		{"test_subtract", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Any(patterns, tc.value); got != tc.want {
			t.Errorf("Any(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
	if patterns[1].String() != "/^test_add\\b/" {
		t.Fatalf("String = %q", patterns[1].String())
	}
}

func TestCompileRejectsBadRegexp(t *testing.T) {
	if _, err := Compile([]string{"/(/"}); err == nil || !strings.Contains(err.Error(), "compile regexp") {
		t.Fatalf("expected compile error, got %v", err)
	}
}

func TestSelect(t *testing.T) {
	type item struct{ name, file string }
	items := []item{{"test_a", "x_test.go"}, {"test_b", "y_test.go"}, {"test_c", "x_test.go"}}
	keys := func(i item) []string { return []string{i.name, i.file} }

	if got := Select(items, nil, keys); len(got) != 3 {
		t.Fatalf("no patterns must keep everything, got %v", got)
	}
	patterns, _ := Compile([]string{"x_test"})
	got := Select(items, patterns, keys)
	if len(got) != 2 || got[0].name != "test_a" || got[1].name != "test_c" {
		t.Fatalf("Select = %v", got)
	}
}
