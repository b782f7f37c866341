package version

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	cases := []struct {
		files []string
		want  string
	}{
		{nil, ""},
		{[]string{"go.mod"}, "go"},
		{[]string{"package.json"}, "javascript"},
		{[]string{"package.json", "tsconfig.json"}, "typescript"},
		{[]string{"requirements.txt"}, "python"},
		{[]string{"Gemfile"}, "ruby"},
		{[]string{"Cargo.toml", "package.json"}, "rust"},
	}
	for _, tc := range cases {
		root := t.TempDir()
		for _, f := range tc.files {
			if err := os.WriteFile(filepath.Join(root, f), nil, 0o644); err != nil {
				t.Fatal(err)
			}
		}
		if got := DetectLanguage(root); got != tc.want {
			t.Errorf("DetectLanguage(%v) = %q, want %q", tc.files, got, tc.want)
		}
	}
}

func TestHintPrefersConfigured(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got := Hint(context.Background(), root, "python/pytest"); got != "python/pytest" {
		t.Fatalf("Hint = %q", got)
	}
	if got := Hint(context.Background(), t.TempDir(), ""); got != "" {
		t.Fatalf("empty project must give no hint, got %q", got)
	}
}

func TestRuntimeGo(t *testing.T) {
	if _, err := exec.LookPath("go"); err != nil {
		t.Skip("go toolchain not on PATH")
	}
	info, err := Runtime(context.Background(), "go")
	if err != nil {
		t.Fatalf("Runtime: %v", err)
	}
	if info.Name != "go" || info.Version == "" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestRuntimeUnknownLanguage(t *testing.T) {
	if _, err := Runtime(context.Background(), "cobol"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMissing(t *testing.T) {
	_, err := runCommand(context.Background(), "definitely-not-a-real-binary-testlens")
	if !Missing(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	if Missing(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
}

func TestInfoString(t *testing.T) {
	if got := (Info{Name: "python", Version: "3.12.1"}).String(); got != "python 3.12.1" {
		t.Fatalf("String = %q", got)
	}
	if got := (Info{Name: "python"}).String(); got != "python" {
		t.Fatalf("String = %q", got)
	}
}
