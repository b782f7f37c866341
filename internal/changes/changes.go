// Package changes reads recent version-control activity (changed files and
// commits) from the git CLI so failures can be explained against it.
package changes

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ErrNotRepository is returned when Root is not inside a git work tree.
var ErrNotRepository = errors.New("changes: not a git repository")

const (
	// DefaultCompareRef is the baseline when none is configured.
	DefaultCompareRef = "HEAD~5"
	// MaxDiffPreview bounds the per-file patch excerpt.
	MaxDiffPreview = 1000
	// DefaultTimeout bounds a whole Read.
	DefaultTimeout = 30 * time.Second
)

// Change types.
const (
	Added    = "A"
	Modified = "M"
	Deleted  = "D"
	Renamed  = "R"
)

// ChangedFile is one path touched between the baseline and the work tree.
type ChangedFile struct {
	Path        string `json:"path"`
	ChangeType  string `json:"change_type"`
	Additions   int    `json:"additions"`
	Deletions   int    `json:"deletions"`
	DiffPreview string `json:"diff_content"`
}

// Commit is one commit after the baseline.
type Commit struct {
	Hash         string   `json:"hash"`
	ShortHash    string   `json:"short_hash"`
	Message      string   `json:"message"`
	Author       string   `json:"author"`
	Date         string   `json:"date"`
	FilesChanged []string `json:"files_changed"`
}

// Summary totals the changed files.
type Summary struct {
	TotalFilesChanged int `json:"total_files_changed"`
	TotalAdditions    int `json:"total_additions"`
	TotalDeletions    int `json:"total_deletions"`
}

// Context is the change context handed to the correlator. It is never
// modified after Read returns.
type Context struct {
	CurrentCommit string        `json:"current_commit"`
	CurrentBranch string        `json:"current_branch"`
	CompareRef    string        `json:"compare_ref"`
	Files         []ChangedFile `json:"files"`
	Commits       []Commit      `json:"commits"`
	Summary       Summary       `json:"summary"`
}

// Options controls what Read collects.
type Options struct {
	CompareRef         string
	IncludeUncommitted bool
	IgnoreUntracked    bool
	Timeout            time.Duration
}

// Reader runs git in Root.
type Reader struct {
	Root   string
	Logger *slog.Logger
}

// NewReader returns a Reader for root. A nil logger discards.
func NewReader(root string, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{Root: root, Logger: logger}
}

// Read collects the change context. Only a missing repository or a missing
// git binary is an error; an unknown baseline (for example a shallow clone)
// simply yields no committed changes.
func (r *Reader) Read(ctx context.Context, opts Options) (*Context, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := exec.LookPath("git"); err != nil {
		return nil, fmt.Errorf("changes: %w", err)
	}
	if out, err := r.git(ctx, "rev-parse", "--is-inside-work-tree"); err != nil || strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, r.Root)
	}

	ref := opts.CompareRef
	if ref == "" {
		ref = DefaultCompareRef
	}
	result := &Context{
		CompareRef: ref,
		Files:      []ChangedFile{},
		Commits:    []Commit{},
	}
	if out, err := r.git(ctx, "rev-parse", "HEAD"); err == nil {
		result.CurrentCommit = strings.TrimSpace(out)
	}
	if out, err := r.git(ctx, "rev-parse", "--abbrev-ref", "HEAD"); err == nil {
		if branch := strings.TrimSpace(out); branch != "HEAD" {
			result.CurrentBranch = branch
		}
	}

	seen := map[string]bool{}
	add := func(files []ChangedFile) {
		for _, f := range files {
			if seen[f.Path] {
				continue
			}
			seen[f.Path] = true
			result.Files = append(result.Files, f)
		}
	}

	if r.refExists(ctx, ref) {
		files, err := r.diffFiles(ctx, true, ref, "HEAD")
		if err != nil {
			r.Logger.Warn("reading committed changes", "ref", ref, "error", err)
		}
		add(files)
	} else {
		r.Logger.Debug("compare ref not found, skipping committed changes", "ref", ref)
	}

	if opts.IncludeUncommitted {
		if result.CurrentCommit != "" {
			staged, err := r.diffFiles(ctx, false, "--cached", "HEAD")
			if err != nil {
				r.Logger.Warn("reading staged changes", "error", err)
			}
			add(staged)
		}
		unstaged, err := r.diffFiles(ctx, false)
		if err != nil {
			r.Logger.Warn("reading unstaged changes", "error", err)
		}
		add(unstaged)
		if !opts.IgnoreUntracked {
			untracked, err := r.untracked(ctx)
			if err != nil {
				r.Logger.Warn("listing untracked files", "error", err)
			}
			add(untracked)
		}
	}

	commits, err := r.commits(ctx, ref)
	if err != nil {
		r.Logger.Debug("reading commits", "ref", ref, "error", err)
	}
	if commits != nil {
		result.Commits = commits
	}

	result.Summary.TotalFilesChanged = len(result.Files)
	for _, f := range result.Files {
		result.Summary.TotalAdditions += f.Additions
		result.Summary.TotalDeletions += f.Deletions
	}
	return result, nil
}

// ChangedPaths lists the paths of all changed files.
func (c *Context) ChangedPaths() []string {
	if c == nil {
		return nil
	}
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

func (r *Reader) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.Root
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w (%s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

func (r *Reader) refExists(ctx context.Context, ref string) bool {
	_, err := r.git(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	return err == nil
}

// parseNameStatus reads `git diff --name-status -M` output.
func parseNameStatus(out string) []ChangedFile {
	var files []ChangedFile
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), "\t")
		if len(fields) < 2 || fields[0] == "" {
			continue
		}
		path := fields[len(fields)-1]
		files = append(files, ChangedFile{Path: path, ChangeType: changeType(fields[0])})
	}
	return files
}

func changeType(status string) string {
	switch status[0] {
	case 'A', 'C':
		return Added
	case 'D':
		return Deleted
	case 'R':
		return Renamed
	default:
		return Modified
	}
}

type lineCounts struct {
	additions, deletions int
}

// parseNumstat reads `git diff --numstat -M` output keyed by new path.
// Binary files report zero.
func parseNumstat(out string) map[string]lineCounts {
	counts := map[string]lineCounts{}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.SplitN(strings.TrimRight(line, "\r"), "\t", 3)
		if len(fields) != 3 {
			continue
		}
		adds, _ := strconv.Atoi(fields[0])
		dels, _ := strconv.Atoi(fields[1])
		counts[renamedPath(fields[2])] = lineCounts{additions: adds, deletions: dels}
	}
	return counts
}

// renamedPath resolves numstat rename notation to the new path:
// "old => new" and "dir/{old => new}/file".
func renamedPath(path string) string {
	if !strings.Contains(path, " => ") {
		return path
	}
	open, end := strings.Index(path, "{"), strings.Index(path, "}")
	if open >= 0 && end > open {
		inner := path[open+1 : end]
		parts := strings.SplitN(inner, " => ", 2)
		joined := path[:open] + parts[len(parts)-1] + path[end+1:]
		return strings.ReplaceAll(joined, "//", "/")
	}
	parts := strings.SplitN(path, " => ", 2)
	return parts[1]
}

// splitPatch maps each new path in a unified diff to its patch text.
func splitPatch(out string) map[string]string {
	patches := map[string]string{}
	var current string
	var b strings.Builder
	flush := func() {
		if current != "" {
			patches[current] = b.String()
		}
		b.Reset()
	}
	for _, line := range strings.SplitAfter(out, "\n") {
		if strings.HasPrefix(line, "diff --git ") {
			flush()
			current = ""
			if i := strings.LastIndex(line, " b/"); i >= 0 {
				current = strings.TrimSpace(line[i+3:])
			}
		}
		b.WriteString(line)
	}
	flush()
	return patches
}
