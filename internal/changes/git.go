package changes

import (
	"context"
	"strconv"
	"strings"

	"github.com/bgricker/testlens/internal/clip"
)

const commitFormat = "%x1e%H%x1f%an%x1f%cI%x1f%B%x1d"

// diffFiles runs git diff with args for status, line counts and optionally
// a per-file patch excerpt.
func (r *Reader) diffFiles(ctx context.Context, preview bool, args ...string) ([]ChangedFile, error) {
	run := func(mode ...string) (string, error) {
		full := append([]string{"diff", "--no-color", "--no-ext-diff", "-M"}, mode...)
		return r.git(ctx, append(full, args...)...)
	}

	status, err := run("--name-status")
	if err != nil {
		return nil, err
	}
	files := parseNameStatus(status)
	if len(files) == 0 {
		return files, nil
	}

	if numstat, err := run("--numstat"); err == nil {
		counts := parseNumstat(numstat)
		for i := range files {
			c := counts[files[i].Path]
			files[i].Additions, files[i].Deletions = c.additions, c.deletions
		}
	}
	if preview {
		if patch, err := run(); err == nil {
			patches := splitPatch(patch)
			for i := range files {
				files[i].DiffPreview = clip.TextWith(patches[files[i].Path], MaxDiffPreview, "\n... (diff truncated)")
			}
		}
	}
	return files, nil
}

func (r *Reader) untracked(ctx context.Context) ([]ChangedFile, error) {
	out, err := r.git(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	var files []ChangedFile
	for _, line := range strings.Split(out, "\n") {
		if path := strings.TrimSpace(line); path != "" {
			files = append(files, ChangedFile{Path: path, ChangeType: Added})
		}
	}
	return files, nil
}

// commits lists commits after ref. HEAD~N means the last N commits.
func (r *Reader) commits(ctx context.Context, ref string) ([]Commit, error) {
	args := []string{"log", "--no-color", "--name-only", "--pretty=format:" + commitFormat}
	if n, ok := headOffset(ref); ok {
		args = append(args, "-n", strconv.Itoa(n), "HEAD")
	} else {
		args = append(args, ref+"..HEAD")
	}
	out, err := r.git(ctx, args...)
	if err != nil {
		return nil, err
	}
	return parseLog(out), nil
}

func headOffset(ref string) (int, bool) {
	rest, ok := strings.CutPrefix(ref, "HEAD~")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func parseLog(out string) []Commit {
	commits := []Commit{}
	for _, record := range strings.Split(out, "\x1e") {
		end := strings.Index(record, "\x1d")
		if end < 0 {
			continue
		}
		fields := strings.SplitN(record[:end], "\x1f", 4)
		if len(fields) != 4 {
			continue
		}
		c := Commit{
			Hash:         fields[0],
			ShortHash:    short(fields[0]),
			Author:       fields[1],
			Date:         fields[2],
			Message:      strings.TrimSpace(fields[3]),
			FilesChanged: []string{},
		}
		for _, line := range strings.Split(record[end+1:], "\n") {
			if path := strings.TrimSpace(line); path != "" {
				c.FilesChanged = append(c.FilesChanged, path)
			}
		}
		commits = append(commits, c)
	}
	return commits
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
