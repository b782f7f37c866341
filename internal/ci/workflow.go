// Package ci reads GitHub Actions workflows to find the step that runs the
// project's tests, so `testlens init` can start from the command CI uses.
package ci

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// WorkflowDir is where GitHub Actions workflows live under the project root.
const WorkflowDir = ".github/workflows"

// ErrNoWorkflows indicates that no workflow files were found.
var ErrNoWorkflows = errors.New("no workflow files found")

// Step is one run step with the workflow and job settings it inherits.
type Step struct {
	Workflow         string
	Job              string
	Name             string
	Run              string
	Shell            string
	WorkingDirectory string
	Env              map[string]string
}

var testCommand = regexp.MustCompile(`(?m)(^|[;&|(])\s*((python3? -m|poetry run|uv run|pipenv run|bundle exec|npx|pnpm exec)\s+)?` +
	`(pytest|py\.test|tox|nox|go test|gotestsum|cargo (nextest|test)|npm (run )?test|yarn (run )?test|pnpm (run )?test|jest|vitest|mocha|` +
	`rspec|rake test|rails test|(vendor/bin/)?phpunit|pest|mvn( -\S+)* (test|verify)|gradle( -\S+)* test|\./gradlew( -\S+)* test|` +
	`dotnet test|mix test|ctest|make (test|check))(\s|$)`)

// LooksLikeTest reports whether a line of a run script starts a known test
// runner, directly or after a shell separator.
func LooksLikeTest(run string) bool {
	return testCommand.MatchString(run)
}

// Workflows lists the workflow files under root, sorted.
func Workflows(root string) ([]string, error) {
	dir := filepath.Join(root, WorkflowDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoWorkflows
		}
		return nil, fmt.Errorf("read %q: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yml", ".yaml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, ErrNoWorkflows
	}
	sort.Strings(paths)
	return paths, nil
}

// ParseFile reads the run steps of one workflow, in job id then step order.
func ParseFile(path string) ([]Step, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workflow %q: %w", path, err)
	}
	defer f.Close()
	return decodeWorkflow(f, filepath.Base(path))
}

// DetectTestStep returns the first step across root's workflows that looks
// like a test run. Steps relying on ${{ }} expressions are skipped since
// they cannot run outside Actions.
func DetectTestStep(root string) (Step, bool, error) {
	paths, err := Workflows(root)
	if err != nil {
		return Step{}, false, err
	}
	for _, path := range paths {
		steps, err := ParseFile(path)
		if err != nil {
			return Step{}, false, err
		}
		for _, s := range steps {
			if strings.Contains(s.Run, "${{") || !LooksLikeTest(s.Run) {
				continue
			}
			return s, true, nil
		}
	}
	return Step{}, false, nil
}

func decodeWorkflow(r io.Reader, displayPath string) ([]Step, error) {
	var wfDoc workflowDocument
	if err := yaml.NewDecoder(r).Decode(&wfDoc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("parse workflow %q: %w", displayPath, err)
	}
	name := wfDoc.Name
	if name == "" {
		name = displayPath
	}

	jobIDs := make([]string, 0, len(wfDoc.Jobs))
	for id := range wfDoc.Jobs {
		jobIDs = append(jobIDs, id)
	}
	sort.Strings(jobIDs)

	var steps []Step
	for _, jobID := range jobIDs {
		jobDoc := wfDoc.Jobs[jobID]
		jobName := jobDoc.Name
		if jobName == "" {
			jobName = jobID
		}
		for idx, stepDoc := range jobDoc.Steps {
			if strings.TrimSpace(stepDoc.Run) == "" {
				continue
			}
			step := Step{
				Workflow:         name,
				Job:              jobName,
				Name:             stepDoc.Name,
				Run:              strings.TrimSpace(stepDoc.Run),
				Shell:            firstNonEmpty(stepDoc.Shell, jobDoc.Defaults.Run.Shell, wfDoc.Defaults.Run.Shell),
				WorkingDirectory: firstNonEmpty(stepDoc.WorkingDirectory, jobDoc.Defaults.Run.WorkingDirectory, wfDoc.Defaults.Run.WorkingDirectory),
				Env:              mergeEnv(wfDoc.Env, jobDoc.Env, stepDoc.Env),
			}
			if step.Name == "" {
				step.Name = fmt.Sprintf("step %d", idx+1)
			}
			steps = append(steps, step)
		}
	}
	return steps, nil
}

type workflowDocument struct {
	Name     string                 `yaml:"name"`
	Env      map[string]any         `yaml:"env"`
	Defaults defaultsDocument       `yaml:"defaults"`
	Jobs     map[string]jobDocument `yaml:"jobs"`
}

type defaultsDocument struct {
	Run runDefaults `yaml:"run"`
}

type runDefaults struct {
	Shell            string `yaml:"shell"`
	WorkingDirectory string `yaml:"working-directory"`
}

type jobDocument struct {
	Name     string           `yaml:"name"`
	Env      map[string]any   `yaml:"env"`
	Defaults defaultsDocument `yaml:"defaults"`
	Steps    []stepDocument   `yaml:"steps"`
}

type stepDocument struct {
	Name             string         `yaml:"name"`
	Run              string         `yaml:"run"`
	Env              map[string]any `yaml:"env"`
	Shell            string         `yaml:"shell"`
	WorkingDirectory string         `yaml:"working-directory"`
}

// mergeEnv layers the maps left to right. Values holding ${{ }}
// expressions are dropped.
func mergeEnv(layers ...map[string]any) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			s := fmt.Sprint(v)
			if strings.Contains(s, "${{") {
				delete(out, k)
				continue
			}
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
