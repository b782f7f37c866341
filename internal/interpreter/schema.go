package interpreter

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Schema is an embedded JSON schema compiled on first use.
type Schema struct {
	name     string
	once     sync.Once
	compiled *jsonschema.Schema
	err      error
}

var (
	// OutcomesSchema describes the classifier's expected reply.
	OutcomesSchema = &Schema{name: "outcomes.schema.json"}
	// AnalysisSchema describes the correlator's expected reply.
	AnalysisSchema = &Schema{name: "analysis.schema.json"}
)

// Name returns the schema file name.
func (s *Schema) Name() string { return s.name }

func (s *Schema) compile() error {
	s.once.Do(func() {
		data, err := schemaFS.ReadFile("schemas/" + s.name)
		if err != nil {
			s.err = fmt.Errorf("read schema %s: %w", s.name, err)
			return
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
		if err != nil {
			s.err = fmt.Errorf("unmarshal schema %s: %w", s.name, err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(s.name, doc); err != nil {
			s.err = fmt.Errorf("add schema resource %s: %w", s.name, err)
			return
		}
		s.compiled, err = compiler.Compile(s.name)
		if err != nil {
			s.err = fmt.Errorf("compile schema %s: %w", s.name, err)
		}
	})
	return s.err
}

// Check validates v and returns one line per violation. A nil Schema
// accepts everything.
func (s *Schema) Check(v map[string]any) []string {
	if s == nil {
		return nil
	}
	if err := s.compile(); err != nil {
		return []string{err.Error()}
	}
	err := s.compiled.Validate(v)
	if err == nil {
		return nil
	}
	var problems []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			problems = append(problems, line)
		}
	}
	return problems
}
