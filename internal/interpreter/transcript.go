package interpreter

import (
	"sync"
	"time"
)

// Interaction records one call to a gateway.
type Interaction struct {
	Purpose      string        `json:"purpose"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	System       string        `json:"system,omitempty"`
	Prompt       string        `json:"prompt"`
	Content      string        `json:"content"`
	Usage        *Usage        `json:"usage,omitempty"`
	Error        string        `json:"error,omitempty"`
	Structured   bool          `json:"structured"`
	SchemaErrors []string      `json:"schema_errors,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"-"`
	DurationMS   int64         `json:"duration_ms"`
}

// Transcript collects interactions in call order. It is safe for
// concurrent use and a nil Transcript discards everything.
type Transcript struct {
	mu    sync.Mutex
	items []Interaction
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{}
}

// Add appends an interaction.
func (t *Transcript) Add(in Interaction) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = append(t.items, in)
}

// Interactions returns a copy of the recorded interactions.
func (t *Transcript) Interactions() []Interaction {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Interaction(nil), t.items...)
}

// Len reports how many interactions were recorded.
func (t *Transcript) Len() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
