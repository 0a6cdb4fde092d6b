package harness

import (
	"github.com/roach88/pullgraph/internal/value"
)

// TraceEntry is one root result of one pass.
type TraceEntry struct {
	Seq      int64       `json:"seq"`
	Cycle    int64       `json:"cycle"`
	Pass     string      `json:"pass"` // "pure" or "mutating"
	Root     string      `json:"root"`
	Value    value.Value `json:"value,omitempty"`
	Commands int         `json:"commands,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every expectation matched and no
	// root failed.
	Pass bool `json:"pass"`

	// Cycles is the number of cycles driven.
	Cycles int `json:"cycles"`

	// Trace contains every root result in pass order.
	Trace []TraceEntry `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Values returns the value of root in every cycle it produced one, in
// cycle order.
func (r *Result) Values(root string) []value.Value {
	var out []value.Value
	for _, e := range r.Trace {
		if e.Root == root && e.Pass == "pure" && e.Error == "" {
			out = append(out, e.Value)
		}
	}
	return out
}
