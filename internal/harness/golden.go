package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pullgraph/internal/graphdoc"
	"github.com/roach88/pullgraph/internal/value"
)

// TraceSnapshot captures the complete trace of a scenario execution.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Pass         bool         `json:"pass"`
	Trace        []TraceEntry `json:"trace"`
}

// toValue converts the snapshot for canonical JSON serialization.
func (s *TraceSnapshot) toValue() value.Value {
	trace := make(value.List, len(s.Trace))
	for i, e := range s.Trace {
		entry := value.Map{
			"seq":   value.Int(e.Seq),
			"cycle": value.Int(e.Cycle),
			"pass":  value.String(e.Pass),
			"root":  value.String(e.Root),
		}
		if e.Value != nil {
			entry["value"] = e.Value
		}
		if e.Commands != 0 {
			entry["commands"] = value.Int(e.Commands)
		}
		if e.Error != "" {
			entry["error"] = value.String(e.Error)
		}
		trace[i] = entry
	}
	return value.Map{
		"scenario_name": value.String(s.ScenarioName),
		"pass":          value.Bool(s.Pass),
		"trace":         trace,
	}
}

// MarshalSnapshot returns the canonical JSON of a result's trace.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{ScenarioName: name, Pass: result.Pass, Trace: result.Trace}
	return value.MarshalCanonical(snapshot.toValue())
}

// RunWithGolden runs a scenario and compares its trace against
// testdata/golden/{doc.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can make further assertions. Test failure
// (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, doc *graphdoc.Document, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), doc, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, doc.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
	return nil
}
