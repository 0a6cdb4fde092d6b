package harness

import (
	"fmt"

	"github.com/roach88/pullgraph/internal/graphdoc"
)

// LoadScenario reads a graph document and checks that it can run as a
// scenario: it needs at least one root and one cycle.
func LoadScenario(path string) (*graphdoc.Document, error) {
	doc, err := graphdoc.Load(path)
	if err != nil {
		return nil, err
	}
	if err := validateScenario(doc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return doc, nil
}

func validateScenario(doc *graphdoc.Document) error {
	if len(doc.Roots) == 0 {
		return fmt.Errorf("roots list is required and must be non-empty")
	}
	if len(doc.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}
	return nil
}
