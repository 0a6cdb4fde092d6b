// Package harness runs graph documents as scenarios.
//
// A scenario is a graphdoc.Document with a cycles list. Run builds the
// document into a fresh world, drives one tick per cycle (applying the
// cycle's var assignments first) and checks each cycle's expected root
// values. Every pass is recorded into a fresh in-memory trace store and
// the result's trace is read back from it, so the store is exercised on
// every run.
//
// Pass IDs come from a SequenceGenerator prefixed with the document name,
// which makes traces deterministic and suitable for golden files:
//
//	func TestCounter(t *testing.T) {
//	    doc, err := harness.LoadScenario("testdata/counter.yaml")
//	    require.NoError(t, err)
//	    harness.RunWithGolden(t, doc)
//	}
//
// Regenerate golden files with:
//
//	go test ./internal/harness -update
package harness
