package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/pullgraph/internal/graph"
	"github.com/roach88/pullgraph/internal/value"
)

// ExpectationError is returned when a root's value does not match the
// cycle's expectation.
type ExpectationError struct {
	Cycle    int64
	Root     string
	Expected string
	Actual   string
	Diff     string // value.Diff output, empty when not comparable
}

// Error implements the error interface.
func (e *ExpectationError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "cycle %d: root %q\n", e.Cycle, e.Root)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	if e.Diff != "" {
		fmt.Fprintf(&buf, "\n  Diff (-want +got):\n%s", e.Diff)
	}
	return buf.String()
}

// checkExpectations compares expected root values against one tick.
// Roots are checked in name order so failures are reported
// deterministically.
func checkExpectations(report *graph.TickReport, expect map[string]any) []error {
	names := make([]string, 0, len(expect))
	for name := range expect {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := checkRoot(report, name, expect[name]); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func checkRoot(report *graph.TickReport, root string, raw any) error {
	fail := func(expected, actual, diff string) error {
		return &ExpectationError{Cycle: report.Cycle, Root: root, Expected: expected, Actual: actual, Diff: diff}
	}

	want, err := value.FromAny(raw)
	if err != nil {
		return fail(fmt.Sprintf("%v", raw), "", "")
	}

	res, ok := findResult(report, root)
	if !ok {
		return fail(render(want), "root was not evaluated", "")
	}
	if res.Err != nil {
		return fail(render(want), "error: "+res.Err.Error(), "")
	}

	got, err := value.FromAny(res.Value)
	if err != nil {
		return fail(render(want), fmt.Sprintf("%v (%v)", res.Value, err), "")
	}
	if !value.Equal(want, got) {
		return fail(render(want), render(got), value.Diff(want, got))
	}
	return nil
}

func findResult(report *graph.TickReport, root string) (graph.RootResult, bool) {
	for _, pass := range []*graph.PassReport{report.Pure, report.Mutating} {
		if pass == nil {
			continue
		}
		if res, ok := pass.Result(root); ok {
			return res, true
		}
	}
	return graph.RootResult{}, false
}

func render(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
