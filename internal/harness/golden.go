package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders the trace in a stable text form for golden comparison.
// Message bodies are quoted line by line behind "| ".
func (r *Result) Transcript(name string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, e := range r.Trace {
		fmt.Fprintf(&b, "\nstep %d %s %s", e.Step, e.Action, e.At)
		if e.Action == ActionCycle {
			fmt.Fprintf(&b, " processed=%d fills=%d", e.Processed, e.Fills)
		}
		b.WriteString("\n")
		if len(e.Errors) > 0 {
			fmt.Fprintf(&b, "  errors: %s\n", strings.Join(e.Errors, ", "))
		}
		for _, m := range e.Sent {
			fmt.Fprintf(&b, "  to: %s\n", strings.Join(m.To, ", "))
			fmt.Fprintf(&b, "  subject: %s\n", m.Subject)
			for _, line := range strings.Split(strings.TrimRight(m.Body, "\n"), "\n") {
				if line == "" {
					b.WriteString("  |\n")
					continue
				}
				fmt.Fprintf(&b, "  | %s\n", line)
			}
		}
	}
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check Pass as well.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, result.Transcript(scenarioName))
}
