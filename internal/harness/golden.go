package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/memostore/internal/canonical"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot renders the trace and events of a run as canonical JSON.
// Identities appear by scenario name, addresses as hex.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"action":  ev.Action,
			"args":    ev.Args,
			"outcome": ev.Outcome,
		}
		if ev.Result != nil {
			m["result"] = ev.Result
		}
		trace[i] = m
	}

	evs := make([]any, len(result.Events))
	for i, ev := range result.Events {
		evs[i] = map[string]any{
			"slot":           ev.Slot,
			"unix_timestamp": ev.UnixTimestamp,
			"memo":           ev.Memo.String(),
			"author":         result.displayName(ev.Author.String()),
			"text":           ev.Text,
		}
	}

	return canonical.Marshal(map[string]any{
		"scenario_name": scenarioName,
		"trace":         trace,
		"events":        evs,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
