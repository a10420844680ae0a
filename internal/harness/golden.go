package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/thunk/internal/canonical"
)

// Snapshot encodes the deterministic part of a result as canonical JSON:
// scenario name, trace, final state, and the session when the scenario names
// one. Generated sessions differ between runs and are left out.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	events := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		m := map[string]any{
			"kind": event.Kind,
			"seq":  event.Seq,
			"type": event.Type,
		}
		if len(event.Payload) > 0 {
			m["payload"] = event.Payload
		}
		events[i] = m
	}

	doc := map[string]any{
		"scenario":    scenario.Name,
		"trace":       events,
		"final_state": map[string]any(result.State),
	}
	if scenario.Session != "" {
		doc["session"] = scenario.Session
	}
	return canonical.Marshal(doc)
}

// RunWithGolden runs scenario and compares its snapshot with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result of scenario against its golden
// file.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
