package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Kind: KindDeferred, Seq: 1, Type: "load", Payload: map[string]any{"id": int64(7)}},
		{Kind: KindAction, Seq: 2, Type: "set", Payload: map[string]any{"key": "user", "value": "ann"}},
		{Kind: KindAction, Seq: 3, Type: "increment", Payload: map[string]any{"key": "loads"}},
		{Kind: KindAction, Seq: 4, Type: "set", Payload: map[string]any{"key": "status", "value": "done"}},
	}
}

func TestAssertTraceContains(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   bool
	}{
		{"type only", Assertion{Action: "set"}, false},
		{"payload subset", Assertion{Action: "set", Payload: map[string]any{"key": "status"}}, false},
		{"payload mismatch", Assertion{Action: "set", Payload: map[string]any{"key": "other"}}, true},
		{"payload missing key", Assertion{Action: "increment", Payload: map[string]any{"by": int64(1)}}, true},
		{"deferred kind", Assertion{Action: "load", Kind: KindDeferred, Payload: map[string]any{"id": int64(7)}}, false},
		{"default kind ignores deferred", Assertion{Action: "load"}, true},
		{"absent", Assertion{Action: "delete"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.assertion.Type = AssertTraceContains
			err := assertTraceContains(sampleTrace(), tt.assertion)
			if tt.wantErr {
				var ae *AssertionError
				require.ErrorAs(t, err, &ae)
				assert.Equal(t, AssertTraceContains, ae.Type)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		actions []string
		kind    string
		wantErr string
	}{
		{"in order", []string{"set", "increment"}, "", ""},
		{"single", []string{"increment"}, "", ""},
		{"reversed", []string{"increment", "set"}, "", "should be before"},
		{"missing", []string{"set", "delete"}, "", "missing delete"},
		{"deferred only", []string{"load"}, KindDeferred, ""},
		{"kinds are separate", []string{"load", "set"}, KindDeferred, "missing set"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Actions: tt.actions, Kind: tt.kind})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name    string
		action  string
		kind    string
		count   int
		wantErr bool
	}{
		{"exact", "set", "", 2, false},
		{"too few", "set", "", 3, true},
		{"zero absent", "delete", "", 0, false},
		{"deferred", "load", KindDeferred, 1, false},
		{"deferred not counted as action", "load", KindAction, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Action: tt.action, Kind: tt.kind, Count: tt.count})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertFinalState(t *testing.T) {
	state := State{
		"n":    int64(2),
		"name": "ann",
		"tags": []any{"a", "b"},
	}

	tests := []struct {
		name    string
		expect  map[string]any
		wantErr string
	}{
		{"subset", map[string]any{"n": int64(2)}, ""},
		{"nested list", map[string]any{"tags": []any{"a", "b"}}, ""},
		{"missing key", map[string]any{"other": "x"}, "not present"},
		{"type mismatch", map[string]any{"n": "2"}, "type string"},
		{"value mismatch", map[string]any{"name": "bob"}, `key "name" = bob`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertFinalState(state, Assertion{Type: AssertFinalState, Expect: tt.expect})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Action: "set", Count: 5})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "Expected: 5 occurrences of action set")
	assert.Contains(t, msg, "Actual: 2 occurrences")
	assert.Contains(t, msg, "[1] deferred load")
}

func TestEvaluateAssertions(t *testing.T) {
	result := NewResult("s")
	result.Trace = sampleTrace()
	result.State = State{"n": int64(1)}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Action: "set"},
		{Type: AssertTraceCount, Action: "set", Count: 1},
		{Type: AssertFinalState, Expect: map[string]any{"n": int64(1)}},
		{Type: "bogus"},
	})

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "trace_count")
	assert.Contains(t, errs[1], `unknown assertion type "bogus"`)
}
