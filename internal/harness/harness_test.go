package harness

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/thunk"
	"github.com/roach88/thunk/internal/journal"
	"github.com/roach88/thunk/middleware"
	"github.com/roach88/thunk/store"
)

func dispatchStep(typ string, payload map[string]any) Step {
	rec := store.NewRecord(typ, payload)
	return Step{Dispatch: &rec}
}

func TestRun_PlainDispatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "plain",
		Description: "plain actions reach the reducer",
		Initial:     map[string]any{"n": int64(1)},
		Steps: []Step{
			dispatchStep("increment", map[string]any{"key": "n"}),
			dispatchStep("set", map[string]any{"key": "s", "value": "v"}),
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, "test-session-default", result.Session)
	assert.Equal(t, State{"n": int64(2), "s": "v"}, result.State)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, TraceEvent{Kind: KindAction, Seq: 1, Type: "increment", Payload: map[string]any{"key": "n"}}, result.Trace[0])
	assert.Equal(t, int64(2), result.Trace[1].Seq)

	require.Len(t, result.Steps, 2)
	assert.Equal(t, map[string]any{"type": "increment", "payload": map[string]any{"key": "n"}}, result.Steps[0].Result)
}

func TestRun_InitialStateIsNotModified(t *testing.T) {
	initial := map[string]any{"n": int64(1)}
	scenario := &Scenario{
		Name:        "copy",
		Description: "initial map is copied",
		Initial:     initial,
		Steps:       []Step{dispatchStep("increment", map[string]any{"key": "n"})},
	}

	_, err := Run(scenario)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": int64(1)}, initial)
}

func TestRun_BuiltinThunks(t *testing.T) {
	tests := []struct {
		name       string
		extra      any
		initial    map[string]any
		step       Step
		wantResult any
		wantError  string
		wantState  State
	}{
		{
			name:       "dispatch",
			step:       Step{Thunk: "dispatch", Args: map[string]any{"type": "set", "payload": map[string]any{"key": "a", "value": true}}},
			wantResult: map[string]any{"type": "set", "payload": map[string]any{"key": "a", "value": true}},
			wantState:  State{"a": true},
		},
		{
			name: "dispatch_all",
			step: Step{Thunk: "dispatch_all", Args: map[string]any{"actions": []any{
				map[string]any{"type": "increment", "payload": map[string]any{"key": "n"}},
				map[string]any{"type": "increment", "payload": map[string]any{"key": "n", "by": int64(4)}},
			}}},
			wantResult: int64(2),
			wantState:  State{"n": int64(5)},
		},
		{
			name:       "extra",
			extra:      map[string]any{"svc": "api"},
			step:       Step{Thunk: "extra"},
			wantResult: map[string]any{"svc": "api"},
			wantState:  State{},
		},
		{
			name:       "extra absent is nil",
			step:       Step{Thunk: "extra"},
			wantResult: nil,
			wantState:  State{},
		},
		{
			name:       "read_state key",
			initial:    map[string]any{"a": "x"},
			step:       Step{Thunk: "read_state", Args: map[string]any{"key": "a"}},
			wantResult: "x",
			wantState:  State{"a": "x"},
		},
		{
			name:       "read_state whole",
			initial:    map[string]any{"a": "x"},
			step:       Step{Thunk: "read_state"},
			wantResult: map[string]any{"a": "x"},
			wantState:  State{"a": "x"},
		},
		{
			name:      "fail",
			step:      Step{Thunk: "fail", Args: map[string]any{"message": "nope"}},
			wantError: "nope",
			wantState: State{},
		},
		{
			name:       "nested",
			extra:      "e",
			step:       Step{Thunk: "nested", Args: map[string]any{"thunk": "extra"}},
			wantResult: "e",
			wantState:  State{},
		},
		{
			name:      "unknown thunk",
			step:      Step{Thunk: "missing"},
			wantError: `unknown thunk "missing"`,
			wantState: State{},
		},
		{
			name:      "bad builder args",
			step:      Step{Thunk: "fail"},
			wantError: "thunk fail: fail: message is required",
			wantState: State{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenario := &Scenario{
				Name:        "builtin",
				Description: tt.name,
				Extra:       tt.extra,
				Initial:     tt.initial,
				Steps:       []Step{tt.step},
			}

			result, err := Run(scenario)
			require.NoError(t, err)
			require.Len(t, result.Steps, 1)

			if tt.wantError != "" {
				assert.Contains(t, result.Steps[0].Error, tt.wantError)
				assert.False(t, result.Pass)
			} else {
				assert.Empty(t, result.Steps[0].Error)
				assert.Equal(t, tt.wantResult, result.Steps[0].Result)
				assert.True(t, result.Pass, result.Errors)
			}
			assert.Equal(t, tt.wantState, result.State)
		})
	}
}

func TestRun_ExpectClauses(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		wantPass bool
		wantMsg  string
	}{
		{
			name:     "result matches",
			step:     Step{Thunk: "extra", Expect: &Expect{Result: "x"}},
			wantPass: true,
		},
		{
			name:     "result differs",
			step:     Step{Thunk: "extra", Expect: &Expect{Result: "y"}},
			wantPass: false,
			wantMsg:  "expected result y, got x",
		},
		{
			name:     "error matches substring",
			step:     Step{Thunk: "fail", Args: map[string]any{"message": "disk full"}, Expect: &Expect{Error: "full"}},
			wantPass: true,
		},
		{
			name:     "error expected but none",
			step:     Step{Thunk: "extra", Expect: &Expect{Error: "boom"}},
			wantPass: false,
			wantMsg:  `expected error containing "boom"`,
		},
		{
			name:     "unexpected error",
			step:     Step{Thunk: "fail", Args: map[string]any{"message": "boom"}},
			wantPass: false,
			wantMsg:  "unexpected error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Run(&Scenario{
				Name:        "expect",
				Description: tt.name,
				Extra:       "x",
				Steps:       []Step{tt.step},
			})
			require.NoError(t, err)

			assert.Equal(t, tt.wantPass, result.Pass)
			if tt.wantMsg != "" {
				require.Len(t, result.Errors, 1)
				assert.Contains(t, result.Errors[0], tt.wantMsg)
			}
		})
	}
}

func TestRun_StepsContinueAfterFailure(t *testing.T) {
	result, err := Run(&Scenario{
		Name:        "continue",
		Description: "a failing step does not stop the run",
		Steps: []Step{
			{Thunk: "fail", Args: map[string]any{"message": "first"}},
			dispatchStep("increment", map[string]any{"key": "n"}),
		},
	})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Len(t, result.Steps, 2)
	assert.Equal(t, State{"n": int64(1)}, result.State)
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "x", Description: "d"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestRun_CustomThunk(t *testing.T) {
	calls := 0
	double := func(args map[string]any) (thunk.Func[State, any], error) {
		key, _ := args["key"].(string)
		return func(dispatch store.Dispatch, getState store.GetState[State], _ any) (any, error) {
			calls++
			n, _ := getState()[key].(int64)
			return dispatch(store.NewRecord("increment", map[string]any{"key": key, "by": n}))
		}, nil
	}

	result, err := Run(&Scenario{
		Name:        "custom",
		Description: "user-registered builders",
		Initial:     map[string]any{"n": int64(3)},
		Steps: []Step{
			{Thunk: "double", Args: map[string]any{"key": "n"}},
			{Thunk: "nested", Args: map[string]any{"thunk": "double", "args": map[string]any{"key": "n"}}},
		},
	}, WithThunk("double", double))
	require.NoError(t, err)

	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, 2, calls)
	assert.Equal(t, State{"n": int64(12)}, result.State)
}

func TestRun_ReplacingBuiltin(t *testing.T) {
	stub := func(map[string]any) (thunk.Func[State, any], error) {
		return func(store.Dispatch, store.GetState[State], any) (any, error) {
			return "stubbed", nil
		}, nil
	}

	result, err := Run(&Scenario{
		Name:        "replace",
		Description: "WithThunk overrides built-ins",
		Steps:       []Step{{Thunk: "extra", Expect: &Expect{Result: "stubbed"}}},
	}, WithThunk("extra", stub))
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_BuilderErrorPropagates(t *testing.T) {
	boom := errors.New("cannot build")
	broken := func(map[string]any) (thunk.Func[State, any], error) { return nil, boom }

	h := New(WithThunk("broken", broken))
	result, err := h.Run(context.Background(), &Scenario{
		Name:        "broken",
		Description: "builder error",
		Steps:       []Step{{Thunk: "broken", Expect: &Expect{Error: "cannot build"}}},
	})
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_WithJournal(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	scenario := &Scenario{
		Name:        "journaled",
		Description: "reduced actions are journaled",
		Session:     "s-1",
		Steps: []Step{
			{Thunk: "dispatch_all", Args: map[string]any{"actions": []any{
				map[string]any{"type": "increment", "payload": map[string]any{"key": "n"}},
				map[string]any{"type": "set", "payload": map[string]any{"key": "s", "value": "v"}},
			}}},
			{Thunk: "read_state"},
		},
	}

	h := New(WithJournal(j))
	_, err = h.Run(context.Background(), scenario)
	require.NoError(t, err)
	_, err = h.Run(context.Background(), scenario)
	require.NoError(t, err)

	entries, err := j.Entries(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, entries, 4, "deferred calls are not journaled")

	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq, "second run resumes the session's sequence")
	}
	assert.Equal(t, "increment", entries[0].ActionType)
	assert.Equal(t, "set", entries[3].ActionType)
}

func TestRun_WithSessionGenerator(t *testing.T) {
	j, err := journal.Open(":memory:")
	require.NoError(t, err)
	defer j.Close()

	unnamed := &Scenario{
		Name:        "unnamed",
		Description: "gets a generated session per run",
		Steps:       []Step{dispatchStep("increment", map[string]any{"key": "n"})},
	}
	named := &Scenario{
		Name:        "named",
		Description: "keeps its own session",
		Session:     "pinned",
		Steps:       []Step{dispatchStep("increment", map[string]any{"key": "n"})},
	}

	h := New(WithJournal(j), WithSessionGenerator(journal.UUIDv7Generator{}))
	ctx := context.Background()

	first, err := h.Run(ctx, unnamed)
	require.NoError(t, err)
	second, err := h.Run(ctx, unnamed)
	require.NoError(t, err)
	pinned, err := h.Run(ctx, named)
	require.NoError(t, err)

	assert.NotEqual(t, first.Session, second.Session)
	assert.NotEqual(t, "test-session-default", first.Session)
	assert.Equal(t, "pinned", pinned.Session)

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	for _, s := range sessions {
		assert.Equal(t, 1, s.Entries, s.Session)
		assert.Equal(t, int64(1), s.LastSeq, s.Session)
	}

	a, err := Snapshot(unnamed, first)
	require.NoError(t, err)
	b, err := Snapshot(unnamed, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "generated sessions stay out of golden snapshots")
}

func TestRun_WithMetricsAndLogger(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := middleware.NewMetrics(reg)
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result, err := Run(&Scenario{
		Name:        "observed",
		Description: "metrics and logs",
		Steps: []Step{
			{Thunk: "dispatch", Args: map[string]any{"type": "increment", "payload": map[string]any{"key": "n"}}},
		},
	}, WithMetrics(m), WithLogger(logger))
	require.NoError(t, err)
	require.True(t, result.Pass, result.Errors)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues(middleware.KindDeferred, "", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dispatches.WithLabelValues(middleware.KindRecord, "increment", "ok")))
	assert.Contains(t, buf.String(), "scenario completed")
	assert.Contains(t, buf.String(), "dispatch started")
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/nested_thunks.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := Snapshot(scenario, first)
	require.NoError(t, err)
	b, err := Snapshot(scenario, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
