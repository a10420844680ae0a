package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/roach88/thunk"
	"github.com/roach88/thunk/internal/journal"
	"github.com/roach88/thunk/internal/testutil"
	"github.com/roach88/thunk/middleware"
	"github.com/roach88/thunk/store"
)

// Harness runs scenarios. The zero configuration runs with the built-in
// thunks, no journal and logging discarded.
type Harness struct {
	thunks   map[string]Builder
	journal  *journal.Journal
	metrics  *middleware.Metrics
	sessions journal.SessionGenerator
	logger   *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithJournal records every reduced action of each run to j under the
// scenario's session.
func WithJournal(j *journal.Journal) Option {
	return func(h *Harness) {
		h.journal = j
	}
}

// WithSessionGenerator supplies the session token for scenarios that do not
// name one. The default always yields testutil.DefaultSession.
func WithSessionGenerator(g journal.SessionGenerator) Option {
	return func(h *Harness) {
		if g != nil {
			h.sessions = g
		}
	}
}

// WithMetrics instruments every run with m.
func WithMetrics(m *middleware.Metrics) Option {
	return func(h *Harness) {
		h.metrics = m
	}
}

// WithLogger sets the logger for the harness and the dispatch log.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithThunk registers b under name, replacing any built-in of that name.
func WithThunk(name string, b Builder) Option {
	return func(h *Harness) {
		h.thunks[name] = b
	}
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{
		thunks:   builtinThunks(),
		sessions: testutil.NewFixedSessionGenerator(""),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes scenario with a new Harness.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return New(opts...).Run(context.Background(), scenario)
}

// Run executes the steps of scenario against a fresh store, then evaluates
// its assertions. Failed steps and assertions are reported in the Result;
// the error is reserved for runs that could not be set up.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	session := scenario.Session
	if session == "" {
		session = h.sessions.Generate()
	}
	result := NewResult(session)
	clock := testutil.NewDeterministicClock()

	mws := []store.Middleware[State]{
		traceMiddleware(result, clock),
		resolveMiddleware(h.thunks),
		middleware.Logging[State](h.logger),
	}
	if h.metrics != nil {
		mws = append(mws, middleware.Instrument[State](h.metrics))
	}
	mws = append(mws, thunk.WithExtraArgument[State](scenario.Extra))

	if h.journal != nil {
		last, err := h.journal.LastSeq(ctx, session)
		if err != nil {
			return nil, fmt.Errorf("failed to resume journal session: %w", err)
		}
		mws = append(mws, journal.Recorder[State](ctx, h.journal, session, journal.NewClockAt(last)))
	}

	initial := State(maps.Clone(scenario.Initial))
	if initial == nil {
		initial = State{}
	}

	st, err := store.New(Reduce, initial,
		store.WithMiddleware(mws...),
		store.WithLogger[State](h.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	for i, step := range scenario.Steps {
		var action any
		if step.Dispatch != nil {
			action = *step.Dispatch
		} else {
			action = Call{Name: step.Thunk, Args: step.Args}
		}

		out, err := st.Dispatch(action)
		sr := StepResult{Index: i, Result: resultValue(out)}
		if err != nil {
			sr.Error = err.Error()
		}
		result.Steps = append(result.Steps, sr)
		checkExpect(result, i, step.Expect, sr, err)

		h.logger.Debug("step completed",
			"scenario", scenario.Name,
			"step", i,
			"failed", err != nil,
		)
	}

	result.State = st.GetState()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	h.logger.Info("scenario completed",
		"scenario", scenario.Name,
		"session", session,
		"pass", result.Pass,
		"events", len(result.Trace),
	)
	return result, nil
}

func checkExpect(result *Result, index int, expect *Expect, sr StepResult, err error) {
	switch {
	case expect != nil && expect.Error != "":
		if err == nil {
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got result %v", index, expect.Error, sr.Result))
		} else if !strings.Contains(err.Error(), expect.Error) {
			result.AddError(fmt.Sprintf("steps[%d]: expected error containing %q, got %q", index, expect.Error, err.Error()))
		}
	case err != nil:
		result.AddError(fmt.Sprintf("steps[%d]: unexpected error: %v", index, err))
	case expect != nil && expect.Result != nil:
		if !valuesEqual(sr.Result, expect.Result) {
			result.AddError(fmt.Sprintf("steps[%d]: expected result %v, got %v", index, expect.Result, sr.Result))
		}
	}
}

// resultValue maps what Dispatch returned onto scenario value types.
func resultValue(v any) any {
	switch val := v.(type) {
	case store.Record:
		m := map[string]any{"type": val.Type}
		if val.Payload != nil {
			m["payload"] = val.Payload
		}
		return m
	case State:
		return map[string]any(val)
	case int:
		return int64(val)
	default:
		return v
	}
}

// traceMiddleware records deferred calls before they run and plain actions
// after they are reduced. Install it outermost so nested dispatches are
// seen too.
func traceMiddleware(result *Result, clock journal.Sequencer) store.Middleware[State] {
	return func(api store.API[State]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				switch a := action.(type) {
				case Call:
					result.AddDeferredTrace(a.Name, a.Args, clock.Next())
					return next(action)
				case store.Action:
					out, err := next(action)
					if err == nil {
						result.AddActionTrace(a, clock.Next())
					}
					return out, err
				}
				return next(action)
			}
		}
	}
}

// resolveMiddleware replaces a Call with the Func its builder returns.
func resolveMiddleware(thunks map[string]Builder) store.Middleware[State] {
	return func(api store.API[State]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				c, ok := action.(Call)
				if !ok {
					return next(action)
				}
				build, ok := thunks[c.Name]
				if !ok {
					return nil, fmt.Errorf("unknown thunk %q", c.Name)
				}
				fn, err := build(c.Args)
				if err != nil {
					return nil, fmt.Errorf("thunk %s: %w", c.Name, err)
				}
				return next(fn)
			}
		}
	}
}
