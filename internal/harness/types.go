package harness

import (
	"maps"

	"github.com/roach88/thunk/store"
)

// State is the store state used by scenarios.
type State map[string]any

// Trace event kinds.
const (
	KindAction   = "action"
	KindDeferred = "deferred"
)

// TraceEvent is one entry in a scenario trace. Type is the action type for
// plain actions and the thunk name for deferred calls; Payload is the action
// payload or the thunk arguments.
type TraceEvent struct {
	Kind    string         `json:"kind"`
	Seq     int64          `json:"seq"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// StepResult is what a single step returned.
type StepResult struct {
	Index  int    `json:"index"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	Session string       `json:"session"`
	Trace   []TraceEvent `json:"trace"`
	Steps   []StepResult `json:"steps"`

	// Errors holds one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	State State `json:"state"`
}

// NewResult creates a passing result with no events.
func NewResult(session string) *Result {
	return &Result{
		Pass:    true,
		Session: session,
		Trace:   []TraceEvent{},
		Steps:   []StepResult{},
		Errors:  []string{},
		State:   State{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddActionTrace appends a reduced plain action.
func (r *Result) AddActionTrace(action store.Action, seq int64) {
	var payload map[string]any
	if rec, ok := action.(store.Record); ok && len(rec.Payload) > 0 {
		payload = maps.Clone(rec.Payload)
	}
	r.Trace = append(r.Trace, TraceEvent{
		Kind:    KindAction,
		Seq:     seq,
		Type:    action.ActionType(),
		Payload: payload,
	})
}

// AddDeferredTrace appends a deferred call.
func (r *Result) AddDeferredTrace(name string, args map[string]any, seq int64) {
	var payload map[string]any
	if len(args) > 0 {
		payload = maps.Clone(args)
	}
	r.Trace = append(r.Trace, TraceEvent{
		Kind:    KindDeferred,
		Seq:     seq,
		Type:    name,
		Payload: payload,
	})
}
