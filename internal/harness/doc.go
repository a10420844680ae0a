// Package harness runs YAML scenarios against a real store with the thunk
// middleware installed and checks the resulting trace and state.
//
// # Scenario Format
//
//	name: counter_thunks
//	description: "Deferred computations drive a counter"
//	session: test-session-001
//	extra: { greeting: "hi" }
//	initial: { count: 0 }
//	steps:
//	  - dispatch: { type: increment, payload: { key: count, by: 2 } }
//	  - thunk: dispatch_all
//	    args:
//	      actions:
//	        - { type: set, payload: { key: a, value: 1 } }
//	    expect:
//	      result: 1
//	  - thunk: fail
//	    args: { message: "boom" }
//	    expect:
//	      error: "boom"
//	assertions:
//	  - type: trace_contains
//	    action: set
//	    payload: { key: a }
//	  - type: trace_order
//	    actions: [increment, set]
//	  - type: trace_count
//	    action: fail
//	    kind: deferred
//	    count: 1
//	  - type: final_state
//	    expect: { count: 2, a: 1 }
//
// Files are checked against an embedded CUE schema before they are decoded.
// Numbers must be integers and null is not allowed anywhere, so every value
// in a scenario has a canonical JSON encoding.
//
// # Execution
//
// The store state is a flat map. Its reducer understands three action types:
//
//   - set: payload.key = payload.value
//   - increment: payload.key += payload.by (default 1)
//   - delete: removes payload.key
//
// Any other type leaves the state unchanged. Thunk steps name a builder
// registered with the harness; the built-ins are dispatch, dispatch_all,
// extra, read_state, fail and nested.
//
// The trace lists deferred calls as they start and plain actions once they
// have been reduced, each stamped from a deterministic clock, so the same
// scenario always produces the same trace. [RunWithGolden] compares that
// trace with a golden file under testdata/golden.
package harness
