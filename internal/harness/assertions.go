package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s %v\n", event.Seq, event.Kind, event.Type, event.Payload)
		}
	}
	return buf.String()
}

func kindOf(a Assertion) string {
	if a.Kind == "" {
		return KindAction
	}
	return a.Kind
}

// assertTraceContains checks that an event of the assertion's kind and type
// exists whose payload contains the expected fields.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	kind := kindOf(assertion)
	for _, event := range trace {
		if event.Kind == kind && event.Type == assertion.Action && matchPayload(event.Payload, assertion.Payload) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("%s %s with payload %v", kind, assertion.Action, assertion.Payload),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the listed types
// appear in the given order. Other events may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	kind := kindOf(assertion)
	positions := make(map[string]int)
	for i, event := range trace {
		if event.Kind != kind {
			continue
		}
		if _, seen := positions[event.Type]; !seen {
			positions[event.Type] = i + 1
		}
	}

	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all of %v present", assertion.Actions),
				Actual:   fmt.Sprintf("missing %s", action),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Actions); i++ {
		prev, curr := assertion.Actions[i-1], assertion.Actions[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("order %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the exact number of events of the assertion's
// kind and type.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	kind := kindOf(assertion)
	count := 0
	for _, event := range trace {
		if event.Kind == kind && event.Type == assertion.Action {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s %s", assertion.Count, kind, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks that every expected key is present in state with
// an equal value. Keys are checked in sorted order so the first mismatch
// reported is stable.
func assertFinalState(state State, assertion Assertion) error {
	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		expected := assertion.Expect[key]
		actual, ok := state[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("key %q = %v", key, expected),
				Actual:   fmt.Sprintf("key %q not present in state %v", key, map[string]any(state)),
			}
		}
		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("key %q = %v (type %T)", key, expected, expected),
				Actual:   fmt.Sprintf("key %q = %v (type %T)", key, actual, actual),
			}
		}
	}
	return nil
}

// matchPayload reports whether actual contains every expected field.
func matchPayload(actual, expected map[string]any) bool {
	for key, want := range expected {
		got, ok := actual[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual compares normalized scenario values.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	return reflect.DeepEqual(actual, expected)
}

// EvaluateAssertions evaluates assertions against result and returns one
// message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
