package harness

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/thunk/store"
)

//go:embed schema.cue
var schemaSource string

// Scenario is a scripted run against a fresh store.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Session groups journal entries. Empty means testutil.DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Extra is the extra argument handed to every deferred computation.
	Extra any `yaml:"extra,omitempty"`

	// Initial is the state before the first step.
	Initial map[string]any `yaml:"initial,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step dispatches either a plain action or a named thunk.
type Step struct {
	Dispatch *store.Record `yaml:"dispatch,omitempty"`

	// Thunk names a registered builder; Args are passed to it.
	Thunk string         `yaml:"thunk,omitempty"`
	Args  map[string]any `yaml:"args,omitempty"`

	// Expect is checked against what Dispatch returned. Nil means the step
	// must not fail.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes the outcome of a step.
type Expect struct {
	// Result must equal the returned value when set.
	Result any `yaml:"result,omitempty"`

	// Error must be a substring of the returned error when set.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Action is an action type or thunk name, depending on Kind.
	Action string `yaml:"action,omitempty"`

	// Kind selects which trace events are considered. Defaults to "action".
	Kind string `yaml:"kind,omitempty"`

	// Payload is a subset match against the event payload (trace_contains).
	Payload map[string]any `yaml:"payload,omitempty"`

	Actions []string `yaml:"actions,omitempty"`

	Count int `yaml:"count,omitempty"`

	// Expect is a subset match against the final state (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads, schema-checks and decodes a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseScenario decodes a scenario from YAML. The document is checked
// against the embedded schema, then decoded strictly so unknown fields are
// rejected, then values are normalized to int64, string, bool, []any and
// map[string]any.
func ParseScenario(data []byte) (*Scenario, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := checkSchema(raw); err != nil {
		return nil, err
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := normalizeScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// checkSchema unifies raw with #Scenario and requires a concrete result.
func checkSchema(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile scenario schema: %w", err)
	}

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Scenario")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return &SchemaError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}

// SchemaError reports a scenario that does not match the schema.
type SchemaError struct {
	Details string
}

func (e *SchemaError) Error() string {
	return "scenario does not match schema: " + e.Details
}

// validateScenario checks what the schema cannot express. It also covers
// scenarios built in Go rather than loaded from YAML.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Dispatch != nil && step.Thunk != "":
			return fmt.Errorf("steps[%d]: dispatch and thunk are mutually exclusive", i)
		case step.Dispatch == nil && step.Thunk == "":
			return fmt.Errorf("steps[%d]: one of dispatch or thunk is required", i)
		case step.Dispatch != nil && step.Dispatch.Type == "":
			return fmt.Errorf("steps[%d].dispatch: type is required", i)
		}
		if step.Expect != nil && step.Expect.Result != nil && step.Expect.Error != "" {
			return fmt.Errorf("steps[%d].expect: result and error are mutually exclusive", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Kind != "" && a.Kind != KindAction && a.Kind != KindDeferred {
		return fmt.Errorf("assertions[%d]: unknown kind %q", index, a.Kind)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func normalizeScenario(s *Scenario) error {
	var err error
	if s.Extra != nil {
		if s.Extra, err = normalize(s.Extra); err != nil {
			return fmt.Errorf("extra: %w", err)
		}
	}
	if s.Initial, err = normalizeMap(s.Initial); err != nil {
		return fmt.Errorf("initial: %w", err)
	}

	for i := range s.Steps {
		step := &s.Steps[i]
		if step.Dispatch != nil {
			if step.Dispatch.Payload, err = normalizeMap(step.Dispatch.Payload); err != nil {
				return fmt.Errorf("steps[%d].dispatch.payload: %w", i, err)
			}
		}
		if step.Args, err = normalizeMap(step.Args); err != nil {
			return fmt.Errorf("steps[%d].args: %w", i, err)
		}
		if step.Expect != nil && step.Expect.Result != nil {
			if step.Expect.Result, err = normalize(step.Expect.Result); err != nil {
				return fmt.Errorf("steps[%d].expect.result: %w", i, err)
			}
		}
	}

	for i := range s.Assertions {
		a := &s.Assertions[i]
		if a.Payload, err = normalizeMap(a.Payload); err != nil {
			return fmt.Errorf("assertions[%d].payload: %w", i, err)
		}
		if a.Expect, err = normalizeMap(a.Expect); err != nil {
			return fmt.Errorf("assertions[%d].expect: %w", i, err)
		}
	}
	return nil
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		nv, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		out[k] = nv
	}
	return out, nil
}

// normalize converts a decoded YAML value to the types canonical JSON
// accepts. Null and non-integral numbers are errors.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null values are not allowed")
	case string, bool, int64:
		return val, nil
	case int:
		return int64(val), nil
	case uint64:
		if val > 1<<63-1 {
			return nil, fmt.Errorf("integer %d out of range", val)
		}
		return int64(val), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats are not allowed: %v", val)
		}
		return int64(val), nil
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			ne, err := normalize(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ne
		}
		return out, nil
	case map[string]any:
		return normalizeMap(val)
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
