package store

// Reserved action types dispatched by the store itself.
const (
	// InitActionType is reduced once when a store is created.
	InitActionType = "@@store/INIT"

	// ReplaceActionType is reduced after ReplaceReducer swaps the reducer.
	ReplaceActionType = "@@store/REPLACE"
)

// Action is a plain action that the base dispatcher can hand to a reducer.
type Action interface {
	ActionType() string
}

// Record is the plain data action used throughout this module.
type Record struct {
	Type    string         `json:"type" yaml:"type"`
	Payload map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewRecord creates a Record. A nil payload stays nil.
func NewRecord(actionType string, payload map[string]any) Record {
	return Record{Type: actionType, Payload: payload}
}

// ActionType implements Action.
func (r Record) ActionType() string {
	return r.Type
}

// Get returns a payload field.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.Payload[key]
	return v, ok
}
