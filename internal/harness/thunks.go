package harness

import (
	"errors"
	"fmt"
	"maps"

	"github.com/roach88/thunk"
	"github.com/roach88/thunk/store"
)

// Builder turns step arguments into a deferred computation.
type Builder func(args map[string]any) (thunk.Func[State, any], error)

// Call is a named thunk dispatched by a scenario step or by another thunk.
// The harness resolves it to the Func its Builder returns.
type Call struct {
	Name string
	Args map[string]any
}

func builtinThunks() map[string]Builder {
	return map[string]Builder{
		"dispatch":     dispatchThunk,
		"dispatch_all": dispatchAllThunk,
		"extra":        extraThunk,
		"read_state":   readStateThunk,
		"fail":         failThunk,
		"nested":       nestedThunk,
	}
}

// dispatch: {type, payload?} dispatches one action and returns what
// dispatch returned.
func dispatchThunk(args map[string]any) (thunk.Func[State, any], error) {
	rec, err := recordArg(args)
	if err != nil {
		return nil, err
	}
	return func(dispatch store.Dispatch, _ store.GetState[State], _ any) (any, error) {
		return dispatch(rec)
	}, nil
}

// dispatch_all: {actions: [{type, payload?}...]} dispatches in order, stops
// at the first error and returns the number dispatched.
func dispatchAllThunk(args map[string]any) (thunk.Func[State, any], error) {
	list, ok := args["actions"].([]any)
	if !ok {
		return nil, fmt.Errorf("dispatch_all: actions must be a list")
	}
	records := make([]store.Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("dispatch_all: actions[%d] must be a map", i)
		}
		rec, err := recordArg(m)
		if err != nil {
			return nil, fmt.Errorf("dispatch_all: actions[%d]: %w", i, err)
		}
		records = append(records, rec)
	}

	return func(dispatch store.Dispatch, _ store.GetState[State], _ any) (any, error) {
		for i, rec := range records {
			if _, err := dispatch(rec); err != nil {
				return int64(i), err
			}
		}
		return int64(len(records)), nil
	}, nil
}

// extra returns the extra argument.
func extraThunk(map[string]any) (thunk.Func[State, any], error) {
	return func(_ store.Dispatch, _ store.GetState[State], extra any) (any, error) {
		return extra, nil
	}, nil
}

// read_state: {key?} returns state[key], or a copy of the whole state.
func readStateThunk(args map[string]any) (thunk.Func[State, any], error) {
	key, hasKey := args["key"]
	name, ok := key.(string)
	if hasKey && !ok {
		return nil, fmt.Errorf("read_state: key must be a string")
	}
	return func(_ store.Dispatch, getState store.GetState[State], _ any) (any, error) {
		if !hasKey {
			return map[string]any(maps.Clone(getState())), nil
		}
		return getState()[name], nil
	}, nil
}

// fail: {message} returns an error with message.
func failThunk(args map[string]any) (thunk.Func[State, any], error) {
	msg, ok := args["message"].(string)
	if !ok || msg == "" {
		return nil, fmt.Errorf("fail: message is required")
	}
	return func(store.Dispatch, store.GetState[State], any) (any, error) {
		return nil, errors.New(msg)
	}, nil
}

// nested: {thunk, args?} dispatches another named thunk and returns its
// result.
func nestedThunk(args map[string]any) (thunk.Func[State, any], error) {
	name, ok := args["thunk"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("nested: thunk is required")
	}
	var inner map[string]any
	if v, ok := args["args"]; ok {
		inner, ok = v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("nested: args must be a map")
		}
	}
	return func(dispatch store.Dispatch, _ store.GetState[State], _ any) (any, error) {
		return dispatch(Call{Name: name, Args: inner})
	}, nil
}

func recordArg(m map[string]any) (store.Record, error) {
	typ, ok := m["type"].(string)
	if !ok || typ == "" {
		return store.Record{}, fmt.Errorf("type is required")
	}
	var payload map[string]any
	if v, ok := m["payload"]; ok {
		payload, ok = v.(map[string]any)
		if !ok {
			return store.Record{}, fmt.Errorf("payload must be a map")
		}
	}
	return store.NewRecord(typ, payload), nil
}
