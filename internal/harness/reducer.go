package harness

import (
	"maps"

	"github.com/roach88/thunk/store"
)

// Reduce applies set, increment and delete actions to a copy of state.
// Malformed payloads and unknown types leave the state unchanged.
func Reduce(state State, action store.Action) State {
	rec, ok := action.(store.Record)
	if !ok {
		return state
	}
	key, ok := rec.Payload["key"].(string)
	if !ok {
		return state
	}

	switch rec.Type {
	case "set":
		value, ok := rec.Payload["value"]
		if !ok {
			return state
		}
		next := maps.Clone(state)
		if next == nil {
			next = State{}
		}
		next[key] = value
		return next

	case "increment":
		by := int64(1)
		if v, ok := rec.Payload["by"]; ok {
			n, ok := v.(int64)
			if !ok {
				return state
			}
			by = n
		}
		var current int64
		if v, ok := state[key]; ok {
			n, ok := v.(int64)
			if !ok {
				return state
			}
			current = n
		}
		next := maps.Clone(state)
		if next == nil {
			next = State{}
		}
		next[key] = current + by
		return next

	case "delete":
		if _, ok := state[key]; !ok {
			return state
		}
		next := maps.Clone(state)
		delete(next, key)
		return next
	}
	return state
}
