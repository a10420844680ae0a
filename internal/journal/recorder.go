package journal

import (
	"context"
	"fmt"

	"github.com/roach88/thunk/store"
)

// Recorder returns middleware that appends every plain action to j once the
// rest of the chain has handled it without error. Install it last so it sits
// next to the reducer.
//
// A failed append is returned from Dispatch; the state change has already
// happened by then.
func Recorder[S any](ctx context.Context, j *Journal, session string, seq Sequencer) store.Middleware[S] {
	return func(api store.API[S]) func(next store.Dispatch) store.Dispatch {
		return func(next store.Dispatch) store.Dispatch {
			return func(action any) (any, error) {
				result, err := next(action)
				if err != nil {
					return result, err
				}

				a, ok := action.(store.Action)
				if !ok {
					return result, nil
				}

				entry, err := NewEntry(session, seq.Next(), a)
				if err != nil {
					return result, fmt.Errorf("journal: %w", err)
				}
				if err := j.Append(ctx, entry); err != nil {
					return result, fmt.Errorf("journal: %w", err)
				}
				return result, nil
			}
		}
	}
}
