package store

import (
	"fmt"
	"io"
	"log/slog"
)

// Dispatch submits an action and returns whatever the chain returns for it.
type Dispatch func(action any) (any, error)

// GetState returns the current state snapshot.
type GetState[S any] func() S

// API is the store facade handed to every middleware.
type API[S any] struct {
	Dispatch Dispatch
	GetState GetState[S]
}

// Middleware intercepts dispatched actions. See the package documentation
// for the three stages.
type Middleware[S any] func(api API[S]) func(next Dispatch) Dispatch

// Reducer computes the next state from the current state and a plain action.
// Reducers must not dispatch.
type Reducer[S any] func(state S, action Action) S

// Listener is notified after every reduced action.
type Listener func()

// Option configures a Store.
type Option[S any] func(*Store[S])

// WithMiddleware installs middleware. Repeated options append.
func WithMiddleware[S any](mws ...Middleware[S]) Option[S] {
	return func(s *Store[S]) {
		s.middleware = append(s.middleware, mws...)
	}
}

// WithLogger sets the logger used for store lifecycle messages.
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(s *Store[S]) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type subscription struct {
	id       int
	listener Listener
}

// Store holds state of type S and the dispatch chain that updates it.
type Store[S any] struct {
	reducer     Reducer[S]
	state       S
	dispatch    Dispatch
	dispatching bool

	listeners []subscription
	nextID    int

	middleware []Middleware[S]
	logger     *slog.Logger
}

// New creates a Store, builds its middleware chain and reduces
// InitActionType once. The init action bypasses middleware.
func New[S any](reducer Reducer[S], initial S, opts ...Option[S]) (*Store[S], error) {
	if reducer == nil {
		return nil, fmt.Errorf("store: reducer is nil")
	}

	s := &Store[S]{
		reducer: reducer,
		state:   initial,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.dispatch = s.baseDispatch
	if len(s.middleware) > 0 {
		constructing := true
		api := API[S]{
			Dispatch: func(action any) (any, error) {
				if constructing {
					return nil, &Error{
						Code:    ErrCodeDispatchDuringConstruction,
						Message: "dispatching while constructing middleware is not allowed",
					}
				}
				return s.dispatch(action)
			},
			GetState: s.GetState,
		}
		s.dispatch = Chain(api, s.baseDispatch, s.middleware...)
		constructing = false
	}

	if _, err := s.baseDispatch(Record{Type: InitActionType}); err != nil {
		return nil, fmt.Errorf("store: init: %w", err)
	}

	s.logger.Debug("store created", "middleware", len(s.middleware))
	return s, nil
}

// Dispatch runs action through the middleware chain.
func (s *Store[S]) Dispatch(action any) (any, error) {
	return s.dispatch(action)
}

// GetState returns the current state.
func (s *Store[S]) GetState() S {
	return s.state
}

// API returns the facade middleware receive.
func (s *Store[S]) API() API[S] {
	return API[S]{Dispatch: s.Dispatch, GetState: s.GetState}
}

// Subscribe registers a listener and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (s *Store[S]) Subscribe(listener Listener) (unsubscribe func()) {
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, listener: listener})

	return func() {
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// ReplaceReducer swaps the reducer and reduces ReplaceActionType with it.
func (s *Store[S]) ReplaceReducer(reducer Reducer[S]) error {
	if reducer == nil {
		return fmt.Errorf("store: reducer is nil")
	}
	s.reducer = reducer
	if _, err := s.baseDispatch(Record{Type: ReplaceActionType}); err != nil {
		return fmt.Errorf("store: replace reducer: %w", err)
	}
	s.logger.Debug("reducer replaced")
	return nil
}

// baseDispatch is the end of every chain: it reduces plain actions and
// notifies listeners. It returns the action itself.
func (s *Store[S]) baseDispatch(action any) (any, error) {
	a, ok := action.(Action)
	if !ok {
		return nil, newNotPlainError(action)
	}
	actionType := a.ActionType()
	if actionType == "" {
		return nil, &Error{Code: ErrCodeMissingType, Message: "action type is empty"}
	}
	if s.dispatching {
		return nil, &Error{
			Code:       ErrCodeReducerDispatch,
			Message:    "reducers may not dispatch actions",
			ActionType: actionType,
		}
	}

	s.reduce(a)

	// Listeners added or removed during notification take effect next time.
	listeners := make([]subscription, len(s.listeners))
	copy(listeners, s.listeners)
	for _, sub := range listeners {
		sub.listener()
	}

	return action, nil
}

func (s *Store[S]) reduce(a Action) {
	s.dispatching = true
	defer func() { s.dispatching = false }()
	s.state = s.reducer(s.state, a)
}
