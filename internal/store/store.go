package store

import (
	"context"
	"sync"

	"github.com/quantumlife/hearth/internal/clock"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/metrics"
	"github.com/quantumlife/hearth/internal/state"
)

// Listener receives the state after every dispatch.
type Listener func(state.GlobalState)

// Store holds the current GlobalState. Dispatches are serialized; reads
// never block on a running dispatch.
type Store struct {
	dispatchMu sync.Mutex
	chain      *Chain

	mu      sync.RWMutex
	current state.GlobalState

	subMu     sync.Mutex
	listeners map[uint64]Listener
	nextID    uint64

	// pending holds states not yet delivered, in dispatch order. Only the
	// goroutine that set draining delivers them.
	notifyMu sync.Mutex
	pending  []state.GlobalState
	draining bool

	logger  *logging.Logger
	metrics *metrics.Collector
}

// Option configures a Store.
type Option func(*options)

type options struct {
	initial *state.GlobalState
	logger  *logging.Logger
	metrics *metrics.Collector
	clock   clock.Clock
}

// WithInitialState starts the store at st instead of state.Initial.
func WithInitialState(st state.GlobalState) Option {
	return func(o *options) { o.initial = &st }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics reports the listener count to m.
func WithMetrics(m *metrics.Collector) Option {
	return func(o *options) { o.metrics = m }
}

// WithClock sets the clock used to seed the initial calendar date.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// New creates a store that runs every dispatch through chain. A nil chain
// reduces directly.
func New(chain *Chain, opts ...Option) *Store {
	o := options{clock: clock.Real{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Default()
	}
	if chain == nil {
		chain = NewChainOf(o.logger)
	}

	initial := state.Initial(o.clock.Now())
	if o.initial != nil {
		initial = *o.initial
	}

	return &Store{
		chain:     chain,
		current:   initial,
		listeners: make(map[uint64]Listener),
		logger:    o.logger.WithField("component", "store"),
		metrics:   o.metrics,
	}
}

// State returns the current state. The slices it points to must be treated
// as read-only.
func (s *Store) State() state.GlobalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Chain returns the middleware chain.
func (s *Store) Chain() *Chain {
	return s.chain
}

// Dispatch runs a through the chain, installs the result and notifies every
// listener once. It returns the new state. A nil action is ignored.
//
// Listeners see states in dispatch order. A dispatch that arrives while
// another goroutine is notifying hands its state to that goroutine and
// returns; a listener may dispatch itself.
func (s *Store) Dispatch(ctx context.Context, a state.Action) state.GlobalState {
	if a == nil {
		s.logger.Warn("Ignoring nil action")
		return s.State()
	}

	next := s.apply(ctx, a)
	s.drain()
	return next
}

func (s *Store) apply(ctx context.Context, a state.Action) state.GlobalState {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	next := s.chain.Run(ctx, s.State(), a)
	s.mu.Lock()
	s.current = next
	s.mu.Unlock()

	s.notifyMu.Lock()
	s.pending = append(s.pending, next)
	s.notifyMu.Unlock()
	return next
}

func (s *Store) drain() {
	s.notifyMu.Lock()
	if s.draining {
		s.notifyMu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		st := s.pending[0]
		s.pending[0] = state.GlobalState{}
		s.pending = s.pending[1:]
		s.notifyMu.Unlock()

		for _, l := range s.snapshotListeners() {
			s.notify(l, st)
		}
		s.notifyMu.Lock()
	}
	s.draining = false
	s.notifyMu.Unlock()
}

// Subscribe registers fn for every future dispatch and returns a function
// that removes it. Calling the returned function more than once is safe.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	n := len(s.listeners)
	s.subMu.Unlock()
	s.metrics.SetSubscribers(n)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.listeners, id)
			n := len(s.listeners)
			s.subMu.Unlock()
			s.metrics.SetSubscribers(n)
		})
	}
}

func (s *Store) snapshotListeners() []Listener {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}

func (s *Store) notify(l Listener, st state.GlobalState) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Listener panicked: %v", r)
		}
	}()
	l(st)
}
