// Package store owns the global state: it runs every dispatched action
// through an ordered middleware chain and the root reducer, swaps the
// result in, and tells subscribers.
package store

import (
	"context"
	"fmt"

	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/state"
)

// Next hands an action to the rest of the chain and returns the state it
// produced.
type Next func(a state.Action) state.GlobalState

// Middleware intercepts a dispatch. Implementations call next at most once,
// possibly with a substitute action, or return without calling it to drop
// the action. prev is shared by every middleware and must not be modified.
type Middleware interface {
	Name() string
	Intercept(ctx context.Context, prev state.GlobalState, a state.Action, next Next)
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc struct {
	Label string
	Fn    func(ctx context.Context, prev state.GlobalState, a state.Action, next Next)
}

// Name returns the label.
func (f MiddlewareFunc) Name() string {
	if f.Label == "" {
		return "func"
	}
	return f.Label
}

// Intercept calls Fn.
func (f MiddlewareFunc) Intercept(ctx context.Context, prev state.GlobalState, a state.Action, next Next) {
	f.Fn(ctx, prev, a, next)
}

// Chain is an ordered list of middlewares ending in the root reducer.
type Chain struct {
	middlewares []Middleware
	logger      *logging.Logger
}

// NewChainOf builds a chain from explicit middlewares, outermost first.
func NewChainOf(logger *logging.Logger, mws ...Middleware) *Chain {
	if logger == nil {
		logger = logging.Default()
	}
	out := make([]Middleware, 0, len(mws))
	for _, m := range mws {
		if m != nil {
			out = append(out, m)
		}
	}
	return &Chain{middlewares: out, logger: logger.WithField("component", "chain")}
}

// Names lists the middlewares in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.middlewares))
	for i, m := range c.middlewares {
		names[i] = m.Name()
	}
	return names
}

// Len returns the number of middlewares.
func (c *Chain) Len() int {
	return len(c.middlewares)
}

// Run drives a to the reducer through every middleware in order and returns
// the resulting state. If a middleware drops the action, prev is returned.
func (c *Chain) Run(ctx context.Context, prev state.GlobalState, a state.Action) state.GlobalState {
	return c.step(ctx, 0, prev, a)
}

func (c *Chain) step(ctx context.Context, i int, prev state.GlobalState, a state.Action) state.GlobalState {
	if i >= len(c.middlewares) {
		return c.reduce(prev, a)
	}

	m := c.middlewares[i]
	result := prev
	called := false
	next := func(na state.Action) state.GlobalState {
		if called {
			c.logger.Warn("[%s] next called more than once for %s; ignored", m.Name(), state.Key(na))
			return result
		}
		called = true
		result = c.step(ctx, i+1, prev, na)
		return result
	}

	c.intercept(ctx, m, prev, a, next)
	return result
}

// reduce keeps prev if the root reducer panics.
func (c *Chain) reduce(prev state.GlobalState, a state.Action) (next state.GlobalState) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic while reducing %T: %v", a, fmt.Sprint(r))
			next = prev
		}
	}()
	return state.Reduce(prev, a)
}

// intercept contains panics so one broken middleware cannot take down the
// dispatching goroutine. Whatever next produced before the panic is kept.
func (c *Chain) intercept(ctx context.Context, m Middleware, prev state.GlobalState, a state.Action, next Next) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.WithField("middleware", m.Name()).Error("panic while handling %s: %v", state.Key(a), fmt.Sprint(r))
		}
	}()
	m.Intercept(ctx, prev, a, next)
}
