package prefs

import (
	"context"

	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/state"
)

// Dispatcher is the part of the store Watch drives.
type Dispatcher interface {
	Dispatch(ctx context.Context, a state.Action) state.GlobalState
	State() state.GlobalState
}

// Watch turns edits of the preferences file made by other processes into
// dispatches on d. Values are re-read through s, which may wrap f (for
// example with encryption). It blocks until ctx is done.
func Watch(ctx context.Context, f *kv.File, s kv.Store, d Dispatcher) error {
	log := logging.WithField("component", "prefs")
	return f.Watch(ctx, func(c kv.Change) {
		if c.Key != KeyTheme && c.Key != KeyShopping {
			return
		}
		p, err := Load(ctx, s)
		if err != nil {
			log.Warn("Reload after external change failed: %v", err)
			return
		}
		for _, a := range Actions(FromState(d.State()), p) {
			log.Info("Applying external preference change: %s", state.Key(a))
			d.Dispatch(ctx, a)
		}
	})
}
