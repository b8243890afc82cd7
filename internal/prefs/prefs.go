// Package prefs loads and saves the user preferences the store mirrors to
// durable storage: the theme and the shopping list view.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/quantumlife/hearth/internal/core"
	"github.com/quantumlife/hearth/internal/kv"
	"github.com/quantumlife/hearth/internal/logging"
	"github.com/quantumlife/hearth/internal/state"
)

// Storage keys.
const (
	KeyTheme    = "app_theme"
	KeyShopping = "shopping_preferences"
)

// Shopping is the JSON document stored under KeyShopping.
type Shopping struct {
	FilterMode state.FilterMode `json:"filterMode"`
	SortOption state.SortOption `json:"sortOption"`
}

// Preferences is everything persisted across restarts.
type Preferences struct {
	Theme    state.Theme `json:"theme"`
	Shopping Shopping    `json:"shopping"`
}

// Default returns the preferences used when nothing valid is stored.
func Default() Preferences {
	return Preferences{
		Theme: state.ThemeSystem,
		Shopping: Shopping{
			FilterMode: state.FilterAll,
			SortOption: state.SortNewest,
		},
	}
}

// FromState extracts the persisted fields of st.
func FromState(st state.GlobalState) Preferences {
	return Preferences{
		Theme: st.App.Theme,
		Shopping: Shopping{
			FilterMode: st.Shopping.FilterMode,
			SortOption: st.Shopping.SortOption,
		},
	}
}

// Load reads preferences from s. Missing or malformed values fall back to
// their defaults individually; only storage failures are returned.
func Load(ctx context.Context, s kv.Store) (Preferences, error) {
	p := Default()
	log := logging.WithField("component", "prefs")

	raw, err := s.Get(ctx, KeyTheme)
	switch {
	case errors.Is(err, core.ErrKeyNotFound):
	case err != nil:
		return p, fmt.Errorf("load %s: %w", KeyTheme, err)
	default:
		if theme, err := state.ParseTheme(raw); err == nil {
			p.Theme = theme
		} else {
			log.Warn("Ignoring stored theme: %v", err)
		}
	}

	raw, err = s.Get(ctx, KeyShopping)
	switch {
	case errors.Is(err, core.ErrKeyNotFound):
	case err != nil:
		return p, fmt.Errorf("load %s: %w", KeyShopping, err)
	default:
		shop, err := ParseShopping(raw)
		if err != nil {
			log.Warn("Ignoring stored shopping preferences: %v", err)
		}
		p.Shopping = shop
	}

	return p, nil
}

// ParseShopping decodes a KeyShopping document. Invalid fields are replaced
// by defaults; the error reports the first problem found.
func ParseShopping(raw string) (Shopping, error) {
	def := Default().Shopping
	var doc struct {
		FilterMode string `json:"filterMode"`
		SortOption string `json:"sortOption"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return def, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	out := def
	var firstErr error
	if doc.FilterMode != "" {
		if mode, err := state.ParseFilterMode(doc.FilterMode); err == nil {
			out.FilterMode = mode
		} else {
			firstErr = err
		}
	}
	if doc.SortOption != "" {
		if opt, err := state.ParseSortOption(doc.SortOption); err == nil {
			out.SortOption = opt
		} else if firstErr == nil {
			firstErr = err
		}
	}
	return out, firstErr
}

// Save writes both keys.
func Save(ctx context.Context, s kv.Store, p Preferences) error {
	if err := s.Set(ctx, KeyTheme, string(p.Theme)); err != nil {
		return fmt.Errorf("save %s: %w", KeyTheme, err)
	}
	raw, err := json.Marshal(p.Shopping)
	if err != nil {
		return err
	}
	if err := s.Set(ctx, KeyShopping, string(raw)); err != nil {
		return fmt.Errorf("save %s: %w", KeyShopping, err)
	}
	return nil
}

// Apply seeds st with p. Only the App and Shopping slices are replaced.
func Apply(st state.GlobalState, p Preferences) state.GlobalState {
	app := *st.App
	app.Theme = p.Theme
	st.App = &app

	shop := *st.Shopping
	shop.FilterMode = p.Shopping.FilterMode
	shop.SortOption = p.Shopping.SortOption
	st.Shopping = &shop
	return st
}

// Actions returns the actions that move a store from its current
// preferences to p. Unchanged fields produce no action.
func Actions(current, p Preferences) []state.Action {
	var actions []state.Action
	if current.Theme != p.Theme {
		actions = append(actions, state.SetTheme{Theme: p.Theme})
	}
	if current.Shopping.FilterMode != p.Shopping.FilterMode {
		actions = append(actions, state.SetFilterMode{Mode: p.Shopping.FilterMode})
	}
	if current.Shopping.SortOption != p.Shopping.SortOption {
		actions = append(actions, state.SetSortOption{Option: p.Shopping.SortOption})
	}
	return actions
}
