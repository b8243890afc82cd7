package store

import (
	"context"
	"time"

	"github.com/quantumlife/hearth/internal/state"
)

// AppHandle is a view of the app slice with bound actions.
type AppHandle struct{ s *Store }

// App returns the app handle.
func (s *Store) App() AppHandle { return AppHandle{s} }

// State returns the current app slice.
func (h AppHandle) State() *state.AppState { return h.s.State().App }

func (h AppHandle) dispatch(ctx context.Context, a state.AppAction) *state.AppState {
	return h.s.Dispatch(ctx, a).App
}

func (h AppHandle) SetTheme(ctx context.Context, t state.Theme) *state.AppState {
	return h.dispatch(ctx, state.SetTheme{Theme: t})
}

func (h AppHandle) SetMobile(ctx context.Context, mobile bool) *state.AppState {
	return h.dispatch(ctx, state.SetMobile{IsMobile: mobile})
}

func (h AppHandle) SetDebugMode(ctx context.Context, enabled bool) *state.AppState {
	return h.dispatch(ctx, state.SetDebugMode{Enabled: enabled})
}

func (h AppHandle) SetLoading(ctx context.Context, loading bool) *state.AppState {
	return h.dispatch(ctx, state.SetLoading{IsLoading: loading})
}

// SetError sets the global error message.
func (h AppHandle) SetError(ctx context.Context, msg string) *state.AppState {
	return h.dispatch(ctx, state.ErrorMessage(msg))
}

// ClearError clears the global error message.
func (h AppHandle) ClearError(ctx context.Context) *state.AppState {
	return h.dispatch(ctx, state.ClearError())
}

// CalendarHandle is a view of the calendar slice with bound actions.
type CalendarHandle struct{ s *Store }

// Calendar returns the calendar handle.
func (s *Store) Calendar() CalendarHandle { return CalendarHandle{s} }

// State returns the current calendar slice.
func (h CalendarHandle) State() *state.CalendarState { return h.s.State().Calendar }

func (h CalendarHandle) dispatch(ctx context.Context, a state.CalendarAction) *state.CalendarState {
	return h.s.Dispatch(ctx, a).Calendar
}

func (h CalendarHandle) SetViewMode(ctx context.Context, mode state.ViewMode) *state.CalendarState {
	return h.dispatch(ctx, state.SetViewMode{Mode: mode})
}

func (h CalendarHandle) SetCurrentDate(ctx context.Context, date time.Time) *state.CalendarState {
	return h.dispatch(ctx, state.SetCurrentDate{Date: date})
}

func (h CalendarHandle) SetSearchTerm(ctx context.Context, term string) *state.CalendarState {
	return h.dispatch(ctx, state.SetCalendarSearchTerm{Term: term})
}

func (h CalendarHandle) SetCreateDialogOpen(ctx context.Context, open bool) *state.CalendarState {
	return h.dispatch(ctx, state.SetCreateDialogOpen{Open: open})
}

func (h CalendarHandle) SetFileUploader(ctx context.Context, show bool) *state.CalendarState {
	return h.dispatch(ctx, state.SetFileUploader{Show: show})
}

func (h CalendarHandle) SetInviteDialogOpen(ctx context.Context, open bool) *state.CalendarState {
	return h.dispatch(ctx, state.SetInviteDialogOpen{Open: open})
}

func (h CalendarHandle) SetIsAddingEvent(ctx context.Context, adding bool) *state.CalendarState {
	return h.dispatch(ctx, state.SetIsAddingEvent{Adding: adding})
}

func (h CalendarHandle) SetIsInviting(ctx context.Context, inviting bool) *state.CalendarState {
	return h.dispatch(ctx, state.SetIsInviting{Inviting: inviting})
}

func (h CalendarHandle) SetEvents(ctx context.Context, events []state.Event) *state.CalendarState {
	return h.dispatch(ctx, state.SetEvents{Events: events})
}

// SetSelectedEvent selects e; nil clears the selection.
func (h CalendarHandle) SetSelectedEvent(ctx context.Context, e *state.Event) *state.CalendarState {
	return h.dispatch(ctx, state.SetSelectedEvent{Event: e})
}

func (h CalendarHandle) AddEvent(ctx context.Context, e state.Event) *state.CalendarState {
	return h.dispatch(ctx, state.AddEvent{Event: e})
}

func (h CalendarHandle) UpdateEvent(ctx context.Context, e state.Event) *state.CalendarState {
	return h.dispatch(ctx, state.UpdateEvent{Event: e})
}

func (h CalendarHandle) DeleteEvent(ctx context.Context, id string) *state.CalendarState {
	return h.dispatch(ctx, state.DeleteEvent{ID: id})
}

// ShoppingHandle is a view of the shopping slice with bound actions.
type ShoppingHandle struct{ s *Store }

// Shopping returns the shopping handle.
func (s *Store) Shopping() ShoppingHandle { return ShoppingHandle{s} }

// State returns the current shopping slice.
func (h ShoppingHandle) State() *state.ShoppingState { return h.s.State().Shopping }

func (h ShoppingHandle) dispatch(ctx context.Context, a state.ShoppingAction) *state.ShoppingState {
	return h.s.Dispatch(ctx, a).Shopping
}

func (h ShoppingHandle) SetSearchTerm(ctx context.Context, term string) *state.ShoppingState {
	return h.dispatch(ctx, state.SetShoppingSearchTerm{Term: term})
}

func (h ShoppingHandle) SetFilterMode(ctx context.Context, mode state.FilterMode) *state.ShoppingState {
	return h.dispatch(ctx, state.SetFilterMode{Mode: mode})
}

func (h ShoppingHandle) SetSortOption(ctx context.Context, opt state.SortOption) *state.ShoppingState {
	return h.dispatch(ctx, state.SetSortOption{Option: opt})
}

func (h ShoppingHandle) SetSelectedItems(ctx context.Context, ids []string) *state.ShoppingState {
	return h.dispatch(ctx, state.SetSelectedItems{IDs: ids})
}

func (h ShoppingHandle) AddSelectedItem(ctx context.Context, id string) *state.ShoppingState {
	return h.dispatch(ctx, state.AddSelectedItem{ID: id})
}

func (h ShoppingHandle) RemoveSelectedItem(ctx context.Context, id string) *state.ShoppingState {
	return h.dispatch(ctx, state.RemoveSelectedItem{ID: id})
}

func (h ShoppingHandle) ClearSelectedItems(ctx context.Context) *state.ShoppingState {
	return h.dispatch(ctx, state.ClearSelectedItems{})
}

func (h ShoppingHandle) SetLoading(ctx context.Context, loading bool) *state.ShoppingState {
	return h.dispatch(ctx, state.SetShoppingLoading{IsLoading: loading})
}
