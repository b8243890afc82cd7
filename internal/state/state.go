// Package state defines the global state tree, the closed set of actions
// that can change it, and the pure reducers that apply them.
//
// GlobalState holds one pointer per slice. A reducer that handles an action
// returns a fresh copy of its slice; every other slice keeps its pointer, so
// callers can skip work with a pointer comparison. Reducers never fail:
// actions they do not recognize leave the state untouched.
package state

import (
	"fmt"
	"time"

	"github.com/quantumlife/hearth/internal/core"
)

// Slice selects the partition of GlobalState an action targets.
type Slice string

const (
	SliceApp      Slice = "APP"
	SliceCalendar Slice = "CALENDAR"
	SliceShopping Slice = "SHOPPING"
)

// ParseSlice validates a slice name.
func ParseSlice(s string) (Slice, error) {
	switch Slice(s) {
	case SliceApp, SliceCalendar, SliceShopping:
		return Slice(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownSlice, s)
}

// GlobalState is the aggregate of all slices.
type GlobalState struct {
	App      *AppState      `json:"app"`
	Calendar *CalendarState `json:"calendar"`
	Shopping *ShoppingState `json:"shopping"`

	// Slices without reducers yet. They are carried through every dispatch
	// untouched.
	Auth          *AuthState         `json:"auth"`
	User          *UserState         `json:"user"`
	Notifications *NotificationState `json:"notifications"`
	Recipes       *RecipeState       `json:"recipes"`
	Documents     *DocumentState     `json:"documents"`
}

// AuthState is a placeholder slice.
type AuthState struct {
	IsAuthenticated bool `json:"isAuthenticated"`
	LoginAttempts   int  `json:"loginAttempts"`
}

// UserState is a placeholder slice.
type UserState struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// NotificationState is a placeholder slice.
type NotificationState struct {
	UnreadCount int `json:"unreadCount"`
}

// RecipeState is a placeholder slice.
type RecipeState struct {
	Favorites []string `json:"favorites"`
	Recent    []string `json:"recent"`
}

// DocumentState is a placeholder slice.
type DocumentState struct {
	SelectedID  string `json:"selectedId,omitempty"`
	IsUploading bool   `json:"isUploading"`
}

// Initial returns the state a store starts with. now seeds the calendar's
// current date.
func Initial(now time.Time) GlobalState {
	return GlobalState{
		App: &AppState{
			Theme: ThemeSystem,
		},
		Calendar: &CalendarState{
			ViewMode:    ViewDay,
			CurrentDate: now,
			Events:      []Event{},
		},
		Shopping: &ShoppingState{
			FilterMode:    FilterAll,
			SortOption:    SortNewest,
			SelectedItems: []string{},
		},
		Auth:          &AuthState{},
		User:          &UserState{},
		Notifications: &NotificationState{},
		Recipes:       &RecipeState{Favorites: []string{}, Recent: []string{}},
		Documents:     &DocumentState{},
	}
}

// Reduce routes an action to its slice reducer by the action's slice and
// reassembles the aggregate. Slices other than the target keep their
// pointers. Unknown slices, unknown action types and a nil target slice
// return st unchanged.
func Reduce(st GlobalState, a Action) GlobalState {
	if a == nil {
		return st
	}
	switch a.Slice() {
	case SliceApp:
		if aa, ok := a.(AppAction); ok && st.App != nil {
			st.App = ReduceApp(st.App, aa)
		}
	case SliceCalendar:
		if ca, ok := a.(CalendarAction); ok && st.Calendar != nil {
			st.Calendar = ReduceCalendar(st.Calendar, ca)
		}
	case SliceShopping:
		if sa, ok := a.(ShoppingAction); ok && st.Shopping != nil {
			st.Shopping = ReduceShopping(st.Shopping, sa)
		}
	}
	return st
}
