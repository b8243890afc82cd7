package state

import (
	"fmt"

	"github.com/quantumlife/hearth/internal/core"
)

// Theme is the UI color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeLight, ThemeDark, ThemeSystem:
		return Theme(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidTheme, s)
}

// AppState holds application-wide UI flags.
type AppState struct {
	Theme     Theme   `json:"theme"`
	IsMobile  bool    `json:"isMobile"`
	DebugMode bool    `json:"debugMode"`
	IsLoading bool    `json:"isLoading"`
	Error     *string `json:"error"`
}

// App action types.
const (
	TypeSetTheme     = "SET_THEME"
	TypeSetMobile    = "SET_MOBILE"
	TypeSetDebugMode = "SET_DEBUG_MODE"
	TypeSetLoading   = "SET_LOADING"
	TypeSetError     = "SET_ERROR"
)

type app struct{}

func (app) Slice() Slice { return SliceApp }

func (app) appAction() {}

// SetTheme changes the theme.
type SetTheme struct {
	app
	Theme Theme
}

func (SetTheme) Type() string { return TypeSetTheme }

func (a SetTheme) payload() any { return a.Theme }

// SetMobile records whether the host is a mobile layout.
type SetMobile struct {
	app
	IsMobile bool
}

func (SetMobile) Type() string { return TypeSetMobile }

func (a SetMobile) payload() any { return a.IsMobile }

// SetDebugMode toggles debug snapshots.
type SetDebugMode struct {
	app
	Enabled bool
}

func (SetDebugMode) Type() string { return TypeSetDebugMode }

func (a SetDebugMode) payload() any { return a.Enabled }

// SetLoading toggles the global loading indicator.
type SetLoading struct {
	app
	IsLoading bool
}

func (SetLoading) Type() string { return TypeSetLoading }

func (a SetLoading) payload() any { return a.IsLoading }

// SetError sets or, with a nil Message, clears the global error.
type SetError struct {
	app
	Message *string
}

func (SetError) Type() string { return TypeSetError }

func (a SetError) payload() any { return a.Message }

// ErrorMessage builds a SetError carrying msg.
func ErrorMessage(msg string) SetError {
	return SetError{Message: &msg}
}

// ClearError builds a SetError that clears the global error.
func ClearError() SetError {
	return SetError{}
}

// ReduceApp applies an app action. Unknown actions return s itself.
func ReduceApp(s *AppState, a AppAction) *AppState {
	switch a := a.(type) {
	case SetTheme:
		next := *s
		next.Theme = a.Theme
		return &next
	case SetMobile:
		next := *s
		next.IsMobile = a.IsMobile
		return &next
	case SetDebugMode:
		next := *s
		next.DebugMode = a.Enabled
		return &next
	case SetLoading:
		next := *s
		next.IsLoading = a.IsLoading
		return &next
	case SetError:
		next := *s
		if a.Message == nil {
			next.Error = nil
		} else {
			msg := *a.Message
			next.Error = &msg
		}
		return &next
	default:
		return s
	}
}
