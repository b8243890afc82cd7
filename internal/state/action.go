package state

// Action is an immutable description of a state transition.
//
// The set of actions is closed: every implementation lives in this package.
// Per-slice reducers accept the narrower AppAction, CalendarAction and
// ShoppingAction interfaces.
type Action interface {
	// Slice is the outer discriminator (APP, CALENDAR, SHOPPING).
	Slice() Slice
	// Type is the inner discriminator, e.g. SET_THEME.
	Type() string

	payload() any
}

// AppAction is an action handled by ReduceApp.
type AppAction interface {
	Action
	appAction()
}

// CalendarAction is an action handled by ReduceCalendar.
type CalendarAction interface {
	Action
	calendarAction()
}

// ShoppingAction is an action handled by ReduceShopping.
type ShoppingAction interface {
	Action
	shoppingAction()
}

// Key is the composite "<SLICE>_<TYPE>" name used for rate limiting,
// metrics and logs.
func Key(a Action) string {
	if a == nil {
		return "unknown_unknown"
	}
	t := a.Type()
	if t == "" {
		t = "unknown"
	}
	return string(a.Slice()) + "_" + t
}

// Unknown is an action whose inner type this build does not recognize, e.g.
// one sent by a newer client. Every reducer ignores it.
type Unknown struct {
	SliceName Slice
	TypeName  string
}

func (u Unknown) Slice() Slice { return u.SliceName }
func (u Unknown) Type() string { return u.TypeName }
func (u Unknown) payload() any { return nil }
