package state

import (
	"fmt"
	"slices"
	"time"

	"github.com/quantumlife/hearth/internal/core"
)

// ViewMode is the calendar layout.
type ViewMode string

const (
	ViewDay    ViewMode = "day"
	ViewWeek   ViewMode = "week"
	ViewMonth  ViewMode = "month"
	ViewAgenda ViewMode = "agenda"
)

// ParseViewMode validates a view mode name.
func ParseViewMode(s string) (ViewMode, error) {
	switch ViewMode(s) {
	case ViewDay, ViewWeek, ViewMonth, ViewAgenda:
		return ViewMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidView, s)
}

// Event is a calendar entry.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"startDate"`
	End         time.Time `json:"endDate"`
	Location    string    `json:"location,omitempty"`
	Attendees   []string  `json:"attendees,omitempty"`
	Color       string    `json:"color,omitempty"`
	AllDay      bool      `json:"allDay,omitempty"`
}

// Validate checks the fields an event must carry to be addressable.
func (e Event) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("%w: event id", core.ErrMissingRequired)
	}
	if !e.Start.IsZero() && !e.End.IsZero() && e.End.Before(e.Start) {
		return fmt.Errorf("%w: event %s ends before it starts", core.ErrInvalidInput, e.ID)
	}
	return nil
}

// CalendarState holds the calendar view and its events.
type CalendarState struct {
	ViewMode         ViewMode  `json:"viewMode"`
	CurrentDate      time.Time `json:"currentDate"`
	SearchTerm       string    `json:"searchTerm"`
	CreateDialogOpen bool      `json:"createDialogOpen"`
	ShowFileUploader bool      `json:"showFileUploader"`
	InviteDialogOpen bool      `json:"inviteDialogOpen"`
	IsAddingEvent    bool      `json:"isAddingEvent"`
	IsInviting       bool      `json:"isInviting"`
	Events           []Event   `json:"events"`
	SelectedEvent    *Event    `json:"selectedEvent"`
}

// Calendar action types.
const (
	TypeSetViewMode         = "SET_VIEW_MODE"
	TypeSetCurrentDate      = "SET_CURRENT_DATE"
	TypeSetSearchTerm       = "SET_SEARCH_TERM"
	TypeSetCreateDialogOpen = "SET_CREATE_DIALOG_OPEN"
	TypeSetFileUploader     = "SET_FILE_UPLOADER"
	TypeSetInviteDialogOpen = "SET_INVITE_DIALOG_OPEN"
	TypeSetIsAddingEvent    = "SET_IS_ADDING_EVENT"
	TypeSetIsInviting       = "SET_IS_INVITING"
	TypeSetEvents           = "SET_EVENTS"
	TypeSetSelectedEvent    = "SET_SELECTED_EVENT"
	TypeAddEvent            = "ADD_EVENT"
	TypeUpdateEvent         = "UPDATE_EVENT"
	TypeDeleteEvent         = "DELETE_EVENT"
)

type calendar struct{}

func (calendar) Slice() Slice { return SliceCalendar }

func (calendar) calendarAction() {}

// SetViewMode changes the calendar layout.
type SetViewMode struct {
	calendar
	Mode ViewMode
}

func (SetViewMode) Type() string { return TypeSetViewMode }

func (a SetViewMode) payload() any { return a.Mode }

// SetCurrentDate moves the calendar to a date.
type SetCurrentDate struct {
	calendar
	Date time.Time
}

func (SetCurrentDate) Type() string { return TypeSetCurrentDate }

func (a SetCurrentDate) payload() any { return a.Date }

// SetCalendarSearchTerm filters events by text.
type SetCalendarSearchTerm struct {
	calendar
	Term string
}

func (SetCalendarSearchTerm) Type() string { return TypeSetSearchTerm }

func (a SetCalendarSearchTerm) payload() any { return a.Term }

// SetCreateDialogOpen toggles the create-event dialog.
type SetCreateDialogOpen struct {
	calendar
	Open bool
}

func (SetCreateDialogOpen) Type() string { return TypeSetCreateDialogOpen }

func (a SetCreateDialogOpen) payload() any { return a.Open }

// SetFileUploader toggles the attachment uploader.
type SetFileUploader struct {
	calendar
	Show bool
}

func (SetFileUploader) Type() string { return TypeSetFileUploader }

func (a SetFileUploader) payload() any { return a.Show }

// SetInviteDialogOpen toggles the invite dialog.
type SetInviteDialogOpen struct {
	calendar
	Open bool
}

func (SetInviteDialogOpen) Type() string { return TypeSetInviteDialogOpen }

func (a SetInviteDialogOpen) payload() any { return a.Open }

// SetIsAddingEvent marks an add in progress.
type SetIsAddingEvent struct {
	calendar
	Adding bool
}

func (SetIsAddingEvent) Type() string { return TypeSetIsAddingEvent }

func (a SetIsAddingEvent) payload() any { return a.Adding }

// SetIsInviting marks an invite in progress.
type SetIsInviting struct {
	calendar
	Inviting bool
}

func (SetIsInviting) Type() string { return TypeSetIsInviting }

func (a SetIsInviting) payload() any { return a.Inviting }

// SetEvents replaces the whole event list.
type SetEvents struct {
	calendar
	Events []Event
}

func (SetEvents) Type() string { return TypeSetEvents }

func (a SetEvents) payload() any { return a.Events }

// SetSelectedEvent selects an event, or clears the selection when nil.
type SetSelectedEvent struct {
	calendar
	Event *Event
}

func (SetSelectedEvent) Type() string { return TypeSetSelectedEvent }

func (a SetSelectedEvent) payload() any { return a.Event }

// AddEvent appends an event.
type AddEvent struct {
	calendar
	Event Event
}

func (AddEvent) Type() string { return TypeAddEvent }

func (a AddEvent) payload() any { return a.Event }

// UpdateEvent replaces the event with the same ID.
type UpdateEvent struct {
	calendar
	Event Event
}

func (UpdateEvent) Type() string { return TypeUpdateEvent }

func (a UpdateEvent) payload() any { return a.Event }

// DeleteEvent removes the event with the given ID.
type DeleteEvent struct {
	calendar
	ID string
}

func (DeleteEvent) Type() string { return TypeDeleteEvent }

func (a DeleteEvent) payload() any { return a.ID }

// ReduceCalendar applies a calendar action. Unknown actions return s itself.
func ReduceCalendar(s *CalendarState, a CalendarAction) *CalendarState {
	switch a := a.(type) {
	case SetViewMode:
		next := *s
		next.ViewMode = a.Mode
		return &next
	case SetCurrentDate:
		next := *s
		next.CurrentDate = a.Date
		return &next
	case SetCalendarSearchTerm:
		next := *s
		next.SearchTerm = a.Term
		return &next
	case SetCreateDialogOpen:
		next := *s
		next.CreateDialogOpen = a.Open
		return &next
	case SetFileUploader:
		next := *s
		next.ShowFileUploader = a.Show
		return &next
	case SetInviteDialogOpen:
		next := *s
		next.InviteDialogOpen = a.Open
		return &next
	case SetIsAddingEvent:
		next := *s
		next.IsAddingEvent = a.Adding
		return &next
	case SetIsInviting:
		next := *s
		next.IsInviting = a.Inviting
		return &next
	case SetEvents:
		next := *s
		next.Events = slices.Clone(a.Events)
		if next.Events == nil {
			next.Events = []Event{}
		}
		return &next
	case SetSelectedEvent:
		next := *s
		if a.Event == nil {
			next.SelectedEvent = nil
		} else {
			ev := *a.Event
			next.SelectedEvent = &ev
		}
		return &next
	case AddEvent:
		next := *s
		events := make([]Event, 0, len(s.Events)+1)
		events = append(events, s.Events...)
		next.Events = append(events, a.Event)
		return &next
	case UpdateEvent:
		next := *s
		next.Events = make([]Event, len(s.Events))
		for i, ev := range s.Events {
			if ev.ID == a.Event.ID {
				ev = a.Event
			}
			next.Events[i] = ev
		}
		return &next
	case DeleteEvent:
		next := *s
		next.Events = make([]Event, 0, len(s.Events))
		for _, ev := range s.Events {
			if ev.ID != a.ID {
				next.Events = append(next.Events, ev)
			}
		}
		return &next
	default:
		return s
	}
}
