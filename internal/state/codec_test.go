package state

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/quantumlife/hearth/internal/core"
)

func TestDecodeAction(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Action
	}{
		{"theme", `{"type":"APP","action":{"type":"SET_THEME","payload":"dark"}}`, SetTheme{Theme: ThemeDark}},
		{"clear error", `{"type":"APP","action":{"type":"SET_ERROR","payload":null}}`, ClearError()},
		{"set error", `{"type":"APP","action":{"type":"SET_ERROR","payload":"bad"}}`, ErrorMessage("bad")},
		{"calendar search", `{"type":"CALENDAR","action":{"type":"SET_SEARCH_TERM","payload":"gym"}}`, SetCalendarSearchTerm{Term: "gym"}},
		{"shopping search", `{"type":"SHOPPING","action":{"type":"SET_SEARCH_TERM","payload":"gym"}}`, SetShoppingSearchTerm{Term: "gym"}},
		{"add event", `{"type":"CALENDAR","action":{"type":"ADD_EVENT","payload":{"id":"e1","title":"Dentist"}}}`, AddEvent{Event: Event{ID: "e1", Title: "Dentist"}}},
		{"delete event", `{"type":"CALENDAR","action":{"type":"DELETE_EVENT","payload":"e1"}}`, DeleteEvent{ID: "e1"}},
		{"deselect", `{"type":"CALENDAR","action":{"type":"SET_SELECTED_EVENT","payload":null}}`, SetSelectedEvent{}},
		{"sort", `{"type":"SHOPPING","action":{"type":"SET_SORT_OPTION","payload":"priceAsc"}}`, SetSortOption{Option: SortPriceAsc}},
		{"clear items", `{"type":"SHOPPING","action":{"type":"CLEAR_SELECTED_ITEMS"}}`, ClearSelectedItems{}},
		{"unknown inner", `{"type":"APP","action":{"type":"LOGIN","payload":{"user":"x"}}}`, Unknown{SliceName: SliceApp, TypeName: "LOGIN"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAction([]byte(tt.in))
			if err != nil {
				t.Fatalf("DecodeAction() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreUnexported(SetTheme{}, SetError{},
				SetCalendarSearchTerm{}, SetShoppingSearchTerm{}, AddEvent{}, DeleteEvent{},
				SetSelectedEvent{}, SetSortOption{}, ClearSelectedItems{})); diff != "" {
				t.Errorf("DecodeAction() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeAction_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		sentinel error
	}{
		{"not json", `{`, core.ErrInvalidPayload},
		{"unknown slice", `{"type":"RECIPES","action":{"type":"SET_FAVORITE"}}`, core.ErrUnknownSlice},
		{"missing inner type", `{"type":"APP","action":{}}`, core.ErrMissingRequired},
		{"bad theme", `{"type":"APP","action":{"type":"SET_THEME","payload":"sepia"}}`, core.ErrInvalidTheme},
		{"theme wrong type", `{"type":"APP","action":{"type":"SET_THEME","payload":3}}`, core.ErrInvalidPayload},
		{"missing bool", `{"type":"APP","action":{"type":"SET_LOADING"}}`, core.ErrInvalidPayload},
		{"bad view", `{"type":"CALENDAR","action":{"type":"SET_VIEW_MODE","payload":"year"}}`, core.ErrInvalidView},
		{"event without id", `{"type":"CALENDAR","action":{"type":"ADD_EVENT","payload":{"title":"x"}}}`, core.ErrMissingRequired},
		{"empty delete id", `{"type":"CALENDAR","action":{"type":"DELETE_EVENT","payload":""}}`, core.ErrMissingRequired},
		{"bad filter", `{"type":"SHOPPING","action":{"type":"SET_FILTER_MODE","payload":"daily"}}`, core.ErrInvalidFilter},
		{"bad sort", `{"type":"SHOPPING","action":{"type":"SET_SORT_OPTION","payload":"random"}}`, core.ErrInvalidSort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAction([]byte(tt.in))
			if err == nil {
				t.Fatal("DecodeAction() should fail")
			}
			if !errors.Is(err, tt.sentinel) {
				t.Errorf("DecodeAction() error = %v, want %v", err, tt.sentinel)
			}
			if got := core.TypeOf(err); got != core.ErrorValidation {
				t.Errorf("TypeOf() = %v, want %v", got, core.ErrorValidation)
			}
		})
	}
}

func TestEncodeAction(t *testing.T) {
	tests := []struct {
		action Action
		want   string
	}{
		{SetTheme{Theme: ThemeLight}, `{"type":"APP","action":{"type":"SET_THEME","payload":"light"}}`},
		{ClearError(), `{"type":"APP","action":{"type":"SET_ERROR","payload":null}}`},
		{ClearSelectedItems{}, `{"type":"SHOPPING","action":{"type":"CLEAR_SELECTED_ITEMS"}}`},
		{DeleteEvent{ID: "e1"}, `{"type":"CALENDAR","action":{"type":"DELETE_EVENT","payload":"e1"}}`},
	}
	for _, tt := range tests {
		got, err := EncodeAction(tt.action)
		if err != nil {
			t.Errorf("EncodeAction(%s) error = %v", Key(tt.action), err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("EncodeAction(%s) = %s, want %s", Key(tt.action), got, tt.want)
		}
	}

	if _, err := EncodeAction(nil); err == nil {
		t.Error("EncodeAction(nil) should fail")
	}
}

func TestEncodeDecode_Event(t *testing.T) {
	ev := Event{ID: "e1", Title: "Trip", Start: testNow, End: testNow.Add(time.Hour), Attendees: []string{"sam"}}
	data, err := EncodeAction(UpdateEvent{Event: ev})
	if err != nil {
		t.Fatalf("EncodeAction() error = %v", err)
	}
	got, err := DecodeAction(data)
	if err != nil {
		t.Fatalf("DecodeAction() error = %v", err)
	}
	upd, ok := got.(UpdateEvent)
	if !ok {
		t.Fatalf("DecodeAction() = %T, want UpdateEvent", got)
	}
	if diff := cmp.Diff(ev, upd.Event); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}
