package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quantumlife/hearth/internal/core"
)

// Envelope is the wire form of an action:
//
//	{"type":"APP","action":{"type":"SET_THEME","payload":"dark"}}
type Envelope struct {
	Type   string     `json:"type"`
	Action WireAction `json:"action"`
}

// WireAction is the inner, slice-specific part of an Envelope.
type WireAction struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type decodeFunc func(payload json.RawMessage) (Action, error)

var decoders = map[Slice]map[string]decodeFunc{
	SliceApp: {
		TypeSetTheme: func(p json.RawMessage) (Action, error) {
			theme, err := decodeEnum(p, ParseTheme)
			return SetTheme{Theme: theme}, err
		},
		TypeSetMobile: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetMobile{IsMobile: v}, err
		},
		TypeSetDebugMode: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetDebugMode{Enabled: v}, err
		},
		TypeSetLoading: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetLoading{IsLoading: v}, err
		},
		TypeSetError: func(p json.RawMessage) (Action, error) {
			if isNull(p) {
				return ClearError(), nil
			}
			v, err := decodeValue[string](p)
			return ErrorMessage(v), err
		},
	},
	SliceCalendar: {
		TypeSetViewMode: func(p json.RawMessage) (Action, error) {
			mode, err := decodeEnum(p, ParseViewMode)
			return SetViewMode{Mode: mode}, err
		},
		TypeSetCurrentDate: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[time.Time](p)
			return SetCurrentDate{Date: v}, err
		},
		TypeSetSearchTerm: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[string](p)
			return SetCalendarSearchTerm{Term: v}, err
		},
		TypeSetCreateDialogOpen: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetCreateDialogOpen{Open: v}, err
		},
		TypeSetFileUploader: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetFileUploader{Show: v}, err
		},
		TypeSetInviteDialogOpen: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetInviteDialogOpen{Open: v}, err
		},
		TypeSetIsAddingEvent: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetIsAddingEvent{Adding: v}, err
		},
		TypeSetIsInviting: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetIsInviting{Inviting: v}, err
		},
		TypeSetEvents: func(p json.RawMessage) (Action, error) {
			events, err := decodeValue[[]Event](p)
			if err != nil {
				return nil, err
			}
			for _, ev := range events {
				if err := ev.Validate(); err != nil {
					return nil, err
				}
			}
			return SetEvents{Events: events}, nil
		},
		TypeSetSelectedEvent: func(p json.RawMessage) (Action, error) {
			if isNull(p) {
				return SetSelectedEvent{}, nil
			}
			ev, err := decodeEvent(p)
			if err != nil {
				return nil, err
			}
			return SetSelectedEvent{Event: &ev}, nil
		},
		TypeAddEvent: func(p json.RawMessage) (Action, error) {
			ev, err := decodeEvent(p)
			return AddEvent{Event: ev}, err
		},
		TypeUpdateEvent: func(p json.RawMessage) (Action, error) {
			ev, err := decodeEvent(p)
			return UpdateEvent{Event: ev}, err
		},
		TypeDeleteEvent: func(p json.RawMessage) (Action, error) {
			id, err := decodeID(p)
			return DeleteEvent{ID: id}, err
		},
	},
	SliceShopping: {
		TypeSetSearchTerm: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[string](p)
			return SetShoppingSearchTerm{Term: v}, err
		},
		TypeSetFilterMode: func(p json.RawMessage) (Action, error) {
			mode, err := decodeEnum(p, ParseFilterMode)
			return SetFilterMode{Mode: mode}, err
		},
		TypeSetSortOption: func(p json.RawMessage) (Action, error) {
			opt, err := decodeEnum(p, ParseSortOption)
			return SetSortOption{Option: opt}, err
		},
		TypeSetSelectedItems: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[[]string](p)
			return SetSelectedItems{IDs: v}, err
		},
		TypeAddSelectedItem: func(p json.RawMessage) (Action, error) {
			id, err := decodeID(p)
			return AddSelectedItem{ID: id}, err
		},
		TypeRemoveSelectedItem: func(p json.RawMessage) (Action, error) {
			id, err := decodeID(p)
			return RemoveSelectedItem{ID: id}, err
		},
		TypeClearSelectedItems: func(json.RawMessage) (Action, error) {
			return ClearSelectedItems{}, nil
		},
		TypeSetShoppingLoading: func(p json.RawMessage) (Action, error) {
			v, err := decodeValue[bool](p)
			return SetShoppingLoading{IsLoading: v}, err
		},
	},
}

// DecodeAction parses an action envelope.
//
// Payloads are validated here, so a decoded action is always well formed.
// An unrecognized inner type yields Unknown, which reducers ignore; an
// unrecognized slice is an error. All errors are validation AppErrors.
func DecodeAction(data []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.WrapError(fmt.Errorf("%w: %v", core.ErrInvalidPayload, err),
			core.ErrorValidation, "malformed action envelope")
	}
	return env.Decode()
}

// Decode converts the envelope into a typed action.
func (e Envelope) Decode() (Action, error) {
	slice, err := ParseSlice(e.Type)
	if err != nil {
		return nil, core.WrapError(err, core.ErrorValidation, "unknown action slice")
	}
	if e.Action.Type == "" {
		return nil, core.WrapError(fmt.Errorf("%w: action type", core.ErrMissingRequired),
			core.ErrorValidation, "missing action type")
	}

	decode, ok := decoders[slice][e.Action.Type]
	if !ok {
		return Unknown{SliceName: slice, TypeName: e.Action.Type}, nil
	}
	a, err := decode(e.Action.Payload)
	if err != nil {
		appErr := core.WrapError(err, core.ErrorValidation,
			fmt.Sprintf("invalid payload for %s_%s", slice, e.Action.Type))
		appErr.Context = map[string]any{"slice": string(slice), "type": e.Action.Type}
		return nil, appErr
	}
	return a, nil
}

// EncodeAction renders an action as an envelope.
func EncodeAction(a Action) ([]byte, error) {
	env, err := ToEnvelope(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// ToEnvelope converts a typed action to its wire form.
func ToEnvelope(a Action) (Envelope, error) {
	if a == nil {
		return Envelope{}, fmt.Errorf("%w: nil action", core.ErrInvalidInput)
	}
	env := Envelope{
		Type:   string(a.Slice()),
		Action: WireAction{Type: a.Type()},
	}
	if p := a.payload(); p != nil {
		raw, err := json.Marshal(p)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode %s payload: %w", Key(a), err)
		}
		env.Action.Payload = raw
	}
	return env, nil
}

func isNull(p json.RawMessage) bool {
	p = bytes.TrimSpace(p)
	return len(p) == 0 || bytes.Equal(p, []byte("null"))
}

func decodeValue[T any](p json.RawMessage) (T, error) {
	var v T
	if isNull(p) {
		return v, fmt.Errorf("%w: missing payload", core.ErrInvalidPayload)
	}
	if err := json.Unmarshal(p, &v); err != nil {
		return v, fmt.Errorf("%w: %v", core.ErrInvalidPayload, err)
	}
	return v, nil
}

func decodeEnum[T ~string](p json.RawMessage, parse func(string) (T, error)) (T, error) {
	s, err := decodeValue[string](p)
	if err != nil {
		return "", err
	}
	return parse(s)
}

func decodeID(p json.RawMessage) (string, error) {
	id, err := decodeValue[string](p)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("%w: id", core.ErrMissingRequired)
	}
	return id, nil
}

func decodeEvent(p json.RawMessage) (Event, error) {
	ev, err := decodeValue[Event](p)
	if err != nil {
		return Event{}, err
	}
	if err := ev.Validate(); err != nil {
		return Event{}, err
	}
	return ev, nil
}
