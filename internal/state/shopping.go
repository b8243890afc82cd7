package state

import (
	"fmt"
	"slices"

	"github.com/quantumlife/hearth/internal/core"
)

// FilterMode selects which shopping lists are shown.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterOneOff  FilterMode = "one-off"
	FilterWeekly  FilterMode = "weekly"
	FilterMonthly FilterMode = "monthly"
)

// ParseFilterMode validates a filter mode name.
func ParseFilterMode(s string) (FilterMode, error) {
	switch FilterMode(s) {
	case FilterAll, FilterOneOff, FilterWeekly, FilterMonthly:
		return FilterMode(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidFilter, s)
}

// SortOption orders shopping items.
type SortOption string

const (
	SortNameAsc   SortOption = "nameAsc"
	SortNameDesc  SortOption = "nameDesc"
	SortDateAsc   SortOption = "dateAsc"
	SortDateDesc  SortOption = "dateDesc"
	SortPriceAsc  SortOption = "priceAsc"
	SortPriceDesc SortOption = "priceDesc"
	SortNewest    SortOption = "newest"
	SortOldest    SortOption = "oldest"
)

// ParseSortOption validates a sort option name.
func ParseSortOption(s string) (SortOption, error) {
	switch SortOption(s) {
	case SortNameAsc, SortNameDesc, SortDateAsc, SortDateDesc,
		SortPriceAsc, SortPriceDesc, SortNewest, SortOldest:
		return SortOption(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrInvalidSort, s)
}

// ShoppingState holds shopping list view state.
type ShoppingState struct {
	SearchTerm    string     `json:"searchTerm"`
	FilterMode    FilterMode `json:"filterMode"`
	SortOption    SortOption `json:"sortOption"`
	SelectedItems []string   `json:"selectedItems"`
	IsLoading     bool       `json:"isLoading"`
}

// Shopping action types. SET_SEARCH_TERM is shared with the calendar slice;
// the outer slice disambiguates.
const (
	TypeSetFilterMode      = "SET_FILTER_MODE"
	TypeSetSortOption      = "SET_SORT_OPTION"
	TypeSetSelectedItems   = "SET_SELECTED_ITEMS"
	TypeAddSelectedItem    = "ADD_SELECTED_ITEM"
	TypeRemoveSelectedItem = "REMOVE_SELECTED_ITEM"
	TypeClearSelectedItems = "CLEAR_SELECTED_ITEMS"
	TypeSetShoppingLoading = "SET_SHOPPING_LOADING"
)

type shopping struct{}

func (shopping) Slice() Slice { return SliceShopping }

func (shopping) shoppingAction() {}

// SetShoppingSearchTerm filters items by text.
type SetShoppingSearchTerm struct {
	shopping
	Term string
}

func (SetShoppingSearchTerm) Type() string { return TypeSetSearchTerm }

func (a SetShoppingSearchTerm) payload() any { return a.Term }

// SetFilterMode changes the list filter.
type SetFilterMode struct {
	shopping
	Mode FilterMode
}

func (SetFilterMode) Type() string { return TypeSetFilterMode }

func (a SetFilterMode) payload() any { return a.Mode }

// SetSortOption changes the item order.
type SetSortOption struct {
	shopping
	Option SortOption
}

func (SetSortOption) Type() string { return TypeSetSortOption }

func (a SetSortOption) payload() any { return a.Option }

// SetSelectedItems replaces the selection.
type SetSelectedItems struct {
	shopping
	IDs []string
}

func (SetSelectedItems) Type() string { return TypeSetSelectedItems }

func (a SetSelectedItems) payload() any { return a.IDs }

// AddSelectedItem adds one item to the selection.
type AddSelectedItem struct {
	shopping
	ID string
}

func (AddSelectedItem) Type() string { return TypeAddSelectedItem }

func (a AddSelectedItem) payload() any { return a.ID }

// RemoveSelectedItem removes one item from the selection.
type RemoveSelectedItem struct {
	shopping
	ID string
}

func (RemoveSelectedItem) Type() string { return TypeRemoveSelectedItem }

func (a RemoveSelectedItem) payload() any { return a.ID }

// ClearSelectedItems empties the selection.
type ClearSelectedItems struct {
	shopping
}

func (ClearSelectedItems) Type() string { return TypeClearSelectedItems }

func (ClearSelectedItems) payload() any { return nil }

// SetShoppingLoading toggles the shopping loading indicator.
type SetShoppingLoading struct {
	shopping
	IsLoading bool
}

func (SetShoppingLoading) Type() string { return TypeSetShoppingLoading }

func (a SetShoppingLoading) payload() any { return a.IsLoading }

// ReduceShopping applies a shopping action. Unknown actions return s itself.
func ReduceShopping(s *ShoppingState, a ShoppingAction) *ShoppingState {
	switch a := a.(type) {
	case SetShoppingSearchTerm:
		next := *s
		next.SearchTerm = a.Term
		return &next
	case SetFilterMode:
		next := *s
		next.FilterMode = a.Mode
		return &next
	case SetSortOption:
		next := *s
		next.SortOption = a.Option
		return &next
	case SetSelectedItems:
		next := *s
		next.SelectedItems = slices.Clone(a.IDs)
		if next.SelectedItems == nil {
			next.SelectedItems = []string{}
		}
		return &next
	case AddSelectedItem:
		next := *s
		items := make([]string, 0, len(s.SelectedItems)+1)
		items = append(items, s.SelectedItems...)
		next.SelectedItems = append(items, a.ID)
		return &next
	case RemoveSelectedItem:
		next := *s
		next.SelectedItems = make([]string, 0, len(s.SelectedItems))
		for _, id := range s.SelectedItems {
			if id != a.ID {
				next.SelectedItems = append(next.SelectedItems, id)
			}
		}
		return &next
	case ClearSelectedItems:
		next := *s
		next.SelectedItems = []string{}
		return &next
	case SetShoppingLoading:
		next := *s
		next.IsLoading = a.IsLoading
		return &next
	default:
		return s
	}
}
