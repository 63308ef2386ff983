// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"github.com/jcodagnone/pharmalocator/pharmacy"
)

// SelectionState holds the selected pharmacy, if any.
type SelectionState struct {
	SelectedStoreID *pharmacy.ID `json:"selected_store_id"`
}

// Is reports whether id is the selected pharmacy.
func (s SelectionState) Is(id pharmacy.ID) bool {
	return s.SelectedStoreID != nil && *s.SelectedStoreID == id
}

// SelectionController tracks the selected pharmacy of the current ranked
// list and recenters the camera on it.
//
// It is not safe for concurrent use; Session serializes access.
type SelectionController struct {
	m         Map
	ranked    []pharmacy.RankedPharmacy
	selected  *pharmacy.ID
	listeners []func(SelectionState)
}

// NewSelectionController creates a controller that moves the camera of m.
func NewSelectionController(m Map) *SelectionController {
	return &SelectionController{m: m}
}

// OnChange registers fn to be called after every selection change.
func (c *SelectionController) OnChange(fn func(SelectionState)) {
	c.listeners = append(c.listeners, fn)
}

// SetRanked replaces the list selections are looked up in. A selection
// missing from the new list is left for the caller to clear.
func (c *SelectionController) SetRanked(ranked []pharmacy.RankedPharmacy) {
	c.ranked = ranked
}

// Select selects the pharmacy with the given id and flies to it. An id that
// is not part of the current list is ignored and Select returns false.
func (c *SelectionController) Select(id pharmacy.ID) bool {
	p, ok := pharmacy.Find(c.ranked, id)
	if !ok {
		return false
	}

	c.selected = &id

	if c.m != nil && p.Location.Valid() {
		c.m.FlyTo(p.Location, SelectedZoom)
	}

	c.notify()

	return true
}

// Clear drops the selection. The camera stays where it is.
func (c *SelectionController) Clear() {
	if c.selected == nil {
		return
	}

	c.selected = nil
	c.notify()
}

// ClearStale drops the selection when it is not part of the current list.
func (c *SelectionController) ClearStale() bool {
	if c.selected == nil {
		return false
	}

	if _, ok := pharmacy.Find(c.ranked, *c.selected); ok {
		return false
	}

	c.Clear()

	return true
}

// Selected returns the selected store id.
func (c *SelectionController) Selected() (pharmacy.ID, bool) {
	if c.selected == nil {
		return 0, false
	}

	return *c.selected, true
}

// State returns a copy of the selection state.
func (c *SelectionController) State() SelectionState {
	if c.selected == nil {
		return SelectionState{}
	}

	id := *c.selected

	return SelectionState{SelectedStoreID: &id}
}

func (c *SelectionController) notify() {
	state := c.State()
	for _, fn := range c.listeners {
		fn(state)
	}
}
