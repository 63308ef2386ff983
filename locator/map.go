// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"errors"
	"html/template"
	"sync"

	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/spatial"
)

// Zoom levels.
const (
	InitialZoom  = 13
	SelectedZoom = 16
)

// Map is the boundary with a map SDK.
type Map interface {
	AddMarker(opts MarkerOptions) Marker
	RemoveMarker(m Marker)
	FlyTo(center spatial.Point, zoom int)
	// Remove destroys the map. No other method may be called afterwards.
	Remove()
}

// Marker is a handle to a pin on a Map.
type Marker interface {
	SetHighlighted(on bool)
	OpenPopup()
}

// MarkerOptions describe a new marker.
type MarkerOptions struct {
	StoreID  pharmacy.ID
	Position spatial.Point
	Title    string
	Popup    template.HTML
	OnClick  func(id pharmacy.ID)
}

// Canvas errors.
var (
	ErrMapRemoved     = errors.New("map has been removed")
	ErrMarkerNotFound = errors.New("marker not found")
)

// View is a snapshot of a Canvas, as rendered by a front-end.
type View struct {
	Center    spatial.Point `json:"center"`
	Zoom      int           `json:"zoom"`
	Markers   []MarkerView  `json:"markers"`
	OpenPopup *pharmacy.ID  `json:"open_popup,omitempty"`
	Removed   bool          `json:"removed,omitempty"`
}

// MarkerView is a marker of a View.
type MarkerView struct {
	StoreID     pharmacy.ID   `json:"store_id"`
	Position    spatial.Point `json:"position"`
	Title       string        `json:"title"`
	Popup       template.HTML `json:"popup_html"`
	Highlighted bool          `json:"highlighted"`
}

// Canvas is an in-memory Map. It is safe for concurrent use.
type Canvas struct {
	mu      sync.Mutex
	center  spatial.Point
	zoom    int
	markers []*canvasMarker
	popup   *canvasMarker
	removed bool
}

// NewCanvas creates a map centered on center.
func NewCanvas(center spatial.Point, zoom int) *Canvas {
	return &Canvas{center: center, zoom: zoom}
}

type canvasMarker struct {
	canvas      *Canvas
	opts        MarkerOptions
	highlighted bool
	removed     bool
}

func (m *canvasMarker) SetHighlighted(on bool) {
	m.canvas.mu.Lock()
	defer m.canvas.mu.Unlock()

	if !m.removed {
		m.highlighted = on
	}
}

func (m *canvasMarker) OpenPopup() {
	m.canvas.mu.Lock()
	defer m.canvas.mu.Unlock()

	if !m.removed {
		m.canvas.popup = m
	}
}

// AddMarker implements Map.
func (c *Canvas) AddMarker(opts MarkerOptions) Marker {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := &canvasMarker{canvas: c, opts: opts}
	if c.removed {
		m.removed = true

		return m
	}

	c.markers = append(c.markers, m)

	return m
}

// RemoveMarker implements Map.
func (c *Canvas) RemoveMarker(marker Marker) {
	m, ok := marker.(*canvasMarker)
	if !ok || m.canvas != c {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, other := range c.markers {
		if other == m {
			c.markers = append(c.markers[:i], c.markers[i+1:]...)

			break
		}
	}

	if c.popup == m {
		c.popup = nil
	}

	m.removed = true
}

// FlyTo implements Map.
func (c *Canvas) FlyTo(center spatial.Point, zoom int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.removed {
		return
	}

	c.center = center
	c.zoom = zoom
}

// Remove implements Map.
func (c *Canvas) Remove() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.markers {
		m.removed = true
	}

	c.markers = nil
	c.popup = nil
	c.removed = true
}

// Click simulates a click on the marker of a pharmacy.
func (c *Canvas) Click(id pharmacy.ID) error {
	c.mu.Lock()

	if c.removed {
		c.mu.Unlock()

		return ErrMapRemoved
	}

	var target *canvasMarker

	for _, m := range c.markers {
		if m.opts.StoreID == id {
			target = m

			break
		}
	}
	c.mu.Unlock()

	if target == nil {
		return ErrMarkerNotFound
	}

	// The handler calls back into the canvas.
	if target.opts.OnClick != nil {
		target.opts.OnClick(id)
	}

	return nil
}

// View returns a snapshot of the canvas.
func (c *Canvas) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		Center:  c.center,
		Zoom:    c.zoom,
		Markers: make([]MarkerView, 0, len(c.markers)),
		Removed: c.removed,
	}

	for _, m := range c.markers {
		v.Markers = append(v.Markers, MarkerView{
			StoreID:     m.opts.StoreID,
			Position:    m.opts.Position,
			Title:       m.opts.Title,
			Popup:       m.opts.Popup,
			Highlighted: m.highlighted,
		})
	}

	if c.popup != nil {
		id := c.popup.opts.StoreID
		v.OpenPopup = &id
	}

	return v
}
