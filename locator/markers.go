// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package locator

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"net/url"
	"slices"
	"sync"

	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/utils/htmlutils"
	"github.com/jcodagnone/pharmalocator/utils/textutils"
)

var popupTemplate = template.Must(template.New("popup").Parse(`<div class="pharmacy-popup">
<img src="{{.LogoURL}}" alt="" width="48" height="48">
<h3>{{.Name}}</h3>
<div class="rating" title="{{printf "%.1f" .Rating}}">{{.Stars}}</div>
{{with .Description}}<p class="description">{{.}}</p>{{end}}
<p class="address">{{.Address}}</p>
<p class="hours">{{.Hours}}</p>
<p class="distance">{{.Distance}}</p>
<div class="actions">
{{- if .Phone}}<a href="{{.Phone}}">Call</a>{{end -}}
<a href="{{.Directions}}" target="_blank" rel="noopener">Directions</a>
</div>
</div>`))

type popupData struct {
	Name        string
	LogoURL     string
	Rating      float64
	Stars       string
	Description string
	Address     string
	Hours       string
	Distance    string
	Phone       template.URL
	Directions  string
}

// DirectionsURL returns the link to driving directions to a pharmacy.
func DirectionsURL(p *pharmacy.RankedPharmacy) string {
	q := url.Values{
		"api":         []string{"1"},
		"destination": []string{fmt.Sprintf("%f,%f", p.Location.Lat, p.Location.Lng)},
	}

	return "https://www.google.com/maps/dir/?" + q.Encode()
}

// Popup renders the popup bound to the marker of a pharmacy.
func Popup(p *pharmacy.RankedPharmacy) template.HTML {
	data := popupData{
		Name:        p.Name,
		LogoURL:     p.LogoURL,
		Rating:      p.Rating,
		Stars:       textutils.Stars(p.Rating),
		Description: htmlutils.PlainText(p.Description),
		Address:     p.Address,
		Hours:       p.Hours,
		Distance:    textutils.FormatDistance(p.DistanceKm),
		Directions:  DirectionsURL(p),
	}

	if p.Phone != "" && p.Phone != pharmacy.DefaultPhone {
		data.Phone = template.URL("tel:" + url.PathEscape(p.Phone))
	}

	var buf bytes.Buffer
	if err := popupTemplate.Execute(&buf, data); err != nil {
		log.Printf("Error rendering popup for %s: %v", p.StoreID, err)

		return template.HTML(template.HTMLEscapeString(p.Name))
	}

	return template.HTML(buf.String())
}

// MarkerSynchronizer owns a Map and the markers it shows, keyed by store id.
type MarkerSynchronizer struct {
	m         Map
	selection *SelectionController
	markers   map[pharmacy.ID]Marker
	closeOnce sync.Once
	closed    bool
}

// NewMarkerSynchronizer takes ownership of m. Marker clicks select through
// selection, and selection changes update the highlight.
func NewMarkerSynchronizer(m Map, selection *SelectionController) *MarkerSynchronizer {
	s := &MarkerSynchronizer{
		m:         m,
		selection: selection,
		markers:   make(map[pharmacy.ID]Marker),
	}

	if selection != nil {
		selection.OnChange(s.Highlight)
	}

	return s
}

// Sync rebuilds the markers: every tracked marker is removed, one marker is
// created per pharmacy with usable coordinates, and the selection is
// highlighted.
func (s *MarkerSynchronizer) Sync(ranked []pharmacy.RankedPharmacy, selection SelectionState) {
	if s.closed {
		return
	}

	for id, marker := range s.markers {
		s.m.RemoveMarker(marker)
		delete(s.markers, id)
	}

	for i := range ranked {
		p := &ranked[i]
		if !p.Location.Valid() {
			continue
		}

		if _, dup := s.markers[p.StoreID]; dup {
			continue
		}

		s.markers[p.StoreID] = s.m.AddMarker(MarkerOptions{
			StoreID:  p.StoreID,
			Position: p.Location,
			Title:    p.Name,
			Popup:    Popup(p),
			OnClick:  s.click,
		})
	}

	s.Highlight(selection)
}

// Highlight highlights the marker of the selected pharmacy only.
func (s *MarkerSynchronizer) Highlight(selection SelectionState) {
	if s.closed {
		return
	}

	for id, marker := range s.markers {
		marker.SetHighlighted(selection.Is(id))
	}
}

func (s *MarkerSynchronizer) click(id pharmacy.ID) {
	s.Click(id)
}

// Click handles a click on the marker of a pharmacy: the pharmacy is
// selected and its popup opened. It reports false when there is no such
// marker.
func (s *MarkerSynchronizer) Click(id pharmacy.ID) bool {
	marker, ok := s.markers[id]
	if s.closed || !ok || s.selection == nil {
		return false
	}

	if !s.selection.Select(id) {
		return false
	}

	marker.OpenPopup()

	return true
}

// Markers returns the store ids that currently have a marker, sorted.
func (s *MarkerSynchronizer) Markers() []pharmacy.ID {
	ids := make([]pharmacy.ID, 0, len(s.markers))
	for id := range s.markers {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids
}

// Close removes the map. Later calls, and every other method afterwards,
// do nothing.
func (s *MarkerSynchronizer) Close() {
	s.closeOnce.Do(func() {
		s.closed = true
		s.markers = map[pharmacy.ID]Marker{}
		s.m.Remove()
	})
}
