// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package locator wires location, pharmacy fetching, ranking, markers and
// selection into one pharmacy-locator session.
package locator

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jcodagnone/pharmalocator/geoloc"
	"github.com/jcodagnone/pharmalocator/history"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/spatial"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by a session after Close.
var ErrClosed = errors.New("session closed")

// LocationResolver produces the origin of searches.
type LocationResolver interface {
	Resolve(ctx context.Context) geoloc.ResolvedLocation
}

// SearchLog receives every applied search.
type SearchLog interface {
	Record(ctx context.Context, entry *history.Entry) error
}

// Options configure a Session.
type Options struct {
	Resolver LocationResolver
	Fetcher  pharmacy.Fetcher
	// NewMap creates the map the first time a center is known. Defaults to
	// a Canvas.
	NewMap func(center spatial.Point, zoom int) Map
	// Log is optional.
	Log SearchLog
}

// Snapshot is the state of a session as shown to the user.
type Snapshot struct {
	Location       geoloc.ResolvedLocation   `json:"location"`
	Banner         string                    `json:"banner,omitempty"`
	Term           string                    `json:"term"`
	Loading        bool                      `json:"loading"`
	Pharmacies     []pharmacy.RankedPharmacy `json:"pharmacies"`
	MedicineOffers []pharmacy.MedicineOffer  `json:"medicine_offers"`
	Selection      SelectionState            `json:"selection"`
	Error          string                    `json:"error,omitempty"`
	Retry          bool                      `json:"retry,omitempty"`
	Seq            uint64                    `json:"seq"`
}

// Session is the state of one locator page: the origin, the current list,
// the selection and the map. It is safe for concurrent use; every state
// change is applied under one lock, in order.
type Session struct {
	resolver LocationResolver
	fetcher  pharmacy.Fetcher
	newMap   func(center spatial.Point, zoom int) Map
	log      SearchLog

	issued atomic.Uint64

	mu        sync.Mutex
	m         Map
	selection *SelectionController
	markers   *MarkerSynchronizer
	location  geoloc.ResolvedLocation
	lastTerm  string
	pending   int
	applied   uint64
	result    *pharmacy.Result
	ranked    []pharmacy.RankedPharmacy
	fetchErr  error
	closed    bool
}

// NewSession creates a session. Nothing happens until Start.
func NewSession(opts Options) *Session {
	newMap := opts.NewMap
	if newMap == nil {
		newMap = func(center spatial.Point, zoom int) Map { return NewCanvas(center, zoom) }
	}

	return &Session{
		resolver: opts.Resolver,
		fetcher:  opts.Fetcher,
		newMap:   newMap,
		log:      opts.Log,
	}
}

// Start shows the default location, then resolves the device location and
// loads every pharmacy concurrently. It returns once both are applied.
func (s *Session) Start(ctx context.Context) error {
	return s.StartWith(ctx, "")
}

// StartWith is Start with term as the first search. On a started session it
// only searches term.
func (s *Session) StartWith(ctx context.Context, term string) error {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()

		return ErrClosed
	}

	if s.m != nil {
		s.mu.Unlock()

		return s.Search(ctx, term)
	}

	s.location = geoloc.Fallback(geoloc.ReasonNone)
	s.location.At = time.Now()
	s.m = s.newMap(s.location.Point, InitialZoom)
	s.selection = NewSelectionController(s.m)
	s.markers = NewMarkerSynchronizer(s.m, s.selection)
	s.mu.Unlock()

	var g errgroup.Group

	g.Go(func() error {
		s.RefreshLocation(ctx)

		return nil
	})

	g.Go(func() error {
		return s.Search(ctx, term)
	})

	return g.Wait()
}

// Search fetches the pharmacies for term (all of them when blank) and
// applies the result, unless a later search was applied first. A failed
// fetch empties the list and is returned.
func (s *Session) Search(ctx context.Context, term string) error {
	term = strings.TrimSpace(term)
	seq := s.issued.Add(1)

	s.mu.Lock()
	if s.closed || s.m == nil {
		s.mu.Unlock()

		return ErrClosed
	}

	s.lastTerm = term
	s.pending++
	s.mu.Unlock()

	result, err := s.fetcher.Fetch(ctx, term)

	s.mu.Lock()
	s.pending--

	if s.closed {
		s.mu.Unlock()

		return ErrClosed
	}

	if seq < s.applied {
		s.mu.Unlock()
		log.Printf("Discarding stale results of search #%d (%q); #%d already applied", seq, term, s.applied)

		return nil
	}

	s.applied = seq
	s.fetchErr = err

	if err != nil {
		log.Printf("Error fetching pharmacies for %q: %v", term, err)

		result = &pharmacy.Result{Term: term}
	}

	s.result = result
	s.apply()
	entry := s.entry(seq, term, err)
	s.mu.Unlock()

	s.record(ctx, entry)

	return err
}

// Retry re-runs the last search.
func (s *Session) Retry(ctx context.Context) error {
	s.mu.Lock()
	term := s.lastTerm
	s.mu.Unlock()

	return s.Search(ctx, term)
}

// RefreshLocation resolves the location again. The current list is
// re-ranked from the new origin without fetching it again.
func (s *Session) RefreshLocation(ctx context.Context) geoloc.ResolvedLocation {
	loc := s.resolver.Resolve(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.m == nil {
		return loc
	}

	s.location = loc

	if s.result != nil {
		s.apply()
	}

	if _, ok := s.selection.Selected(); !ok {
		s.m.FlyTo(loc.Point, InitialZoom)
	}

	return loc
}

// apply ranks the current result from the current origin and rebuilds the
// markers. The caller holds s.mu.
func (s *Session) apply() {
	s.ranked = pharmacy.Rank(s.location.Point, s.result.Pharmacies)
	s.selection.SetRanked(s.ranked)
	s.selection.ClearStale()
	s.markers.Sync(s.ranked, s.selection.State())
}

func (s *Session) entry(seq uint64, term string, err error) *history.Entry {
	if s.log == nil {
		return nil
	}

	e := &history.Entry{
		Seq:       seq,
		Term:      term,
		Origin:    s.location.Point,
		Source:    s.location.Source,
		Reason:    s.location.Reason,
		Results:   len(s.ranked),
		CreatedAt: time.Now(),
	}

	if err != nil {
		e.Error = pharmacy.UserMessage(err)
	}

	if len(s.ranked) > 0 && s.ranked[0].Location.Valid() {
		id := s.ranked[0].StoreID
		km := s.ranked[0].DistanceKm
		e.NearestStoreID = &id
		e.NearestKm = &km
	}

	return e
}

func (s *Session) record(ctx context.Context, entry *history.Entry) {
	if entry == nil {
		return
	}

	if err := s.log.Record(ctx, entry); err != nil {
		log.Printf("Error recording search #%d: %v", entry.Seq, err)
	}
}

// Select selects a pharmacy of the current list. Unknown ids are ignored.
func (s *Session) Select(id pharmacy.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.m == nil {
		return false
	}

	return s.selection.Select(id)
}

// ClearSelection drops the selection.
func (s *Session) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.m == nil {
		return
	}

	s.selection.Clear()
}

// ClickMarker clicks the marker of a pharmacy.
func (s *Session) ClickMarker(id pharmacy.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.m == nil {
		return ErrClosed
	}

	if c, ok := s.m.(*Canvas); ok {
		return c.Click(id)
	}

	if !s.markers.Click(id) {
		return ErrMarkerNotFound
	}

	return nil
}

// Markers returns the store ids currently shown on the map.
func (s *Session) Markers() []pharmacy.ID {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.markers == nil {
		return nil
	}

	return s.markers.Markers()
}

// View returns the map as rendered, when the map is a Canvas.
func (s *Session) View() (View, bool) {
	s.mu.Lock()
	c, ok := s.m.(*Canvas)
	s.mu.Unlock()

	if !ok {
		return View{}, false
	}

	return c.View(), true
}

// Location returns the current origin.
func (s *Session) Location() geoloc.ResolvedLocation {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.location
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Location:       s.location,
		Term:           s.lastTerm,
		Loading:        s.pending > 0,
		Pharmacies:     append([]pharmacy.RankedPharmacy{}, s.ranked...),
		MedicineOffers: []pharmacy.MedicineOffer{},
		Seq:            s.applied,
	}

	snap.Banner = s.location.Reason.Message()

	if s.result != nil {
		snap.Term = s.result.Term
		snap.MedicineOffers = append(snap.MedicineOffers, s.result.MedicineOffers...)
	}

	if s.selection != nil {
		snap.Selection = s.selection.State()
	}

	if s.fetchErr != nil {
		snap.Error = pharmacy.UserMessage(s.fetchErr)
		snap.Retry = true
	}

	return snap
}

// Close tears the map down. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	if s.markers != nil {
		s.markers.Close()
	}
}
