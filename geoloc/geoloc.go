// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package geoloc resolves the location used as the origin of a pharmacy
// search. Resolution always produces a usable location: when the device
// cannot be located the fixed default is used and the reason is recorded.
package geoloc

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/jcodagnone/pharmalocator/spatial"
)

// Source tells where a resolved location came from.
type Source string

// Location sources.
const (
	SourceDevice  Source = "device"
	SourceDefault Source = "default"
)

// Reason is why the device location could not be used.
type Reason string

// Reasons a device location is unavailable.
const (
	ReasonNone                Reason = ""
	ReasonPermissionDenied    Reason = "permission_denied"
	ReasonPositionUnavailable Reason = "position_unavailable"
	ReasonTimeout             Reason = "timeout"
	ReasonUnsupported         Reason = "unsupported"
)

// Message returns the banner text shown for the reason.
func (r Reason) Message() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonPermissionDenied:
		return "Location access was denied. Showing results near the default location."
	case ReasonPositionUnavailable:
		return "Your location is unavailable. Showing results near the default location."
	case ReasonTimeout:
		return "Locating you took too long. Showing results near the default location."
	case ReasonUnsupported:
		return "Location is not supported. Showing results near the default location."
	default:
		return "Showing results near the default location."
	}
}

// DefaultPoint is the fallback origin (Cairo downtown).
var DefaultPoint = spatial.Point{Lat: 30.0444, Lng: 31.2357}

// ResolvedLocation is the origin of a search. It is immutable; a refresh
// produces a new value.
type ResolvedLocation struct {
	Point  spatial.Point `json:"point"`
	Source Source        `json:"source"`
	Reason Reason        `json:"error_reason,omitempty"`
	At     time.Time     `json:"resolved_at"`
}

// Degraded reports whether the location is the default one.
func (l ResolvedLocation) Degraded() bool {
	return l.Source == SourceDefault
}

// Fallback returns the default location for a failure reason.
func Fallback(reason Reason) ResolvedLocation {
	return ResolvedLocation{
		Point:  DefaultPoint,
		Source: SourceDefault,
		Reason: reason,
	}
}

// PositionOptions mirrors the options of a device position request.
type PositionOptions struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	// MaximumAge is how old a previous fix may be to be reused. Zero never
	// reuses a fix.
	MaximumAge time.Duration
}

// DefaultPositionOptions are the options used for every resolution.
var DefaultPositionOptions = PositionOptions{
	EnableHighAccuracy: true,
	Timeout:            10 * time.Second,
	MaximumAge:         0,
}

// Resolver resolves locations with a single provider.
type Resolver struct {
	provider Provider
	options  PositionOptions
	now      func() time.Time

	mu      sync.Mutex
	lastFix *ResolvedLocation
}

// NewResolver creates a resolver. A nil provider always resolves to the
// default location with ReasonUnsupported.
func NewResolver(provider Provider, options *PositionOptions) *Resolver {
	opts := DefaultPositionOptions
	if options != nil {
		opts = *options
	}

	return &Resolver{
		provider: provider,
		options:  opts,
		now:      time.Now,
	}
}

// Resolve produces exactly one location. It never fails: device errors
// degrade to the default location.
func (r *Resolver) Resolve(ctx context.Context) ResolvedLocation {
	loc := r.resolve(ctx)
	if loc.At.IsZero() {
		loc.At = r.now()
	}

	if loc.Degraded() {
		log.Printf("Using default location: %s", loc.Reason)
	} else {
		r.mu.Lock()
		r.lastFix = &loc
		r.mu.Unlock()
	}

	return loc
}

func (r *Resolver) resolve(ctx context.Context) ResolvedLocation {
	if r.provider == nil {
		return Fallback(ReasonUnsupported)
	}

	if cached, ok := r.cached(); ok {
		return cached
	}

	if r.options.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, r.options.Timeout)
		defer cancel()
	}

	// The provider runs on its own so a provider ignoring ctx cannot
	// outlive the timeout.
	fixes := make(chan fix, 1)

	go func() {
		point, err := r.provider.CurrentPosition(ctx, r.options)
		fixes <- fix{point, err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Fallback(ReasonTimeout)
		}

		return Fallback(ReasonPositionUnavailable)
	case f := <-fixes:
		switch {
		case f.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
			return Fallback(ReasonTimeout)
		case f.err != nil:
			return Fallback(ReasonOf(f.err))
		case !f.point.Valid():
			return Fallback(ReasonPositionUnavailable)
		default:
			return ResolvedLocation{Point: f.point, Source: SourceDevice, At: r.now()}
		}
	}
}

type fix struct {
	point spatial.Point
	err   error
}

func (r *Resolver) cached() (ResolvedLocation, bool) {
	if r.options.MaximumAge <= 0 {
		return ResolvedLocation{}, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastFix == nil || r.now().Sub(r.lastFix.At) > r.options.MaximumAge {
		return ResolvedLocation{}, false
	}

	return *r.lastFix, true
}
