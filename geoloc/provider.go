// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package geoloc

import (
	"context"
	"errors"
	"fmt"

	"github.com/jcodagnone/pharmalocator/spatial"
)

// Provider acquires the device position.
type Provider interface {
	CurrentPosition(ctx context.Context, options PositionOptions) (spatial.Point, error)
}

// PositionError is a failure reported by a Provider.
type PositionError struct {
	Code    Reason
	Message string
	Err     error
}

func (e *PositionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}

	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *PositionError) Unwrap() error {
	return e.Err
}

// ReasonOf classifies a provider error. Errors that are not PositionError
// are position_unavailable.
func ReasonOf(err error) Reason {
	if err == nil {
		return ReasonNone
	}

	var posErr *PositionError
	if errors.As(err, &posErr) && posErr.Code != ReasonNone {
		return posErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}

	return ReasonPositionUnavailable
}

// FixedProvider reports a configured position, e.g. from command line flags.
type FixedProvider struct {
	Point spatial.Point
}

// CurrentPosition implements Provider.
func (p *FixedProvider) CurrentPosition(_ context.Context, _ PositionOptions) (spatial.Point, error) {
	if !p.Point.Valid() {
		return spatial.Point{}, &PositionError{Code: ReasonPositionUnavailable, Message: "invalid fixed position"}
	}

	return p.Point, nil
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context, options PositionOptions) (spatial.Point, error)

// CurrentPosition implements Provider.
func (f ProviderFunc) CurrentPosition(ctx context.Context, options PositionOptions) (spatial.Point, error) {
	return f(ctx, options)
}
