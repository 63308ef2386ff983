// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"errors"
	"fmt"
)

// ErrFetchFailed matches every error returned by Client.Fetch.
var ErrFetchFailed = errors.New("fetch failed")

// GenericFetchMessage is shown when neither the server nor the transport
// gave a usable message.
const GenericFetchMessage = "Failed to load pharmacies"

// FetchError is the single error kind of a pharmacy fetch. Message is the
// best human readable explanation available.
type FetchError struct {
	// Status is the HTTP status code, zero for transport failures.
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFetchFailed) true for any FetchError.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// newFetchError picks the message by preference: server, transport, generic.
func newFetchError(status int, server string, transport error, cause error) *FetchError {
	msg := server
	if msg == "" && transport != nil {
		msg = transport.Error()
	}

	if msg == "" {
		msg = GenericFetchMessage
	}

	if cause == nil {
		cause = transport
	}

	return &FetchError{Status: status, Message: msg, Err: cause}
}

// UserMessage returns the message to show for err: the FetchError message,
// or the generic one for anything else.
func UserMessage(err error) string {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Message
	}

	return GenericFetchMessage
}
