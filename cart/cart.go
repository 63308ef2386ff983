// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package cart adds medicine offers to the user's cart. A cart holds items
// of a single pharmacy; adding an item of another pharmacy is a conflict
// the user must resolve by clearing the cart or cancelling.
package cart

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/utils/htmlutils"
	"github.com/shopspring/decimal"
)

const addPath = "cart/add"

// Errors of a cart mutation.
var (
	// ErrRequestFailed matches every network, HTTP or decode failure.
	ErrRequestFailed = errors.New("cart request failed")
	// ErrCancelled is returned when the user declines to clear the cart.
	ErrCancelled = errors.New("cancelled by user")
	// ErrOutOfStock is returned for offers without stock.
	ErrOutOfStock = errors.New("medicine is out of stock")
)

// Item is a line of a cart.
type Item struct {
	Product  pharmacy.ID     `json:"product"`
	Name     string          `json:"name,omitempty"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Subtotal is price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is the cart as returned by the backend.
type Cart struct {
	ID      int64            `json:"id"`
	StoreID *pharmacy.ID     `json:"store,omitempty"`
	Items   []Item           `json:"items"`
	Total   *decimal.Decimal `json:"total,omitempty"`
}

// Amount returns the total reported by the backend, or the sum of the
// items when there is none.
func (c *Cart) Amount() decimal.Decimal {
	if c.Total != nil {
		return *c.Total
	}

	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal())
	}

	return sum
}

// RequestError is a failed cart request.
type RequestError struct {
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrRequestFailed) true for any RequestError.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}

// ConflictError is returned when the cart holds items of another pharmacy.
// Retrying with forceClear empties it first.
type ConflictError struct {
	Message string
	StoreID *pharmacy.ID
}

func (e *ConflictError) Error() string {
	return "cart conflict: " + e.Message
}

type addRequest struct {
	Items      []addItem `json:"items"`
	ForceClear bool      `json:"force_clear,omitempty"`
}

type addItem struct {
	Product pharmacy.ID `json:"product"`
}

type errorResponse struct {
	Detail               string       `json:"detail"`
	Message              string       `json:"message"`
	Error                string       `json:"error"`
	RequiresConfirmation bool         `json:"requires_confirmation"`
	CurrentStore         *pharmacy.ID `json:"current_store"`
}

func (r *errorResponse) message() string {
	for _, s := range []string{r.Detail, r.Message, r.Error} {
		if s != "" {
			return s
		}
	}

	return ""
}

// Client mutates the cart through the REST backend.
type Client struct {
	base   *url.URL
	client *http.Client
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing backend URL: %w", err)
	}

	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL must be absolute: %q", baseURL)
	}

	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{base: u, client: httpClient}, nil
}

// Add adds one unit of product. A cart holding another pharmacy's items
// fails with *ConflictError unless forceClear is set.
func (c *Client) Add(ctx context.Context, product pharmacy.ID, forceClear bool) (*Cart, error) {
	body, err := json.Marshal(addRequest{
		Items:      []addItem{{Product: product}},
		ForceClear: forceClear,
	})
	if err != nil {
		return nil, &RequestError{Message: "encoding request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.JoinPath(addPath).String(), bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Message: "creating request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &RequestError{Message: "Failed to add to cart", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, responseError(resp)
	}

	r, err := htmlutils.AsReader(resp)
	if err != nil {
		return nil, &RequestError{Status: resp.StatusCode, Message: "Failed to add to cart", Err: err}
	}

	var cart Cart
	if err := json.NewDecoder(r).Decode(&cart); err != nil {
		return nil, &RequestError{Status: resp.StatusCode, Message: "decoding cart", Err: err}
	}

	return &cart, nil
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorResponse
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode == http.StatusConflict && body.RequiresConfirmation {
		msg := body.message()
		if msg == "" {
			msg = "your cart contains items from another pharmacy"
		}

		return &ConflictError{Message: msg, StoreID: body.CurrentStore}
	}

	msg := body.message()
	if msg == "" {
		msg = fmt.Sprintf("request failed with status code %d", resp.StatusCode)
	}

	return &RequestError{Status: resp.StatusCode, Message: msg}
}

// Confirmer asks the user whether to clear the cart.
type Confirmer interface {
	ConfirmClear(ctx context.Context, conflict *ConflictError, offer *pharmacy.MedicineOffer) (bool, error)
}

// ConfirmFunc adapts a function to a Confirmer.
type ConfirmFunc func(ctx context.Context, conflict *ConflictError, offer *pharmacy.MedicineOffer) (bool, error)

// ConfirmClear implements Confirmer.
func (f ConfirmFunc) ConfirmClear(ctx context.Context, conflict *ConflictError, offer *pharmacy.MedicineOffer) (bool, error) {
	return f(ctx, conflict, offer)
}

// AddWithConfirmation adds offer to the cart. On a conflict it asks
// confirmer and, when the user accepts, retries clearing the cart. A
// refusal returns ErrCancelled.
func (c *Client) AddWithConfirmation(ctx context.Context, offer *pharmacy.MedicineOffer, confirmer Confirmer) (*Cart, error) {
	if !offer.InStock() {
		return nil, ErrOutOfStock
	}

	cart, err := c.Add(ctx, offer.ID, false)

	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		return cart, err
	}

	ok, err := confirmer.ConfirmClear(ctx, conflict, offer)
	if err != nil {
		return nil, fmt.Errorf("confirming cart clear: %w", err)
	}

	if !ok {
		return nil, ErrCancelled
	}

	return c.Add(ctx, offer.ID, true)
}
