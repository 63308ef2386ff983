// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jcodagnone/pharmalocator/utils/htmlutils"
)

const (
	pharmaciesPath   = "pharmacies"
	withMedicinePath = "pharmacies/with-medicine"
	maxErrorBody     = 64 << 10
)

// Fetcher retrieves pharmacies, optionally only those stocking a medicine.
type Fetcher interface {
	Fetch(ctx context.Context, term string) (*Result, error)
}

// Client is the Fetcher backed by the REST backend.
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

func (c *Client) endpoint(term string) string {
	if term == "" {
		return c.base.JoinPath(pharmaciesPath).String()
	}

	u := c.base.JoinPath(withMedicinePath)
	u.RawQuery = url.Values{"medicine_name": []string{term}}.Encode()

	return u.String()
}

// Fetch retrieves every pharmacy when term is blank, otherwise the
// pharmacies stocking a medicine named term, together with their offers.
// All failures are *FetchError. Nothing is retried.
func (c *Client) Fetch(ctx context.Context, term string) (*Result, error) {
	term = strings.TrimSpace(term)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(term), nil)
	if err != nil {
		return nil, newFetchError(0, "", nil, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, newFetchError(0, "", transportError(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var msg string
		if r, err := htmlutils.AsReader(resp); err == nil {
			if body, err := io.ReadAll(io.LimitReader(r, maxErrorBody)); err == nil {
				msg = serverMessage(body)
			}
		}

		return nil, newFetchError(
			resp.StatusCode,
			msg,
			fmt.Errorf("request failed with status code %d", resp.StatusCode),
			nil,
		)
	}

	r, err := htmlutils.AsReader(resp)
	if err != nil {
		return nil, newFetchError(resp.StatusCode, "", nil, fmt.Errorf("reading response: %w", err))
	}

	records, err := decodeEnvelope(r)
	if err != nil {
		return nil, newFetchError(resp.StatusCode, "", nil, err)
	}

	pharmacies, offers := normalizeAll(records)

	return &Result{
		Term:           term,
		Pharmacies:     pharmacies,
		MedicineOffers: offers,
	}, nil
}

// transportError strips the method and URL net/http prepends.
func transportError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}

	return err
}
