// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/api", srv.Client())
	require.NoError(t, err)

	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestFetchAll(t *testing.T) {
	var gotPath, gotQuery string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.RawQuery

		writeJSON(w, http.StatusOK, `{"results": [
			{"id": 1, "store_name": "A", "latitude": 30, "longitude": 31},
			{"id": 2, "store_name": "B", "latitude": 30.1, "longitude": 31.1}
		]}`)
	})

	res, err := c.Fetch(context.Background(), "   ")
	require.NoError(t, err)

	assert.Equal(t, "/api/pharmacies", gotPath)
	assert.Empty(t, gotQuery)
	assert.Empty(t, res.Term)
	assert.Len(t, res.Pharmacies, 2)
	assert.Empty(t, res.MedicineOffers)
}

func TestFetchWithMedicine(t *testing.T) {
	var gotPath, gotTerm string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotTerm = r.URL.Path, r.URL.Query().Get("medicine_name")

		writeJSON(w, http.StatusOK, `[
			{"id": 3, "store_name": "C", "latitude": 30, "longitude": 31, "medicines": [
				{"id": 10, "brand_name": "Brufen", "generic_name": "Ibuprofen", "price": "22.00", "stock": 3}
			]}
		]`)
	})

	res, err := c.Fetch(context.Background(), " ibuprofen 400 ")
	require.NoError(t, err)

	assert.Equal(t, "/api/pharmacies/with-medicine", gotPath)
	assert.Equal(t, "ibuprofen 400", gotTerm)
	assert.Equal(t, "ibuprofen 400", res.Term)
	require.Len(t, res.MedicineOffers, 1)
	assert.Equal(t, "C", res.MedicineOffers[0].PharmacyName)
	assert.Equal(t, ID(3), res.MedicineOffers[0].StoreID)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		wantStatus  int
		wantMessage string
	}{
		{
			name: "server message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusNotFound, `{"detail": "Medicine not found."}`)
			},
			wantStatus:  http.StatusNotFound,
			wantMessage: "Medicine not found.",
		},
		{
			name: "no server message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte("<html>bad gateway</html>"))
			},
			wantStatus:  http.StatusBadGateway,
			wantMessage: "request failed with status code 502",
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				_, _ = w.Write([]byte("<html>login</html>"))
			},
			wantStatus:  http.StatusOK,
			wantMessage: GenericFetchMessage,
		},
		{
			name: "unexpected shape",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, `{"data": []}`)
			},
			wantStatus:  http.StatusOK,
			wantMessage: GenericFetchMessage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)

			_, err := c.Fetch(context.Background(), "x")
			require.Error(t, err)
			require.ErrorIs(t, err, ErrFetchFailed)

			var fetchErr *FetchError
			require.ErrorAs(t, err, &fetchErr)
			assert.Equal(t, tt.wantStatus, fetchErr.Status)
			assert.Equal(t, tt.wantMessage, fetchErr.Message)
			assert.Equal(t, tt.wantMessage, UserMessage(err))
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), "")
	require.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Zero(t, fetchErr.Status)
	assert.NotEqual(t, GenericFetchMessage, fetchErr.Message)
	assert.Contains(t, fetchErr.Message, "connect")
}

func TestNewClientRejectsRelativeURL(t *testing.T) {
	_, err := NewClient("/api", nil)
	require.Error(t, err)
}

func TestUserMessageForeignError(t *testing.T) {
	assert.Equal(t, GenericFetchMessage, UserMessage(errors.New("boom")))
}
