// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/pharmalocator/cart"
	"github.com/jcodagnone/pharmalocator/geoloc"
	"github.com/jcodagnone/pharmalocator/history"
	"github.com/jcodagnone/pharmalocator/locator"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/spatial"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	fail bool
}

func (f *fakeFetcher) Fetch(_ context.Context, term string) (*pharmacy.Result, error) {
	if f.fail {
		return nil, &pharmacy.FetchError{Status: http.StatusServiceUnavailable, Message: "Service unavailable"}
	}

	near := pharmacy.Pharmacy{StoreID: 1, Name: "Near", Location: spatial.Point{Lat: 30.05, Lng: 31.24}}
	far := pharmacy.Pharmacy{StoreID: 2, Name: "Far", Location: spatial.Point{Lat: 30.10, Lng: 31.24}}

	if term == "" {
		return &pharmacy.Result{Pharmacies: []pharmacy.Pharmacy{far, near}}, nil
	}

	offer := pharmacy.MedicineOffer{ID: 42, BrandName: "Panadol", Price: decimal.RequireFromString("12.50"), Stock: 3, StoreID: 2, PharmacyName: "Far"}
	far.Medicines = []pharmacy.MedicineOffer{offer}

	return &pharmacy.Result{Term: term, Pharmacies: []pharmacy.Pharmacy{far}, MedicineOffers: []pharmacy.MedicineOffer{offer}}, nil
}

type fakeCart struct {
	store pharmacy.ID
}

func (f *fakeCart) Add(_ context.Context, product pharmacy.ID, forceClear bool) (*cart.Cart, error) {
	if f.store != 0 && !forceClear {
		store := f.store

		return nil, &cart.ConflictError{Message: "Your cart contains items from another pharmacy", StoreID: &store}
	}

	return &cart.Cart{
		ID:    1,
		Items: []cart.Item{{Product: product, Quantity: 2, Price: decimal.RequireFromString("12.50")}},
	}, nil
}

type testEnv struct {
	router  *gin.Engine
	session *locator.Session
	fetcher *fakeFetcher
	repo    history.Repository
}

func setupServerTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sql.Open("duckdb", "")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := history.NewRepository(db)
	require.NoError(t, repo.CreateSchema())

	fetcher := &fakeFetcher{}
	session := locator.NewSession(locator.Options{
		Resolver: geoloc.NewResolver(&geoloc.FixedProvider{Point: geoloc.DefaultPoint}, nil),
		Fetcher:  fetcher,
		Log:      repo,
	})
	t.Cleanup(session.Close)

	require.NoError(t, session.Start(context.Background()))

	return &testEnv{
		router:  NewServer(session, &fakeCart{store: 9}, repo).Router(),
		session: session,
		fetcher: fetcher,
		repo:    repo,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *bytes.Reader

	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)

		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var decoded map[string]any
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && strings.HasPrefix(w.Body.String(), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	}

	return w, decoded
}

func TestLocationAPI(t *testing.T) {
	env := setupServerTest(t)

	w, body := env.do(t, http.MethodGet, "/api/location", nil)
	require.Equal(t, http.StatusOK, w.Code)

	loc := body["location"].(map[string]any)
	assert.Equal(t, "device", loc["source"])
	assert.Equal(t, "", body["banner"])

	w, _ = env.do(t, http.MethodPost, "/api/location/refresh", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSearchAPI(t *testing.T) {
	env := setupServerTest(t)

	w, body := env.do(t, http.MethodGet, "/api/results", nil)
	require.Equal(t, http.StatusOK, w.Code)

	pharmacies := body["pharmacies"].([]any)
	require.Len(t, pharmacies, 2)
	assert.Equal(t, "Near", pharmacies[0].(map[string]any)["name"])

	w, body = env.do(t, http.MethodGet, "/api/pharmacies?q=panadol", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "panadol", body["term"])
	assert.Len(t, body["pharmacies"], 1)
	assert.Len(t, body["medicine_offers"], 1)

	entries, err := env.repo.List(context.Background(), "Panadol", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSearchFailureAPI(t *testing.T) {
	env := setupServerTest(t)
	env.fetcher.fail = true

	w, body := env.do(t, http.MethodGet, "/api/pharmacies?q=panadol", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Service unavailable", body["error"])
	assert.Equal(t, true, body["retry"])

	w, body = env.do(t, http.MethodGet, "/api/map", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, body["markers"])

	env.fetcher.fail = false

	w, body = env.do(t, http.MethodPost, "/api/pharmacies/retry", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "panadol", body["term"])
	assert.Nil(t, body["error"])
}

func TestMapAndSelectionAPI(t *testing.T) {
	env := setupServerTest(t)

	w, body := env.do(t, http.MethodPost, "/api/map/markers/2/click", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(locator.SelectedZoom), body["zoom"])
	assert.Equal(t, float64(2), body["open_popup"])

	w, _ = env.do(t, http.MethodPost, "/api/map/markers/99/click", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = env.do(t, http.MethodPost, "/api/map/markers/abc/click", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = env.do(t, http.MethodPut, "/api/selection/1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["selected"])

	w, body = env.do(t, http.MethodPut, "/api/selection/99", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["selected"])
	assert.Equal(t, float64(1), body["selection"].(map[string]any)["selected_store_id"])

	w, body = env.do(t, http.MethodDelete, "/api/selection", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, body["selection"].(map[string]any)["selected_store_id"])

	_, body = env.do(t, http.MethodGet, "/api/map", nil)
	for _, m := range body["markers"].([]any) {
		assert.Equal(t, false, m.(map[string]any)["highlighted"])
	}
}

func TestCartAPI(t *testing.T) {
	env := setupServerTest(t)

	w, body := env.do(t, http.MethodPost, "/api/cart", map[string]any{"product": 42})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, true, body["requires_confirmation"])
	assert.Equal(t, float64(9), body["current_store"])

	w, body = env.do(t, http.MethodPost, "/api/cart", map[string]any{"product": 42, "force_clear": true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "25", body["total"])

	w, _ = env.do(t, http.MethodPost, "/api/cart", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHistoryAPI(t *testing.T) {
	env := setupServerTest(t)

	env.do(t, http.MethodGet, "/api/pharmacies?q=Panadol", nil)
	env.do(t, http.MethodGet, "/api/pharmacies?q=panadol", nil)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history?limit=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var entries []history.Entry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "panadol", entries[0].Term)

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/terms", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var terms []history.TermCount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &terms))
	require.Len(t, terms, 1)
	assert.Equal(t, 2, terms[0].Searches)

	w, _ = env.do(t, http.MethodGet, "/api/history?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIndexView(t *testing.T) {
	env := setupServerTest(t)

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?q=panadol", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Contains(t, w.Body.String(), "Panadol")
	assert.Contains(t, w.Body.String(), "12.50")
}

func TestIndexViewRetry(t *testing.T) {
	env := setupServerTest(t)
	env.fetcher.fail = true

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?q=panadol", nil))
	require.Equal(t, http.StatusOK, w.Code)

	page := w.Body.String()
	assert.Contains(t, page, "Service unavailable")
	assert.Contains(t, page, `<form action="/" method="get" class="error">`)
	assert.Contains(t, page, `<input type="hidden" name="q" value="panadol">`)
	assert.Contains(t, page, `<button type="submit">Retry</button>`)

	// Submitting the retry form is a GET of the same term.
	env.fetcher.fail = false

	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/?q=panadol", nil))
	require.Equal(t, http.StatusOK, w.Code)

	page = w.Body.String()
	assert.NotContains(t, page, "Retry")
	assert.Contains(t, page, "Panadol")
}
