// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package server exposes a locator session as a JSON API for a map
// front-end.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jcodagnone/pharmalocator/cart"
	"github.com/jcodagnone/pharmalocator/history"
	"github.com/jcodagnone/pharmalocator/locator"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/utils/textutils"
)

//go:embed templates/*.html
var templates embed.FS

const defaultHistoryLimit = 20

// CartClient adds products to the user's cart.
type CartClient interface {
	Add(ctx context.Context, product pharmacy.ID, forceClear bool) (*cart.Cart, error)
}

// Server serves one session.
type Server struct {
	session *locator.Session
	cart    CartClient
	history history.Repository
}

// NewServer creates a server. cartClient and historyRepo may be nil, which
// disables their endpoints.
func NewServer(session *locator.Session, cartClient CartClient, historyRepo history.Repository) *Server {
	return &Server{
		session: session,
		cart:    cartClient,
		history: historyRepo,
	}
}

// Router returns the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.Default()
	r.SetFuncMap(template.FuncMap{
		"distance": textutils.FormatDistance,
		"stars":    textutils.Stars,
	})
	r.SetHTMLTemplate(template.Must(template.New("").Funcs(r.FuncMap).ParseFS(templates, "templates/*.html")))

	r.GET("/", s.indexView)
	r.GET("/api/location", s.getLocation)
	r.POST("/api/location/refresh", s.refreshLocation)
	r.GET("/api/pharmacies", s.searchPharmacies)
	r.GET("/api/results", s.getResults)
	r.POST("/api/pharmacies/retry", s.retry)
	r.GET("/api/map", s.getMap)
	r.POST("/api/map/markers/:id/click", s.clickMarker)
	r.PUT("/api/selection/:id", s.putSelection)
	r.DELETE("/api/selection", s.deleteSelection)
	r.POST("/api/cart", s.addToCart)
	r.GET("/api/history", s.listHistory)
	r.GET("/api/history/terms", s.topTerms)

	return r
}

// Run listens on addr until the server fails.
func (s *Server) Run(addr string) error {
	log.Printf("Listening on http://%s", addr)

	return s.Router().Run(addr)
}

func (s *Server) indexView(ctx *gin.Context) {
	if q, ok := ctx.GetQuery("q"); ok {
		// A failure is rendered from the snapshot.
		_ = s.session.Search(ctx.Request.Context(), q)
	}

	ctx.HTML(http.StatusOK, "index.html", s.session.Snapshot())
}

func (s *Server) getLocation(ctx *gin.Context) {
	loc := s.session.Location()

	ctx.JSON(http.StatusOK, gin.H{
		"location": loc,
		"banner":   loc.Reason.Message(),
	})
}

func (s *Server) refreshLocation(ctx *gin.Context) {
	loc := s.session.RefreshLocation(ctx.Request.Context())

	ctx.JSON(http.StatusOK, gin.H{
		"location": loc,
		"banner":   loc.Reason.Message(),
	})
}

func (s *Server) searchPharmacies(ctx *gin.Context) {
	s.respondSearch(ctx, s.session.Search(ctx.Request.Context(), ctx.Query("q")))
}

func (s *Server) retry(ctx *gin.Context) {
	s.respondSearch(ctx, s.session.Retry(ctx.Request.Context()))
}

func (s *Server) respondSearch(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, locator.ErrClosed):
		ctx.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case err != nil:
		ctx.JSON(http.StatusBadGateway, gin.H{
			"error": pharmacy.UserMessage(err),
			"retry": true,
		})
	default:
		ctx.JSON(http.StatusOK, s.session.Snapshot())
	}
}

func (s *Server) getResults(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, s.session.Snapshot())
}

func (s *Server) getMap(ctx *gin.Context) {
	view, ok := s.session.View()
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "map not available"})

		return
	}

	ctx.JSON(http.StatusOK, view)
}

func parseID(ctx *gin.Context) (pharmacy.ID, bool) {
	id, err := pharmacy.ParseID(ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid store id"})

		return 0, false
	}

	return id, true
}

func (s *Server) clickMarker(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	err := s.session.ClickMarker(id)

	switch {
	case errors.Is(err, locator.ErrMarkerNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, locator.ErrClosed), errors.Is(err, locator.ErrMapRemoved):
		ctx.JSON(http.StatusGone, gin.H{"error": err.Error()})
	case err != nil:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		view, _ := s.session.View()
		ctx.JSON(http.StatusOK, view)
	}
}

// putSelection ignores ids missing from the current list.
func (s *Server) putSelection(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}

	selected := s.session.Select(id)

	ctx.JSON(http.StatusOK, gin.H{
		"selected":  selected,
		"selection": s.session.Snapshot().Selection,
	})
}

func (s *Server) deleteSelection(ctx *gin.Context) {
	s.session.ClearSelection()

	ctx.JSON(http.StatusOK, gin.H{"selection": s.session.Snapshot().Selection})
}

type addToCartRequest struct {
	Product    pharmacy.ID `json:"product" binding:"required"`
	ForceClear bool        `json:"force_clear"`
}

func (s *Server) addToCart(ctx *gin.Context) {
	if s.cart == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "cart is not configured"})

		return
	}

	var req addToCartRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		return
	}

	c, err := s.cart.Add(ctx.Request.Context(), req.Product, req.ForceClear)

	var (
		conflict *cart.ConflictError
		reqErr   *cart.RequestError
	)

	switch {
	case errors.As(err, &conflict):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":                 conflict.Message,
			"requires_confirmation": true,
			"current_store":         conflict.StoreID,
		})
	case errors.As(err, &reqErr):
		status := http.StatusBadGateway
		if reqErr.Status == http.StatusUnauthorized || reqErr.Status == http.StatusForbidden {
			status = reqErr.Status
		}

		ctx.JSON(status, gin.H{"error": reqErr.Message, "retry": true})
	case err != nil:
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		ctx.JSON(http.StatusOK, gin.H{"cart": c, "total": c.Amount()})
	}
}

func queryLimit(ctx *gin.Context) (int, bool) {
	raw := ctx.Query("limit")
	if raw == "" {
		return defaultHistoryLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})

		return 0, false
	}

	return limit, true
}

func (s *Server) listHistory(ctx *gin.Context) {
	if s.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})

		return
	}

	limit, ok := queryLimit(ctx)
	if !ok {
		return
	}

	entries, err := s.history.List(ctx.Request.Context(), ctx.Query("q"), limit)
	if err != nil {
		log.Printf("Error listing history: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list history"})

		return
	}

	if entries == nil {
		entries = []*history.Entry{}
	}

	ctx.JSON(http.StatusOK, entries)
}

func (s *Server) topTerms(ctx *gin.Context) {
	if s.history == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "history is disabled"})

		return
	}

	limit, ok := queryLimit(ctx)
	if !ok {
		return
	}

	terms, err := s.history.TopTerms(ctx.Request.Context(), limit)
	if err != nil {
		log.Printf("Error listing top terms: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list terms"})

		return
	}

	if terms == nil {
		terms = []history.TermCount{}
	}

	ctx.JSON(http.StatusOK, terms)
}
