// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package history keeps a log of the searches applied by a session in
// DuckDB. Pharmacies themselves are never stored.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jcodagnone/pharmalocator/geoloc"
	"github.com/jcodagnone/pharmalocator/pharmacy"
	"github.com/jcodagnone/pharmalocator/spatial"
	"github.com/jcodagnone/pharmalocator/utils/textutils"
	"github.com/uber/h3-go/v4"
)

// CellResolution is the H3 resolution of the origin cell (~5 km²).
const CellResolution = 7

// Entry is one applied search.
type Entry struct {
	ID             int64         `json:"id"`
	Seq            uint64        `json:"seq"`
	Term           string        `json:"term"`
	Origin         spatial.Point `json:"origin"`
	Source         geoloc.Source `json:"source"`
	Reason         geoloc.Reason `json:"reason,omitempty"`
	H3Cell         string        `json:"h3_cell"`
	Results        int           `json:"results"`
	NearestStoreID *pharmacy.ID  `json:"nearest_store_id,omitempty"`
	NearestKm      *float64      `json:"nearest_km,omitempty"`
	Error          string        `json:"error,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// TermCount is how many times a term was searched.
type TermCount struct {
	Term     string    `json:"term"`
	Searches int       `json:"searches"`
	LastSeen time.Time `json:"last_seen"`
}

// Repository persists search entries.
type Repository interface {
	// CreateSchema creates the searches table
	CreateSchema() error

	// Record stores an entry, filling its ID and H3Cell
	Record(ctx context.Context, entry *Entry) error

	// List returns the latest entries first, optionally only those for term
	List(ctx context.Context, term string, limit int) ([]*Entry, error)

	// TopTerms returns the most searched non-blank terms
	TopTerms(ctx context.Context, limit int) ([]TermCount, error)

	// DB returns the underlying database connection
	DB() *sql.DB
}

type sqlRepository struct {
	db *sql.DB
}

// NewRepository creates a repository on db, a DuckDB connection.
func NewRepository(db *sql.DB) Repository {
	return &sqlRepository{db: db}
}

func (r *sqlRepository) DB() *sql.DB {
	return r.db
}

func (r *sqlRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS searches_seq START 1;

		CREATE TABLE IF NOT EXISTS searches (
			id BIGINT PRIMARY KEY DEFAULT nextval('searches_seq'),
			seq UBIGINT NOT NULL,
			term VARCHAR NOT NULL,
			term_key VARCHAR NOT NULL,
			origin STRUCT(x DOUBLE, y DOUBLE) NOT NULL,
			source VARCHAR NOT NULL,
			reason VARCHAR NOT NULL,
			h3_cell BIGINT NOT NULL,
			results INTEGER NOT NULL,
			nearest_store_id BIGINT,
			nearest_km DOUBLE,
			error VARCHAR NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)

	return err
}

// TermKey is the form terms are grouped and filtered by.
func TermKey(term string) string {
	return textutils.LowerASCIIFolding(strings.Join(strings.Fields(term), " "))
}

func cellOf(p spatial.Point) (h3.Cell, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lng), CellResolution)
	if err != nil {
		return 0, fmt.Errorf("error converting to h3 cell at res %d: %w", CellResolution, err)
	}

	return cell, nil
}

func (r *sqlRepository) Record(ctx context.Context, entry *Entry) error {
	if !entry.Origin.Valid() {
		return errors.New("origin must be a valid point")
	}

	cell, err := cellOf(entry.Origin)
	if err != nil {
		return err
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	var nearest sql.NullInt64
	if entry.NearestStoreID != nil {
		nearest = sql.NullInt64{Int64: int64(*entry.NearestStoreID), Valid: true}
	}

	var nearestKm sql.NullFloat64
	if entry.NearestKm != nil {
		nearestKm = sql.NullFloat64{Float64: *entry.NearestKm, Valid: true}
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO searches (
			seq, term, term_key, origin, source, reason, h3_cell, results,
			nearest_store_id, nearest_km, error, created_at
		) VALUES (?, ?, ?, struct_pack(x := ?::DOUBLE, y := ?::DOUBLE), ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		entry.Seq, entry.Term, TermKey(entry.Term),
		entry.Origin.Lng, entry.Origin.Lat,
		string(entry.Source), string(entry.Reason), int64(cell), entry.Results,
		nearest, nearestKm, entry.Error, entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("inserting search: %w", err)
	}

	entry.H3Cell = cell.String()

	return nil
}

func (r *sqlRepository) List(ctx context.Context, term string, limit int) ([]*Entry, error) {
	query := `
		SELECT id, seq, term, origin, source, reason, h3_cell, results,
			nearest_store_id, nearest_km, error, created_at
		FROM searches`

	var args []any

	if key := TermKey(term); key != "" {
		query += " WHERE term_key = ?"

		args = append(args, key)
	}

	query += " ORDER BY id DESC"

	if limit > 0 {
		query += " LIMIT ?"

		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying searches: %w", err)
	}
	defer rows.Close()

	var entries []*Entry

	for rows.Next() {
		var (
			e         Entry
			source    string
			reason    string
			cell      int64
			nearest   sql.NullInt64
			nearestKm sql.NullFloat64
		)

		if err := rows.Scan(&e.ID, &e.Seq, &e.Term, &e.Origin, &source, &reason, &cell, &e.Results,
			&nearest, &nearestKm, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning search: %w", err)
		}

		e.Source = geoloc.Source(source)
		e.Reason = geoloc.Reason(reason)
		e.H3Cell = h3.Cell(cell).String()

		if nearest.Valid {
			id := pharmacy.ID(nearest.Int64)
			e.NearestStoreID = &id
		}

		if nearestKm.Valid {
			km := nearestKm.Float64
			e.NearestKm = &km
		}

		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

func (r *sqlRepository) TopTerms(ctx context.Context, limit int) ([]TermCount, error) {
	if limit <= 0 {
		limit = 10
	}

	// The most recent spelling represents the group.
	rows, err := r.db.QueryContext(ctx, `
		SELECT arg_max(term, id), count(*), max(created_at)
		FROM searches
		WHERE term_key <> ''
		GROUP BY term_key
		ORDER BY count(*) DESC, max(id) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying top terms: %w", err)
	}
	defer rows.Close()

	var counts []TermCount

	for rows.Next() {
		var c TermCount
		if err := rows.Scan(&c.Term, &c.Searches, &c.LastSeen); err != nil {
			return nil, fmt.Errorf("scanning top terms: %w", err)
		}

		counts = append(counts, c)
	}

	return counts, rows.Err()
}
