// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package pharmacy fetches pharmacies from the backend, normalizes them into
// canonical records and ranks them by distance.
package pharmacy

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/jcodagnone/pharmalocator/spatial"
	"github.com/shopspring/decimal"
)

// ID identifies a backend record. The backend serializes ids as numbers,
// some endpoints as numeric strings.
type ID int64

// String returns the decimal representation of the id.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses the decimal representation of an id.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)

	return ID(n), err
}

// Pharmacy is the canonical pharmacy record, created fresh on every fetch.
type Pharmacy struct {
	StoreID       ID              `json:"store_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Address       string          `json:"address"`
	StoreType     string          `json:"store_type,omitempty"`
	Location      spatial.Point   `json:"location"`
	Phone         string          `json:"phone"`
	Hours         string          `json:"hours"`
	LogoURL       string          `json:"logo_url"`
	Rating        float64         `json:"rating"`
	LicenseExpiry *time.Time      `json:"license_expiry,omitempty"`
	Medicines     []MedicineOffer `json:"medicines,omitempty"`
}

// LicenseExpired reports whether the pharmacy license expired before now.
func (p *Pharmacy) LicenseExpired(now time.Time) bool {
	return p.LicenseExpiry != nil && p.LicenseExpiry.Before(now)
}

// MedicineOffer is a medicine stocked by one pharmacy. Price and stock
// belong to the offer; the pharmacy name and logo are copied for display.
type MedicineOffer struct {
	ID           ID              `json:"id"`
	BrandName    string          `json:"brand_name"`
	GenericName  string          `json:"generic_name"`
	Price        decimal.Decimal `json:"price"`
	Stock        int             `json:"stock"`
	StoreID      ID              `json:"store_id"`
	PharmacyName string          `json:"pharmacy_name"`
	PharmacyLogo string          `json:"pharmacy_logo"`
}

// InStock reports whether the offer can be added to a cart.
func (o *MedicineOffer) InStock() bool {
	return o.Stock > 0
}

// Result is the outcome of one fetch.
type Result struct {
	Term           string          `json:"term"`
	Pharmacies     []Pharmacy      `json:"pharmacies"`
	MedicineOffers []MedicineOffer `json:"medicine_offers"`
}

// RankedPharmacy is a pharmacy with its distance from the search origin.
type RankedPharmacy struct {
	Pharmacy

	DistanceKm float64 `json:"distance_km"`
}

// MarshalJSON encodes an unknown (NaN) distance as null.
func (r RankedPharmacy) MarshalJSON() ([]byte, error) {
	var distance *float64
	if !math.IsNaN(r.DistanceKm) && !math.IsInf(r.DistanceKm, 0) {
		distance = &r.DistanceKm
	}

	return json.Marshal(struct {
		Pharmacy

		DistanceKm *float64 `json:"distance_km"`
	}{r.Pharmacy, distance})
}
