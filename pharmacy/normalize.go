// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"log"
	"math"
	"strings"
	"time"

	"github.com/jcodagnone/pharmalocator/spatial"
	"github.com/shopspring/decimal"
)

// Defaults applied to fields the backend leaves empty.
const (
	DefaultDescription = "Pharmacy services"
	DefaultPhone       = "Not available"
	DefaultHours       = "Hours not available"
	PlaceholderLogoURL = "https://placehold.co/100x100?text=Pharmacy"
)

// clock truncates "HH:MM:SS" to "HH:MM".
func clock(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 5 {
		return s[:5]
	}

	return s
}

func hours(start, end string) string {
	start, end = clock(start), clock(end)
	if start == "" || end == "" {
		return DefaultHours
	}

	return start + " - " + end
}

func address(r *record) string {
	if a := strings.TrimSpace(r.StoreAddress); a != "" {
		return a
	}

	name, storeType := strings.TrimSpace(r.StoreName), strings.TrimSpace(r.StoreType)

	switch {
	case storeType == "":
		return name
	case name == "":
		return storeType
	default:
		return name + " - " + storeType
	}
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}

	return s
}

// normalize converts a backend record into a canonical pharmacy. Each field
// is defaulted independently; unparsable coordinates are kept as NaN.
func normalize(r *record) Pharmacy {
	p := Pharmacy{
		StoreID:     r.ID,
		Name:        strings.TrimSpace(r.StoreName),
		Description: orDefault(r.Description, DefaultDescription),
		Address:     address(r),
		StoreType:   strings.TrimSpace(r.StoreType),
		Location: spatial.Point{
			Lat: r.Latitude.float(),
			Lng: r.Longitude.float(),
		},
		Phone:   orDefault(r.Phone, DefaultPhone),
		Hours:   hours(r.StartTime, r.EndTime),
		LogoURL: orDefault(r.StoreLogo, PlaceholderLogoURL),
	}

	if r.Rating != nil {
		if rating := r.Rating.float(); !math.IsNaN(rating) {
			p.Rating = rating
		}
	}

	if r.LicenseExpiryDate != "" {
		if t, err := time.Parse(time.DateOnly, clockDate(r.LicenseExpiryDate)); err == nil {
			p.LicenseExpiry = &t
		}
	}

	return p
}

// clockDate keeps the date part of a date or datetime.
func clockDate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > len(time.DateOnly) {
		return s[:len(time.DateOnly)]
	}

	return s
}

// normalizeAll converts every record, keeping the first record of a
// repeated store id, and flattens the medicines into offers annotated with
// their pharmacy. Records without a store id are all kept.
func normalizeAll(records []record) ([]Pharmacy, []MedicineOffer) {
	pharmacies := make([]Pharmacy, 0, len(records))
	seen := make(map[ID]struct{}, len(records))

	var offers []MedicineOffer

	for i := range records {
		r := &records[i]

		if r.ID == 0 {
			log.Printf("Pharmacy %q has no store id", r.StoreName)
		} else if _, dup := seen[r.ID]; dup {
			continue
		} else {
			seen[r.ID] = struct{}{}
		}

		p := normalize(r)

		for _, m := range r.Medicines {
			p.Medicines = append(p.Medicines, MedicineOffer{
				ID:           m.ID,
				BrandName:    m.BrandName,
				GenericName:  m.GenericName,
				Price:        decimal.Decimal(m.Price),
				Stock:        stock(m.Stock),
				StoreID:      p.StoreID,
				PharmacyName: p.Name,
				PharmacyLogo: p.LogoURL,
			})
		}

		offers = append(offers, p.Medicines...)
		pharmacies = append(pharmacies, p)
	}

	return pharmacies, offers
}
