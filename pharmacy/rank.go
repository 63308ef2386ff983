// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"cmp"
	"math"
	"slices"

	"github.com/jcodagnone/pharmalocator/spatial"
)

// Rank computes the distance from origin to every pharmacy and sorts them
// nearest first. Equal distances keep their fetch order; unknown (NaN)
// distances go last, also in fetch order. The input is not modified.
func Rank(origin spatial.Point, pharmacies []Pharmacy) []RankedPharmacy {
	ranked := make([]RankedPharmacy, len(pharmacies))
	for i, p := range pharmacies {
		ranked[i] = RankedPharmacy{
			Pharmacy:   p,
			DistanceKm: origin.DistanceKm(p.Location),
		}
	}

	slices.SortStableFunc(ranked, func(a, b RankedPharmacy) int {
		aNaN, bNaN := math.IsNaN(a.DistanceKm), math.IsNaN(b.DistanceKm)

		switch {
		case aNaN && bNaN:
			return 0
		case aNaN:
			return 1
		case bNaN:
			return -1
		default:
			return cmp.Compare(a.DistanceKm, b.DistanceKm)
		}
	})

	return ranked
}

// Find returns the ranked pharmacy with the given store id.
func Find(ranked []RankedPharmacy, id ID) (RankedPharmacy, bool) {
	i := slices.IndexFunc(ranked, func(r RankedPharmacy) bool { return r.StoreID == id })
	if i < 0 {
		return RankedPharmacy{}, false
	}

	return ranked[i], true
}
