// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package textutils holds small text helpers shared by the CLI, the popups
// and the search log.
package textutils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowerASCIIFolding normalizes a string by removing accents, lowercasing, and trimming spaces.
func LowerASCIIFolding(s string) string {
	s, _, _ = transform.String(
		transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			norm.NFC,
		),
		strings.TrimSpace(strings.ToLower(s)),
	)

	return s
}

// FormatInt formats an integer with commas for human readability.
func FormatInt(n int64) string {
	in := strconv.FormatInt(n, 10)

	numOfDigits := len(in)
	if n < 0 {
		numOfDigits-- // First character is the - sign (not a digit)
	}

	numOfCommas := (numOfDigits - 1) / 3

	out := make([]byte, len(in)+numOfCommas)
	if n < 0 {
		in, out[0] = in[1:], '-'
	}

	for i, j, k := len(in)-1, len(out)-1, 0; ; i, j = i-1, j-1 {
		out[j] = in[i]
		if i == 0 {
			return string(out)
		}

		if k++; k == 3 {
			j, k = j-1, 0
			out[j] = ','
		}
	}
}

// FormatDistance renders a distance in kilometers the way the list shows it:
// meters below one kilometer, one decimal above, and a dash when unknown.
func FormatDistance(km float64) string {
	switch {
	case math.IsNaN(km) || math.IsInf(km, 0):
		return "—"
	case km < 1:
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	default:
		return fmt.Sprintf("%.1f km", km)
	}
}

// Stars renders a 0-5 rating as filled and empty stars, rounding to the
// nearest whole star.
func Stars(rating float64) string {
	if math.IsNaN(rating) {
		rating = 0
	}

	n := int(math.Round(math.Max(0, math.Min(5, rating))))

	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}
