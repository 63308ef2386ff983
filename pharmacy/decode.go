// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package pharmacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UnmarshalJSON accepts numbers and numeric strings.
func (id *ID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*id = 0

		return nil
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", b, err)
	}

	*id = ID(n)

	return nil
}

// number is a float that may arrive as a JSON number or string. Anything
// that does not parse becomes NaN instead of failing the whole response.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case float64:
		*n = number(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			f = math.NaN()
		}

		*n = number(f)
	default:
		*n = number(math.NaN())
	}

	return nil
}

// float returns NaN for a missing value.
func (n *number) float() float64 {
	if n == nil {
		return math.NaN()
	}

	return float64(*n)
}

// price is a decimal that may arrive as a JSON number or string. Anything
// that does not parse becomes zero.
type price decimal.Decimal

func (p *price) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	var raw string

	switch v := v.(type) {
	case float64:
		raw = string(bytes.TrimSpace(b))
	case string:
		raw = strings.TrimSpace(v)
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		d = decimal.Zero
	}

	*p = price(d)

	return nil
}

// stock truncates a fractional count; a missing, negative or unparsable
// count is zero.
func stock(n *number) int {
	f := n.float()
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}

	return int(f)
}

// record is a pharmacy as the backend serializes it.
type record struct {
	ID                ID               `json:"id"`
	StoreName         string           `json:"store_name"`
	Description       string           `json:"description"`
	StoreAddress      string           `json:"store_address"`
	StoreType         string           `json:"store_type"`
	Latitude          *number          `json:"latitude"`
	Longitude         *number          `json:"longitude"`
	Phone             string           `json:"phone"`
	StartTime         string           `json:"start_time"`
	EndTime           string           `json:"end_time"`
	StoreLogo         string           `json:"store_logo"`
	Rating            *number          `json:"rating"`
	LicenseExpiryDate string           `json:"license_expiry_date"`
	Medicines         []medicineRecord `json:"medicines"`
}

type medicineRecord struct {
	ID          ID      `json:"id"`
	BrandName   string  `json:"brand_name"`
	GenericName string  `json:"generic_name"`
	Price       price   `json:"price"`
	Stock       *number `json:"stock"`
}

var errUnexpectedShape = errors.New("unexpected response shape")

// decodeEnvelope resolves the two list shapes the backend uses, a bare
// array or a paginated {"results": [...]} object, into one slice.
func decodeEnvelope(r io.Reader) ([]record, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errUnexpectedShape
	}

	switch raw[0] {
	case '[':
		var records []record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decoding pharmacies: %w", err)
		}

		return records, nil
	case '{':
		var page struct {
			Results *[]record `json:"results"`
		}

		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("decoding pharmacies: %w", err)
		}

		if page.Results == nil {
			return nil, fmt.Errorf("%w: object without results", errUnexpectedShape)
		}

		return *page.Results, nil
	default:
		return nil, fmt.Errorf("%w: %.20s", errUnexpectedShape, raw)
	}
}

// serverMessage extracts the human readable message of an error body.
func serverMessage(body []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	for _, key := range []string{"detail", "message", "error"} {
		if s, ok := payload[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}

	return ""
}
