// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package geoloc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/jcodagnone/pharmalocator/spatial"
)

const googleGeolocationURL = "https://www.googleapis.com/geolocation/v1/geolocate"

// GoogleGeolocator locates the host through the Google Geolocation API
// (IP based when no radio data is available).
type GoogleGeolocator struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewGoogleGeolocator creates a Google Geolocation provider.
func NewGoogleGeolocator(apiKey string, httpClient *http.Client) *GoogleGeolocator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &GoogleGeolocator{
		apiKey:     apiKey,
		endpoint:   googleGeolocationURL,
		httpClient: httpClient,
	}
}

type googleGeolocationRequest struct {
	ConsiderIP bool `json:"considerIp"`
}

type googleGeolocationResponse struct {
	Location *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
	Accuracy float64 `json:"accuracy"` // meters
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// CurrentPosition implements Provider.
func (g *GoogleGeolocator) CurrentPosition(ctx context.Context, _ PositionOptions) (spatial.Point, error) {
	if g.apiKey == "" {
		return spatial.Point{}, &PositionError{Code: ReasonUnsupported, Message: "no API key configured"}
	}

	body, err := json.Marshal(googleGeolocationRequest{ConsiderIP: true})
	if err != nil {
		return spatial.Point{}, err
	}

	reqURL := g.endpoint + "?" + url.Values{"key": []string{g.apiKey}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return spatial.Point{}, err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return spatial.Point{}, &PositionError{Code: ReasonTimeout, Message: "geolocation request timed out", Err: err}
		}

		return spatial.Point{}, &PositionError{Code: ReasonPositionUnavailable, Message: "geolocation request failed", Err: err}
	}
	defer resp.Body.Close()

	var gResp googleGeolocationResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil && resp.StatusCode == http.StatusOK {
		return spatial.Point{}, &PositionError{Code: ReasonPositionUnavailable, Message: "decoding response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		posErr := ClassifyHTTPError(resp.StatusCode)
		if gResp.Error != nil && gResp.Error.Message != "" {
			posErr.Message = gResp.Error.Message
		}

		return spatial.Point{}, posErr
	}

	if gResp.Location == nil || gResp.Location.Lat == nil || gResp.Location.Lng == nil {
		return spatial.Point{}, &PositionError{Code: ReasonPositionUnavailable, Message: "response without location"}
	}

	return spatial.Point{Lat: *gResp.Location.Lat, Lng: *gResp.Location.Lng}, nil
}

// ClassifyHTTPError maps a geolocation service status to a position error.
func ClassifyHTTPError(statusCode int) *PositionError {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &PositionError{
			Code:    ReasonPermissionDenied,
			Message: "geolocation access denied",
		}
	case http.StatusTooManyRequests:
		return &PositionError{
			Code:    ReasonPositionUnavailable,
			Message: "geolocation rate limit reached",
		}
	case http.StatusNotFound:
		return &PositionError{
			Code:    ReasonPositionUnavailable,
			Message: "no location found",
		}
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return &PositionError{
			Code:    ReasonTimeout,
			Message: fmt.Sprintf("geolocation service timed out (code %d)", statusCode),
		}
	default:
		return &PositionError{
			Code:    ReasonPositionUnavailable,
			Message: fmt.Sprintf("geolocation HTTP error %d", statusCode),
		}
	}
}
