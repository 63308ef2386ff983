// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

package httputils

import (
	"bytes"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummyRoundTripper records the last request and replies with a canned response.
type dummyRoundTripper struct {
	lastRequest *http.Request
	body        string
}

func (d *dummyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	d.lastRequest = req

	return &http.Response{
		Status:     "200 OK",
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Request:    req,
	}, nil
}

//////////////////////////////////
// Test LoggingRoundTripper

func TestLoggingRoundTripper(t *testing.T) {
	var logBuffer bytes.Buffer

	lt := &LoggingRoundTripper{
		Transport: &dummyRoundTripper{body: "response body"},
		Writer:    &logBuffer,
		DumpBody:  true,
	}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/pharmacies", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret-token")

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)

	logContent := logBuffer.String()
	assert.Contains(t, logContent, "> GET /pharmacies")
	assert.Contains(t, logContent, "< RESPONSE: [")
	assert.Contains(t, logContent, "response body")
	assert.Contains(t, logContent, "Authorization: ***")
	assert.NotContains(t, logContent, "secret-token")
}

func TestLoggingRoundTripperWithoutWriter(t *testing.T) {
	dummy := &dummyRoundTripper{}
	lt := &LoggingRoundTripper{Transport: dummy}

	req, err := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	require.NoError(t, err)

	_, err = lt.RoundTrip(req)
	require.NoError(t, err)
	assert.Same(t, req, dummy.lastRequest)
}

//////////////////////////////////
// Test AppendRequestHeadersRoundTripper

func TestAppendRequestHeadersRoundTripper(t *testing.T) {
	dummy := &dummyRoundTripper{}

	atr := &AppendRequestHeadersRoundTripper{
		Transport: dummy,
		Headers: map[string]string{
			"X-Test-Header": "TestValue",
		},
	}

	req, err := http.NewRequest(http.MethodPost, "http://example.org", nil)
	require.NoError(t, err)
	require.Empty(t, req.Header.Get("X-Test-Header"))

	_, err = atr.RoundTrip(req)
	require.NoError(t, err)
	require.NotNil(t, dummy.lastRequest)
	assert.Equal(t, "TestValue", dummy.lastRequest.Header.Get("X-Test-Header"))
}

//////////////////////////////////
// Test CSRFRoundTripper

func TestCSRFRoundTripper(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	u, _ := url.Parse("http://backend.example/cart/add")
	jar.SetCookies(u, []*http.Cookie{{Name: "csrftoken", Value: "abc123", Path: "/"}})

	dummy := &dummyRoundTripper{}
	rt := &CSRFRoundTripper{Transport: dummy, Jar: jar}

	post, err := http.NewRequest(http.MethodPost, u.String(), nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(post)
	require.NoError(t, err)
	assert.Equal(t, "abc123", dummy.lastRequest.Header.Get("X-CSRFToken"))

	get, err := http.NewRequest(http.MethodGet, u.String(), nil)
	require.NoError(t, err)
	_, err = rt.RoundTrip(get)
	require.NoError(t, err)
	assert.Empty(t, dummy.lastRequest.Header.Get("X-CSRFToken"))
}

//////////////////////////////////
// Test EnforceExpirationCookieJar

func TestEnforceExpirationCookieJar(t *testing.T) {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	ej := &EnforceExpirationCookieJar{Target: jar, Duration: time.Hour}
	u, _ := url.Parse("http://backend.example/")

	cookie := &http.Cookie{Name: "sessionid", Value: "s1", Path: "/"}
	ej.SetCookies(u, []*http.Cookie{cookie})

	assert.False(t, cookie.Expires.IsZero())
	require.Len(t, ej.Cookies(u), 1)
	assert.Equal(t, "s1", ej.Cookies(u)[0].Value)
}

//////////////////////////////////
// Test NewClient

func TestNewClientSendsConfiguredHeaders(t *testing.T) {
	var got http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()

		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(&ClientOptions{UserAgent: "pharmalocator/test", Token: "tok"})

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, "pharmalocator/test", got.Get("User-Agent"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
}
