// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package httputils provides utility functions for working with HTTP.
package httputils

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httputil"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

/////////////////////////////////////////
/// RountTrippers

// LoggingRoundTripper adds a very primitive logging to a http transaction.
type LoggingRoundTripper struct {
	Transport http.RoundTripper
	Writer    io.Writer
	DumpBody  bool
}

var authorizationRegex = regexp.MustCompile(`(?i)^(authorization|x-csrftoken|cookie):.*$`)

// reduce the content the lines, and hide credentials.
func abbreviate(lines []string, prefix rune) []string {
	const maxLines, maxChars = 2048, 512

	for i, line := range lines {
		if i >= maxLines {
			break
		}

		line = authorizationRegex.ReplaceAllStringFunc(line, func(h string) string {
			return h[:strings.IndexByte(h, ':')+1] + " ***"
		})
		lines[i] = fmt.Sprintf("%c %s", prefix, line)
	}

	if len(lines) > maxLines {
		lines = lines[:maxLines]
		lines = append(lines, "…")
	}

	for i, line := range lines {
		if len(line) > maxChars {
			lines[i] = line[0:maxChars] + "…"
		}
	}

	return lines
}

func (t *LoggingRoundTripper) dumpRequest(req *http.Request) error {
	dump, err := httputil.DumpRequestOut(req, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(strings.TrimRight(string(dump), "\r\n"), "\n"), '>')
	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

func (t *LoggingRoundTripper) dumpResponse(resp *http.Response, duration time.Duration) error {
	dump, err := httputil.DumpResponse(resp, t.DumpBody)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines := abbreviate(strings.Split(string(dump), "\n"), '<')

	_, err = fmt.Fprintf(t.Writer, "< RESPONSE: [%v]\n", duration)
	if err != nil {
		return fmt.Errorf("tracing HTTP request: %w", err)
	}

	lines = append(lines, "")
	_, err = fmt.Fprint(t.Writer, strings.Join(lines, "\n"))

	return err
}

// RoundTrip implements the http.RoundTripper interface.
func (t *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Writer == nil {
		return t.Transport.RoundTrip(req)
	}

	if err := t.dumpRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := t.dumpResponse(resp, time.Since(start)); err != nil {
		return nil, err
	}

	return resp, nil
}

// AppendRequestHeadersRoundTripper adds headers to the request.
type AppendRequestHeadersRoundTripper struct {
	Transport http.RoundTripper
	Headers   map[string]string
}

// RoundTrip implements the http.RoundTripper interface.
func (t *AppendRequestHeadersRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.Transport.RoundTrip(req)

	return resp, err
}

// CSRFRoundTripper copies the CSRF cookie issued by a Django backend into
// the header it expects on unsafe methods.
type CSRFRoundTripper struct {
	Transport  http.RoundTripper
	Jar        http.CookieJar
	CookieName string // defaults to csrftoken
	HeaderName string // defaults to X-CSRFToken
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// RoundTrip implements the http.RoundTripper interface.
func (t *CSRFRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Jar == nil || isSafeMethod(req.Method) {
		return t.Transport.RoundTrip(req)
	}

	cookieName, headerName := t.CookieName, t.HeaderName
	if cookieName == "" {
		cookieName = "csrftoken"
	}

	if headerName == "" {
		headerName = "X-CSRFToken"
	}

	for _, cookie := range t.Jar.Cookies(req.URL) {
		if cookie.Name == cookieName {
			req.Header.Set(headerName, cookie.Value)

			break
		}
	}

	return t.Transport.RoundTrip(req)
}

////////////////////////////////////////////////////

// EnforceExpirationCookieJar wraps the standard library cookie jar
// implementation, but enforce expirations dates if missing.
type EnforceExpirationCookieJar struct {
	Target   *cookiejar.Jar
	Duration time.Duration
}

// SetCookies sets the cookies.
func (t *EnforceExpirationCookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	now := time.Now()

	for _, cookie := range cookies {
		if cookie.Expires.IsZero() && cookie.MaxAge == 0 {
			cookie.Expires = now.Add(t.Duration)
		}
	}

	(*t.Target).SetCookies(u, cookies)
}

// Cookies returns the cookies.
func (t *EnforceExpirationCookieJar) Cookies(u *url.URL) []*http.Cookie {
	return (*t.Target).Cookies(u)
}

////////////////////////////////////////////////////

// ClientOptions configures the HTTP client used to talk to the backend.
type ClientOptions struct {
	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Token is sent as a bearer token when not empty
	Token string

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool

	// Timeout for the whole exchange. Zero means the transport defaults.
	Timeout time.Duration

	// Transport overrides the base transport (tests)
	Transport http.RoundTripper
}

// NewClient builds a client with the tracing, header and CSRF round
// trippers stacked on top of a pooled transport.
func NewClient(options *ClientOptions) *http.Client {
	if options == nil {
		options = &ClientOptions{}
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace || options.EnableHTTPBodyTrace {
		httpLogWriter = os.Stderr
	}

	jar, err := cookiejar.New(&cookiejar.Options{})
	if err != nil {
		log.Fatalf("Failed to create cookie jar: %v", err)
	}

	// Django session cookies without an expiration are browser-session
	// cookies; bound them so a long running server refreshes them.
	cookieJar := &EnforceExpirationCookieJar{
		Target:   jar,
		Duration: 30 * time.Minute,
	}

	var transport http.RoundTripper = &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}
	if options.Transport != nil {
		transport = options.Transport
	}

	loggingTransport := &LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	userAgent := "pharmalocator/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headers := map[string]string{
		"User-Agent": userAgent,
		"Accept":     "application/json",
	}
	if options.Token != "" {
		headers["Authorization"] = "Bearer " + options.Token
	}

	headerTransport := &AppendRequestHeadersRoundTripper{
		Headers:   headers,
		Transport: loggingTransport,
	}

	return &http.Client{
		Timeout: options.Timeout,
		Jar:     cookieJar,
		Transport: &CSRFRoundTripper{
			Transport: headerTransport,
			Jar:       cookieJar,
		},
	}
}
