// Copyright 2025 The PharmaLocator Authors
// SPDX-License-Identifier: Apache-2.0

// Package htmlutils provides utility functions for working with HTML and
// the bodies of HTTP responses.
package htmlutils

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Validates that response seems to be a JSON response.
func hasJSONContentType(media string) bool {
	mediaType, _, err := mime.ParseMediaType(media)
	if err != nil {
		return false
	}

	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// AsReader converts an HTTP response body to an io.Reader with the correct
// charset. The body must be JSON; the status code is left to the caller.
func AsReader(resp *http.Response) (io.Reader, error) {
	media := resp.Header.Get("Content-Type")
	if !hasJSONContentType(media) {
		return nil, fmt.Errorf("media type is %q", media)
	}

	rr, err := charset.NewReader(resp.Body, media)
	if err != nil {
		return nil, err
	}

	return rr, nil
}

// PlainText extracts the visible text of an HTML fragment, collapsing
// whitespace. Rich-text fields edited in the admin dashboards carry markup.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}

	var sb strings.Builder

	z := html.NewTokenizer(strings.NewReader(fragment))

	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(sb.String()), " ")
		case html.TextToken:
			sb.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			// Block elements separate words.
			sb.WriteByte(' ')
		}
	}
}
