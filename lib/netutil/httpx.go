// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP response helpers shared by the chat
// server client and the push stream.
//
// Every helper bounds its read at MaxResponseSize so a misbehaving
// server cannot exhaust memory. They are for JSON API responses and
// long-poll envelopes, both of which are small.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize is the bound on response body reads: 64 MB. A page
// of history or a push envelope is orders of magnitude smaller.
const MaxResponseSize int64 = 64 << 20

// MaxExcerpt is the longest error body Excerpt keeps.
const MaxExcerpt = 256

// ReadResponse reads a response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a response body (up to MaxResponseSize bytes)
// and JSON-decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}

// ErrorBody reads an error response body and returns an Excerpt of it
// for diagnostic messages. Read errors are ignored; a partial or empty
// body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	return Excerpt(data)
}

// Excerpt trims whitespace from body and truncates it to MaxExcerpt
// bytes, marking the cut with "...".
func Excerpt(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) > MaxExcerpt {
		text = text[:MaxExcerpt] + "..."
	}
	return text
}
