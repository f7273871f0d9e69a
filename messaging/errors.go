// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// APIError is an error response from the chat server. The server
// reports failures as {"ok": false, "error": "<code>"}, sometimes with
// a 2xx status. Callers can use errors.As to extract it:
//
//	var apiErr *APIError
//	if errors.As(err, &apiErr) {
//	    if apiErr.Code == ErrCodeForbidden { ... }
//	}
//
// Every APIError also matches chat.ErrNetworkFailure under errors.Is:
// the request did not complete as asked.
type APIError struct {
	// Code is the server's error code (e.g., "forbidden", "not_found").
	// Empty when the response body was not the server's JSON shape.
	Code string `json:"error"`

	// Message is a human-readable description, or an excerpt of a
	// non-JSON body.
	Message string `json:"message"`

	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *APIError) Error() string {
	switch {
	case e.Code == "":
		return fmt.Sprintf("chat server: unexpected %d response: %s", e.StatusCode, e.Message)
	case e.Message == "":
		return fmt.Sprintf("chat server: %s (%d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("chat server: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return chat.ErrNetworkFailure
}

// Error codes the server is known to send.
const (
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeEmpty        = "empty"
	ErrCodeInvalid      = "invalid"
)

// IsAPIError checks whether err is an *APIError with the given code.
func IsAPIError(err error, code string) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
