// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import "encoding/json"

// Envelope is one long-poll response: the events since the request's
// token, and the token to resume from.
type Envelope struct {
	Next   string     `json:"next"`
	Events []RawEvent `json:"events"`
}

// RawEvent is one event as the server sent it. Data is decoded by
// messaging.DecodeEvent.
type RawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
