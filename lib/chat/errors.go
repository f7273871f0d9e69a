// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "errors"

// Error taxonomy. Every layer wraps one of these with %w so callers can
// classify failures with errors.Is regardless of where they surfaced.
var (
	// ErrNetworkFailure means a fetch or send did not complete. A failed
	// send is marked on its message and never retried automatically.
	ErrNetworkFailure = errors.New("network failure")

	// ErrStaleResponse means a pull response arrived for a conversation
	// that is no longer active. It is discarded, never surfaced.
	ErrStaleResponse = errors.New("stale response")

	// ErrUnknownReference means an event referenced a message ID the
	// ledger does not hold. Such events are ignored.
	ErrUnknownReference = errors.New("unknown message reference")

	// ErrMalformedPayload means a payload was not the expected shape.
	// The whole batch it arrived in is dropped.
	ErrMalformedPayload = errors.New("malformed payload")
)
