// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the HTTP client for the chat server's API: the
// pull endpoints that load a conversation's history, message sends and
// per-message actions (edit, delete, star), unread badge counts,
// presence lookups, and conversation settings.
//
// [Client] implements the orchestrator's Backend. It holds the server
// URL, the HTTP transport, and the access token in a [secret.Buffer];
// callers must call Client.Close to release the token.
//
// Server payloads are normalized at this boundary. Messages may spell
// their type as message_type or type and their attachment as media_url
// or media, identifiers may arrive as numbers or strings, and times as
// Unix milliseconds or RFC 3339. [DecodeMessage] and [DecodeBatch]
// produce canonical chat.Message values; a batch with any malformed
// entry is rejected whole with chat.ErrMalformedPayload.
//
// Non-2xx responses, and 2xx responses carrying {"ok": false}, are
// returned as [*APIError] with the server's error code. [IsAPIError]
// tests for a specific code. Every transport failure and APIError
// matches chat.ErrNetworkFailure under errors.Is.
package messaging
