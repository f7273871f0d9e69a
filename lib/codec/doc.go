// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides chatsync's standard CBOR encoding
// configuration.
//
// chatsync uses two serialization formats with a clear boundary:
//
//   - JSON for the chat server's HTTP API and push envelopes.
//   - CBOR for what the client writes to disk: session snapshots and
//     recorded push traces.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same session state always produces identical snapshot bytes, which
// keeps snapshot checksums stable.
//
// For buffer-oriented operations (snapshots):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For CBOR sequences (traces):
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types stored on disk carry `cbor` struct tags. Domain types that
// implement encoding.TextMarshaler encode as CBOR text strings.
package codec
