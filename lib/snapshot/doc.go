// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package snapshot saves and restores client session metadata between
// runs: the sidebar summaries and invite count, the open conversation,
// and the last-seen cache. Message history is never stored; the client
// re-pulls it on start.
//
// A snapshot file is a short binary header followed by a CBOR body:
//
//	magic "CHSN" | format version (1 byte) | compression (1 byte) |
//	body length (uint32, big endian) | BLAKE3 checksum of body (32 bytes) |
//	compressed body
//
// The body is compressed with zstd by default, LZ4 when speed matters,
// or left as is when compression does not help. The checksum covers
// the uncompressed body so corruption is detected regardless of the
// compression in use.
//
// Snapshots can be sealed to one or more age X25519 recipients. A
// sealed file is the age encryption of the whole unsealed file; Decode
// recognizes it by the age header and needs a matching identity.
package snapshot
