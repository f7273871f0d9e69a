// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat defines the canonical shapes the sync core works on:
// conversation references, message identities, messages, realtime
// events, and the error taxonomy shared by every layer.
//
// Wire payloads are normalized into these types at the boundary (see
// package messaging and package transport). Nothing past that boundary
// branches on which JSON field a server happened to send.
package chat
