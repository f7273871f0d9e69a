// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatui is the terminal front end for a chat session. Built
// on bubbletea (Elm architecture), it shows the ranked conversation
// sidebar, the active timeline, the typing and presence line, and a
// composer.
//
// Two halves meet through a [Presenter]:
//
//   - The orchestrator calls Presenter methods, often with its own lock
//     held. Each call records the new value in a [Frame] and marks the
//     frame dirty. Nothing blocks and nothing calls back.
//   - The bubbletea [Model] waits for the dirty signal, takes a copy of
//     the frame, and redraws. User actions run as tea.Cmd goroutines
//     against a [Controller], so a slow server never stalls input.
//
// The composer accepts plain text (sent as a message) and slash
// commands for the per-message and per-conversation actions; see
// [ParseCommand].
package chatui
