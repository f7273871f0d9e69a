// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
)

// State is the sync state of the active conversation.
type State int

const (
	// Idle means no conversation is open.
	Idle State = iota
	// Loading means a pull is in flight.
	Loading
	// Synced means the last pull completed.
	Synced
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Synced:
		return "synced"
	default:
		return "idle"
	}
}

// SyncSession is everything tied to the currently open conversation.
// Switching conversations replaces the session wholesale; a pull or
// send that finds a different session when it completes knows its
// result is stale.
type SyncSession struct {
	// Generation increases with every switch. Logged with stale
	// discards.
	Generation uint64

	Active chat.ConversationRef
	Cursor chat.Cursor
	State  State

	// loading is set while a pull for this session is in flight, so
	// overlapping refreshes do not stack.
	loading bool

	// painted is set once the first pull has been drawn. Alerts never
	// fire for the first paint.
	painted bool

	// suppressSound stays set from the switch until SettleWindow after
	// the first paint.
	suppressSound bool
	settleTimer   *clock.Timer

	// renderedDigest is the ledger digest of the window last drawn.
	// A render that would draw the same window is skipped.
	renderedDigest [32]byte
	rendered       bool

	// typingSent records that a typing-start intent is outstanding.
	typingSent  bool
	typingTimer *clock.Timer
}

func newSession(generation uint64, active chat.ConversationRef) *SyncSession {
	state := Idle
	if !active.IsZero() {
		state = Loading
	}
	return &SyncSession{
		Generation:    generation,
		Active:        active,
		State:         state,
		suppressSound: true,
	}
}

// stopTimers cancels the session's timers. The orchestrator calls it
// when the session is replaced or closed.
func (s *SyncSession) stopTimers() {
	s.settleTimer.Stop()
	s.settleTimer = nil
	s.typingTimer.Stop()
	s.typingTimer = nil
}
