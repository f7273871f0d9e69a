// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package delivery tracks the Sent → Delivered → Read progression of
// outbound direct messages.
package delivery

import "github.com/bureau-foundation/chatsync/lib/chat"

// State is the delivery state of one outbound message. States only move
// forward.
type State uint8

const (
	Unknown State = iota
	Sent
	Delivered
	Read
)

func (s State) String() string {
	switch s {
	case Sent:
		return "sent"
	case Delivered:
		return "delivered"
	case Read:
		return "read"
	default:
		return "unknown"
	}
}

// StateOf derives the state recorded on a message.
func StateOf(msg chat.Message) State {
	switch {
	case msg.ReadAtMs > 0:
		return Read
	case msg.DeliveredAtMs > 0:
		return Delivered
	default:
		return Sent
	}
}

// Tracker holds the delivery state of messages sent by the local user
// in direct conversations. Inbound and group messages are never
// tracked, so status events for them fall through as unknown.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	local  chat.UserID
	states map[chat.Identity]State
}

// NewTracker returns a Tracker for messages sent by local.
func NewTracker(local chat.UserID) *Tracker {
	return &Tracker{local: local, states: make(map[chat.Identity]State)}
}

// Track starts tracking msg if it is an outbound direct message. A
// message that is already tracked only moves forward.
func (t *Tracker) Track(msg chat.Message) {
	if msg.SenderID != t.local || msg.Conversation.Kind != chat.KindDirect {
		return
	}
	state := StateOf(msg)
	if state > t.states[msg.ID] {
		t.states[msg.ID] = state
	}
}

// Apply advances id to status. It returns the resulting state and
// whether anything changed. Unknown IDs and backwards moves are no-ops.
func (t *Tracker) Apply(id chat.Identity, status chat.DeliveryStatus) (State, bool) {
	current, ok := t.states[id]
	if !ok {
		return Unknown, false
	}
	var target State
	switch status {
	case chat.StatusDelivered:
		target = Delivered
	case chat.StatusRead:
		target = Read
	default:
		return current, false
	}
	if target <= current {
		return current, false
	}
	t.states[id] = target
	return target, true
}

// State returns the tracked state of id, or Unknown.
func (t *Tracker) State(id chat.Identity) State { return t.states[id] }

// Rekey moves the state tracked under a local identity to the server
// identity that replaced it.
func (t *Tracker) Rekey(local, server chat.Identity) {
	state, ok := t.states[local]
	if !ok {
		return
	}
	delete(t.states, local)
	if state > t.states[server] {
		t.states[server] = state
	}
}

// Forget stops tracking id.
func (t *Tracker) Forget(id chat.Identity) { delete(t.states, id) }

// Len returns the number of tracked messages.
func (t *Tracker) Len() int { return len(t.states) }
