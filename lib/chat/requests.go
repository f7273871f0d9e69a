// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"strconv"
	"time"
)

// Cursor is the pull watermark of the active conversation: the highest
// server message ID and the newest timestamp ingested so far. The two
// advance independently, each only upwards.
type Cursor struct {
	LastMessageID   string
	LastTimestampMs int64
}

// IsZero reports whether nothing has been ingested yet, which makes the
// next pull an initial load.
func (c Cursor) IsZero() bool { return c.LastMessageID == "" && c.LastTimestampMs == 0 }

// Advance moves the cursor past msg. Local identities are ignored: the
// server has never seen them.
func (c *Cursor) Advance(msg Message) {
	if msg.ID.Kind == ServerIdentity && idGreater(msg.ID.Value, c.LastMessageID) {
		c.LastMessageID = msg.ID.Value
	}
	if msg.TimestampMs > c.LastTimestampMs {
		c.LastTimestampMs = msg.TimestampMs
	}
}

func idGreater(candidate, current string) bool {
	if current == "" {
		return candidate != ""
	}
	left, leftErr := strconv.ParseInt(candidate, 10, 64)
	right, rightErr := strconv.ParseInt(current, 10, 64)
	if leftErr == nil && rightErr == nil {
		return left > right
	}
	return candidate > current
}

// FetchRequest asks the backend for messages newer than Cursor. Limit
// zero leaves the page size to the server.
type FetchRequest struct {
	Conversation ConversationRef
	Cursor       Cursor
	Limit        int
}

// Draft is the user's input for a new message.
type Draft struct {
	Content   string
	ReplyToID string
}

// SettingsChange is a pin, archive, or mute action on a conversation.
// Nil fields are left alone.
type SettingsChange struct {
	PinnedRank *int
	Unpin      bool
	Archived   *bool

	// MuteFor mutes for the given duration; zero unmutes.
	MuteFor *time.Duration
}
