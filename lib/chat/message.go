// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "fmt"

// MessageType is the canonical message kind.
type MessageType string

// Message types, spelled as they appear on the wire.
const (
	TypeText    MessageType = "text"
	TypeImage   MessageType = "image"
	TypeAudio   MessageType = "audio"
	TypeVideo   MessageType = "video"
	TypeFile    MessageType = "file"
	TypeSystem  MessageType = "system"
	TypeDeleted MessageType = "deleted"
)

// ParseMessageType maps a wire type name to a MessageType. The empty
// string means text, matching servers that omit the field for plain
// messages.
func ParseMessageType(raw string) (MessageType, error) {
	switch MessageType(raw) {
	case "":
		return TypeText, nil
	case TypeText, TypeImage, TypeAudio, TypeVideo, TypeFile, TypeSystem, TypeDeleted:
		return MessageType(raw), nil
	}
	return "", fmt.Errorf("%w: unknown message type %q", ErrMalformedPayload, raw)
}

// Message is the canonical message shape held by the ledger.
type Message struct {
	ID           Identity
	Conversation ConversationRef
	SenderID     UserID
	SenderName   string
	Content      string
	Type         MessageType
	MediaURL     string
	MediaMime    string
	TimestampMs  int64
	ReplyToID    string

	// Zero means the event has not been observed.
	DeliveredAtMs int64
	ReadAtMs      int64
	EditedAtMs    int64

	Starred bool

	// Failed marks an optimistic send the server rejected. Terminal.
	Failed bool
}

// Compare orders messages within a conversation by (TimestampMs, ID).
func (m *Message) Compare(other *Message) int {
	switch {
	case m.TimestampMs < other.TimestampMs:
		return -1
	case m.TimestampMs > other.TimestampMs:
		return 1
	}
	return m.ID.Compare(other.ID)
}

// IsNewerRevisionOf reports whether m carries an edit or delete that
// existing has not seen yet.
func (m *Message) IsNewerRevisionOf(existing *Message) bool {
	if m.Type == TypeDeleted && existing.Type != TypeDeleted {
		return true
	}
	return m.EditedAtMs > existing.EditedAtMs
}

// Tombstone clears the mutable content of a deleted message. The row
// keeps its identity, sender, and position.
func (m *Message) Tombstone() {
	m.Type = TypeDeleted
	m.Content = ""
	m.MediaURL = ""
	m.MediaMime = ""
}
