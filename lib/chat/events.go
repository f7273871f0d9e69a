// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Event is a realtime event delivered by the push channel, already
// normalized. The concrete types below are the complete set.
type Event interface {
	// EventName returns the wire event name, for logs and metrics.
	EventName() string
}

// DeliveryStatus is the status carried by a MessageStatus event.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

// NewMessage announces a message created on the server.
type NewMessage struct {
	Message Message
}

// MessageEdited carries the edited message.
type MessageEdited struct {
	Message Message
}

// MessageDeleted reports a delete-for-everyone by ID.
type MessageDeleted struct {
	Conversation ConversationKind
	MessageID    Identity
}

// MessageStatus reports delivery progression for outbound messages.
type MessageStatus struct {
	MessageIDs []Identity
	Status     DeliveryStatus
	AtMs       int64
}

// Typing reports a peer starting or stopping typing.
type Typing struct {
	Conversation ConversationRef
	SenderID     UserID
	IsTyping     bool
}

// PresenceSnapshot replaces the full online set.
type PresenceSnapshot struct {
	Online []UserID
}

// PresenceDelta changes one user's online state.
type PresenceDelta struct {
	UserID UserID
	Online bool
}

// RefreshUnread asks the client to re-pull unread counts.
type RefreshUnread struct{}

// Connected is emitted by the push channel when a session is
// (re)established.
type Connected struct{}

// Disconnected is emitted when the push channel loses its session.
type Disconnected struct {
	Err error
}

func (NewMessage) EventName() string       { return "new_message" }
func (MessageEdited) EventName() string    { return "message_edited" }
func (MessageDeleted) EventName() string   { return "message_deleted" }
func (MessageStatus) EventName() string    { return "message_status" }
func (Typing) EventName() string           { return "typing" }
func (PresenceSnapshot) EventName() string { return "presence_state" }
func (PresenceDelta) EventName() string    { return "user_status" }
func (RefreshUnread) EventName() string    { return "refresh_unread" }
func (Connected) EventName() string        { return "connected" }
func (Disconnected) EventName() string     { return "disconnected" }
