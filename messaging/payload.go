// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// wireMessage is a message as the server sends it. The server spells
// some fields two ways (message_type or type, media_url or media) and
// sends identifiers as numbers or strings; normalize resolves all of
// that so nothing past this package branches on field presence.
type wireMessage struct {
	ID           flexID   `json:"id"`
	SenderID     flexID   `json:"sender_id"`
	ReceiverID   flexID   `json:"receiver_id"`
	GroupID      flexID   `json:"group_id"`
	SenderName   string   `json:"sender_name"`
	Content      *string  `json:"content"`
	TimestampMs  flexTime `json:"timestamp_ms"`
	TimestampISO flexTime `json:"timestamp_iso"`
	MessageType  string   `json:"message_type"`
	Type         string   `json:"type"`
	MediaURL     *string  `json:"media_url"`
	Media        *string  `json:"media"`
	MediaMime    *string  `json:"media_mime"`
	IsRead       bool     `json:"is_read"`
	ReplyTo      flexID   `json:"reply_to"`
	DeliveredAt  flexTime `json:"delivered_at"`
	ReadAt       flexTime `json:"read_at"`
	EditedAt     flexTime `json:"edited_at"`
	Starred      bool     `json:"starred"`
}

// flexID is an identifier sent as a JSON number, a string, or null.
// Numbers must be integers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var value string
		if err := json.Unmarshal(data, &value); err != nil {
			return err
		}
		*f = flexID(strings.TrimSpace(value))
		return nil
	default:
		if _, err := strconv.ParseInt(string(data), 10, 64); err != nil {
			return fmt.Errorf("identifier %s is not an integer", data)
		}
		*f = flexID(data)
		return nil
	}
}

// flexTime is a point in time sent as Unix milliseconds (number or
// numeric string), an RFC 3339 string, or null. It holds milliseconds.
type flexTime int64

func (f *flexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*f = 0
			return nil
		}
	}
	ms, err := parseMillis(raw)
	if err != nil {
		return err
	}
	*f = flexTime(ms)
	return nil
}

func parseMillis(raw string) (int64, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ms, nil
	}
	if ms, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(ms), nil
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return 0, fmt.Errorf("time %q is neither milliseconds nor RFC 3339", raw)
	}
	return parsed.UnixMilli(), nil
}

func (w wireMessage) timestampMs() int64 {
	if w.TimestampMs > 0 {
		return int64(w.TimestampMs)
	}
	return int64(w.TimestampISO)
}

// normalize converts a wire message to the canonical shape. The
// conversation is left to the caller.
func (w wireMessage) normalize() (chat.Message, error) {
	if w.ID == "" {
		return chat.Message{}, fmt.Errorf("message has no id")
	}
	if w.SenderID == "" {
		return chat.Message{}, fmt.Errorf("message %s has no sender_id", w.ID)
	}
	timestamp := w.timestampMs()
	if timestamp <= 0 {
		return chat.Message{}, fmt.Errorf("message %s has no timestamp", w.ID)
	}

	rawType := w.MessageType
	if rawType == "" {
		rawType = w.Type
	}
	messageType, err := chat.ParseMessageType(rawType)
	if err != nil {
		return chat.Message{}, fmt.Errorf("message %s: %w", w.ID, err)
	}

	msg := chat.Message{
		ID:            chat.ServerID(string(w.ID)),
		SenderID:      chat.UserID(w.SenderID),
		SenderName:    strings.TrimSpace(w.SenderName),
		Content:       deref(w.Content),
		Type:          messageType,
		MediaURL:      firstNonEmpty(deref(w.MediaURL), deref(w.Media)),
		MediaMime:     deref(w.MediaMime),
		TimestampMs:   timestamp,
		DeliveredAtMs: int64(w.DeliveredAt),
		ReadAtMs:      int64(w.ReadAt),
		EditedAtMs:    int64(w.EditedAt),
		Starred:       w.Starred,
	}
	if w.ReplyTo != "" {
		msg.ReplyToID = string(w.ReplyTo)
	}
	// Older servers only send is_read.
	if w.IsRead && msg.ReadAtMs == 0 {
		msg.ReadAtMs = timestamp
	}
	if msg.ReadAtMs > 0 && msg.DeliveredAtMs == 0 {
		msg.DeliveredAtMs = msg.ReadAtMs
	}
	if messageType == chat.TypeDeleted {
		msg.Tombstone()
	}
	return msg, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

// DecodeMessage decodes a single message payload, as carried by push
// events. local is the signed-in user; it decides which side of a
// direct message is the peer.
func DecodeMessage(data []byte, local chat.UserID) (chat.Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return chat.Message{}, fmt.Errorf("messaging: decoding message: %w: %v", chat.ErrMalformedPayload, err)
	}
	msg, err := wire.normalize()
	if err != nil {
		return chat.Message{}, fmt.Errorf("messaging: %w: %v", chat.ErrMalformedPayload, err)
	}

	switch {
	case wire.GroupID != "":
		msg.Conversation = chat.GroupRef(string(wire.GroupID))
	case msg.SenderID == local && wire.ReceiverID != "":
		msg.Conversation = chat.DirectRef(chat.UserID(wire.ReceiverID))
	case msg.SenderID != local:
		msg.Conversation = chat.DirectRef(msg.SenderID)
	default:
		return chat.Message{}, fmt.Errorf("messaging: %w: message %s has no conversation", chat.ErrMalformedPayload, msg.ID)
	}
	return msg, nil
}

// DecodeBatch decodes a pull response: a JSON array of messages, all
// belonging to conversation. One bad entry rejects the whole batch.
func DecodeBatch(data []byte, conversation chat.ConversationRef) ([]chat.Message, error) {
	var wire []wireMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("messaging: decoding batch for %s: %w: %v", conversation, chat.ErrMalformedPayload, err)
	}
	messages := make([]chat.Message, 0, len(wire))
	for index, entry := range wire {
		msg, err := entry.normalize()
		if err != nil {
			return nil, fmt.Errorf("messaging: batch for %s, entry %d: %w: %v", conversation, index, chat.ErrMalformedPayload, err)
		}
		msg.Conversation = conversation
		messages = append(messages, msg)
	}
	return messages, nil
}
