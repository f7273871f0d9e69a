// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// ErrUnknownEvent is returned by DecodeEvent for event names this
// client does not handle. Callers skip such events.
var ErrUnknownEvent = errors.New("messaging: unknown event")

// DecodeEvent converts one push event, by wire name and JSON data, into
// its chat.Event. Events that are well-formed but irrelevant to this
// client (status updates for group messages) decode to (nil, nil).
func DecodeEvent(name string, data []byte, local chat.UserID) (chat.Event, error) {
	event, err := decodeEvent(name, data, local)
	if err != nil && !errors.Is(err, ErrUnknownEvent) && !errors.Is(err, chat.ErrMalformedPayload) {
		err = fmt.Errorf("messaging: %s event: %w: %v", name, chat.ErrMalformedPayload, err)
	}
	return event, err
}

func decodeEvent(name string, data []byte, local chat.UserID) (chat.Event, error) {
	switch name {
	case "new_message", "message_edited":
		var payload struct {
			Type    string          `json:"type"`
			Message json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if len(payload.Message) == 0 {
			return nil, fmt.Errorf("no message")
		}
		msg, err := DecodeMessage(payload.Message, local)
		if err != nil {
			return nil, err
		}
		if payload.Type == string(chat.KindGroup) && !msg.Conversation.IsGroup() {
			return nil, fmt.Errorf("group event for message %s without group_id", msg.ID)
		}
		if name == "message_edited" {
			return chat.MessageEdited{Message: msg}, nil
		}
		return chat.NewMessage{Message: msg}, nil

	case "message_deleted":
		var payload struct {
			Type      string `json:"type"`
			MessageID flexID `json:"message_id"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.MessageID == "" {
			return nil, fmt.Errorf("no message_id")
		}
		kind := chat.KindDirect
		if payload.Type == string(chat.KindGroup) {
			kind = chat.KindGroup
		}
		return chat.MessageDeleted{Conversation: kind, MessageID: chat.ServerID(string(payload.MessageID))}, nil

	case "message_status":
		var payload struct {
			Type        string   `json:"type"`
			Status      string   `json:"status"`
			MessageIDs  []flexID `json:"message_ids"`
			At          flexTime `json:"at"`
			DeliveredAt flexTime `json:"delivered_at"`
			ReadAt      flexTime `json:"read_at"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		// Receipts are only tracked for direct messages.
		if payload.Type != "" && payload.Type != string(chat.KindDirect) {
			return nil, nil
		}
		event := chat.MessageStatus{AtMs: int64(payload.At)}
		switch chat.DeliveryStatus(payload.Status) {
		case chat.StatusDelivered:
			event.Status = chat.StatusDelivered
			if event.AtMs == 0 {
				event.AtMs = int64(payload.DeliveredAt)
			}
		case chat.StatusRead:
			event.Status = chat.StatusRead
			if event.AtMs == 0 {
				event.AtMs = int64(payload.ReadAt)
			}
		default:
			return nil, fmt.Errorf("unknown status %q", payload.Status)
		}
		for _, id := range payload.MessageIDs {
			if id != "" {
				event.MessageIDs = append(event.MessageIDs, chat.ServerID(string(id)))
			}
		}
		if len(event.MessageIDs) == 0 {
			return nil, nil
		}
		return event, nil

	case "typing":
		var payload struct {
			SenderID   flexID `json:"sender_id"`
			GroupID    flexID `json:"group_id"`
			ReceiverID flexID `json:"receiver_id"`
			IsTyping   bool   `json:"is_typing"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.SenderID == "" {
			return nil, fmt.Errorf("no sender_id")
		}
		// A direct typing event belongs to the conversation with its
		// sender.
		conversation := chat.DirectRef(chat.UserID(payload.SenderID))
		if payload.GroupID != "" {
			conversation = chat.GroupRef(string(payload.GroupID))
		}
		return chat.Typing{
			Conversation: conversation,
			SenderID:     chat.UserID(payload.SenderID),
			IsTyping:     payload.IsTyping,
		}, nil

	case "presence_state":
		var payload struct {
			Online []flexID `json:"online_user_ids"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		event := chat.PresenceSnapshot{Online: make([]chat.UserID, 0, len(payload.Online))}
		for _, id := range payload.Online {
			if id != "" {
				event.Online = append(event.Online, chat.UserID(id))
			}
		}
		return event, nil

	case "user_status":
		var payload struct {
			UserID flexID `json:"user_id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		if payload.UserID == "" {
			return nil, fmt.Errorf("no user_id")
		}
		switch payload.Status {
		case "online":
			return chat.PresenceDelta{UserID: chat.UserID(payload.UserID), Online: true}, nil
		case "offline":
			return chat.PresenceDelta{UserID: chat.UserID(payload.UserID), Online: false}, nil
		}
		return nil, fmt.Errorf("unknown status %q", payload.Status)

	case "refresh_unread":
		return chat.RefreshUnread{}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownEvent, name)
}
