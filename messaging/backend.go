// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
)

// FetchMessages pulls messages newer than the request cursor. Direct
// pulls are bounded by both the timestamp and the ID watermark; group
// pulls only by ID.
func (c *Client) FetchMessages(ctx context.Context, request chat.FetchRequest) ([]chat.Message, error) {
	conversation := request.Conversation
	query := url.Values{}
	lastID := request.Cursor.LastMessageID
	if lastID == "" {
		lastID = "0"
	}
	query.Set("last_id", lastID)
	if request.Limit > 0 {
		query.Set("limit", strconv.Itoa(request.Limit))
	}

	var path string
	switch conversation.Kind {
	case chat.KindDirect:
		path = "/get_messages/" + url.PathEscape(conversation.ID)
		if request.Cursor.LastTimestampMs > 0 {
			query.Set("since", strconv.FormatInt(request.Cursor.LastTimestampMs, 10))
		}
	case chat.KindGroup:
		path = "/get_group_messages/" + url.PathEscape(conversation.ID)
	default:
		return nil, fmt.Errorf("messaging: cannot fetch from conversation %q", conversation)
	}

	body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: fetching %s: %w", conversation, err)
	}
	return DecodeBatch(body, conversation)
}

// SendMessage posts a text message and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, conversation chat.ConversationRef, draft chat.Draft) (chat.Message, error) {
	form := url.Values{}
	form.Set("content", draft.Content)
	if draft.ReplyToID != "" {
		form.Set("reply_to", draft.ReplyToID)
	}

	var path string
	switch conversation.Kind {
	case chat.KindDirect:
		path = "/send_message"
		form.Set("receiver_id", conversation.ID)
	case chat.KindGroup:
		path = "/send_group_message"
		form.Set("group_id", conversation.ID)
	default:
		return chat.Message{}, fmt.Errorf("messaging: cannot send to conversation %q", conversation)
	}

	body, err := c.doRequest(ctx, http.MethodPost, path, formBody(form), nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("messaging: sending to %s: %w", conversation, err)
	}

	var response struct {
		Status  string          `json:"status"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &response); err != nil || len(response.Message) == 0 {
		return chat.Message{}, fmt.Errorf("messaging: %w: send response for %s has no message", chat.ErrMalformedPayload, conversation)
	}
	var wire wireMessage
	if err := json.Unmarshal(response.Message, &wire); err != nil {
		return chat.Message{}, fmt.Errorf("messaging: %w: send response for %s: %v", chat.ErrMalformedPayload, conversation, err)
	}
	msg, err := wire.normalize()
	if err != nil {
		return chat.Message{}, fmt.Errorf("messaging: %w: send response for %s: %v", chat.ErrMalformedPayload, conversation, err)
	}
	msg.Conversation = conversation
	return msg, nil
}

// messagePath returns the API path of one message in a conversation.
// Direct and group messages live in separate collections.
func messagePath(conversation chat.ConversationRef, id chat.Identity) (string, error) {
	if id.IsLocal() || id.IsZero() {
		return "", fmt.Errorf("messaging: message %s has no server identity", id)
	}
	switch conversation.Kind {
	case chat.KindDirect:
		return "/api/messages/" + url.PathEscape(id.Value), nil
	case chat.KindGroup:
		return "/api/group_messages/" + url.PathEscape(id.Value), nil
	}
	return "", fmt.Errorf("messaging: unknown conversation kind %q", conversation.Kind)
}

// EditMessage replaces the content of one of the local user's messages.
func (c *Client) EditMessage(ctx context.Context, conversation chat.ConversationRef, id chat.Identity, content string) error {
	path, err := messagePath(conversation, id)
	if err != nil {
		return err
	}
	body, err := jsonBody(map[string]string{"content": content})
	if err != nil {
		return err
	}
	if err := c.postOK(ctx, path+"/edit", body); err != nil {
		return fmt.Errorf("messaging: editing %s: %w", id, err)
	}
	return nil
}

// DeleteForEveryone deletes a direct message for both participants.
// Groups have no server-side delete-for-everyone.
func (c *Client) DeleteForEveryone(ctx context.Context, conversation chat.ConversationRef, id chat.Identity) error {
	if conversation.IsGroup() {
		return fmt.Errorf("messaging: delete for everyone is only available in direct conversations")
	}
	path, err := messagePath(conversation, id)
	if err != nil {
		return err
	}
	if err := c.postOK(ctx, path+"/delete_for_all", nil); err != nil {
		return fmt.Errorf("messaging: deleting %s for everyone: %w", id, err)
	}
	return nil
}

// DeleteForMe hides a message from the local user only.
func (c *Client) DeleteForMe(ctx context.Context, conversation chat.ConversationRef, id chat.Identity) error {
	path, err := messagePath(conversation, id)
	if err != nil {
		return err
	}
	if err := c.postOK(ctx, path+"/delete_for_me", nil); err != nil {
		return fmt.Errorf("messaging: deleting %s: %w", id, err)
	}
	return nil
}

// StarMessage sets or clears the star on a message.
func (c *Client) StarMessage(ctx context.Context, conversation chat.ConversationRef, id chat.Identity, starred bool) error {
	path, err := messagePath(conversation, id)
	if err != nil {
		return err
	}
	body, err := jsonBody(map[string]bool{"enable": starred})
	if err != nil {
		return err
	}
	if err := c.postOK(ctx, path+"/star", body); err != nil {
		return fmt.Errorf("messaging: starring %s: %w", id, err)
	}
	return nil
}

// unreadCountsResponse is the /api/unread_counts body. Map keys are
// user and group IDs as JSON object keys.
type unreadCountsResponse struct {
	OK      bool           `json:"ok"`
	Users   map[string]int `json:"users"`
	Groups  map[string]int `json:"groups"`
	Invites int            `json:"invites"`
	LastTS  struct {
		Users  map[string]flexTime `json:"users"`
		Groups map[string]flexTime `json:"groups"`
	} `json:"last_ts"`
}

// UnreadCounts fetches per-conversation unread counts, pending invites,
// and the latest activity time of each conversation. The server answers
// an expired login with ok:false and status 200; that is reported as
// ErrCodeUnauthorized.
func (c *Client) UnreadCounts(ctx context.Context) (ranking.UnreadCounts, error) {
	var response unreadCountsResponse
	if err := c.getJSON(ctx, "/api/unread_counts", nil, &response); err != nil {
		return ranking.UnreadCounts{}, fmt.Errorf("messaging: unread counts: %w", err)
	}
	if !response.OK {
		return ranking.UnreadCounts{}, fmt.Errorf("messaging: unread counts: %w",
			&APIError{StatusCode: http.StatusOK, Code: ErrCodeUnauthorized})
	}

	counts := ranking.UnreadCounts{
		PerUser:              make(map[chat.UserID]int, len(response.Users)),
		PerGroup:             make(map[string]int, len(response.Groups)),
		LastActivityPerUser:  make(map[chat.UserID]int64, len(response.LastTS.Users)),
		LastActivityPerGroup: make(map[string]int64, len(response.LastTS.Groups)),
		Invites:              response.Invites,
	}
	for user, unread := range response.Users {
		counts.PerUser[chat.UserID(user)] = unread
	}
	for group, unread := range response.Groups {
		counts.PerGroup[group] = unread
	}
	for user, lastMs := range response.LastTS.Users {
		if lastMs > 0 {
			counts.LastActivityPerUser[chat.UserID(user)] = int64(lastMs)
		}
	}
	for group, lastMs := range response.LastTS.Groups {
		if lastMs > 0 {
			counts.LastActivityPerGroup[group] = int64(lastMs)
		}
	}
	return counts, nil
}

// LastSeen looks up one user's presence. It implements presence.Lookup.
func (c *Client) LastSeen(ctx context.Context, user chat.UserID) (presence.Status, error) {
	var response struct {
		OK       bool     `json:"ok"`
		Online   bool     `json:"online"`
		LastSeen flexTime `json:"last_seen"`
	}
	path := "/api/users/" + url.PathEscape(string(user)) + "/presence"
	if err := c.getJSON(ctx, path, nil, &response); err != nil {
		return presence.Status{}, fmt.Errorf("messaging: presence of %s: %w", user, err)
	}
	if !response.OK {
		return presence.Status{}, fmt.Errorf("messaging: presence of %s: %w",
			user, &APIError{StatusCode: http.StatusOK, Code: ErrCodeNotFound})
	}

	status := presence.Status{Online: response.Online}
	if response.LastSeen > 0 {
		status.LastSeen = time.UnixMilli(int64(response.LastSeen))
	}
	return status, nil
}

// UpdateSettings applies a pin, archive, or mute change. The server
// takes mute as a duration in seconds from now, null to unmute.
func (c *Client) UpdateSettings(ctx context.Context, conversation chat.ConversationRef, change chat.SettingsChange) error {
	payload := map[string]any{}
	switch {
	case change.Unpin:
		payload["pinned_rank"] = nil
	case change.PinnedRank != nil:
		payload["pinned_rank"] = *change.PinnedRank
	}
	if change.Archived != nil {
		payload["is_archived"] = *change.Archived
	}
	if change.MuteFor != nil {
		if seconds := int64(change.MuteFor.Seconds()); seconds > 0 {
			payload["muted_until"] = seconds
		} else {
			payload["muted_until"] = nil
		}
	}
	if len(payload) == 0 {
		return nil
	}

	body, err := jsonBody(payload)
	if err != nil {
		return err
	}
	path := "/api/conversations/" + url.PathEscape(string(conversation.Kind)) + "/" + url.PathEscape(conversation.ID) + "/settings"
	if err := c.postOK(ctx, path, body); err != nil {
		return fmt.Errorf("messaging: updating settings of %s: %w", conversation, err)
	}
	return nil
}
