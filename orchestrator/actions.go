// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ranking"
)

// ErrNoConversation is returned by actions that need an open
// conversation when none is open.
var ErrNoConversation = errors.New("orchestrator: no active conversation")

// Send posts draft to the active conversation optimistically. The
// message appears at once under a local identity and the sidebar is
// bumped to the local clock. On confirmation the local identity is
// swapped for the server's in place and the sidebar takes the server
// timestamp. On failure the message stays visible, marked failed, and
// the returned error wraps chat.ErrNetworkFailure. Failed sends are not
// retried.
func (o *Orchestrator) Send(ctx context.Context, draft chat.Draft) (chat.Message, error) {
	draft.Content = strings.TrimSpace(draft.Content)
	if draft.Content == "" {
		return chat.Message{}, fmt.Errorf("orchestrator: empty message")
	}

	o.mu.Lock()
	session := o.session
	conversation := session.Active
	if conversation.IsZero() {
		o.mu.Unlock()
		return chat.Message{}, ErrNoConversation
	}
	nowMs := clock.UnixMilli(o.clock)
	temp := chat.Message{
		ID:           chat.LocalID(o.nextLocalSeqLocked(nowMs)),
		Conversation: conversation,
		SenderID:     o.local,
		Content:      draft.Content,
		Type:         chat.TypeText,
		TimestampMs:  nowMs,
		ReplyToID:    draft.ReplyToID,
	}
	o.ledger.Ingest(temp)
	o.delivery.Track(temp)
	o.board.Bump(conversation, nowMs)
	o.stopTypingLocked(session)
	o.renderTimelineLocked()
	o.presenter.ScrollToBottom()
	o.renderSidebarLocked()
	o.mu.Unlock()

	confirmed, err := o.backend.SendMessage(ctx, conversation, draft)

	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.metrics.SendFailures.Inc()
		o.ledger.MarkFailed(conversation, temp.ID)
		o.delivery.Forget(temp.ID)
		o.logger.Warn("send failed",
			"conversation", conversation.String(),
			"local_id", temp.ID.String(),
			"error", err,
		)
		if conversation == o.session.Active {
			o.renderTimelineLocked()
		}
		o.presenter.ShowNotice(Notice{Level: NoticeError, Text: "Message not sent"})
		temp.Failed = true
		return temp, fmt.Errorf("orchestrator: sending to %s: %w", conversation, err)
	}

	confirmed.Conversation = conversation
	if confirmed.SenderID == "" {
		confirmed.SenderID = o.local
	}
	o.ledger.ReconcileTemp(conversation, temp.ID, confirmed)
	o.delivery.Rekey(temp.ID, confirmed.ID)
	o.delivery.Track(confirmed)
	if session == o.session {
		session.Cursor.Advance(confirmed)
	}
	if confirmed.TimestampMs > 0 {
		o.board.Correct(conversation, nowMs, confirmed.TimestampMs)
	}
	o.logger.Debug("send confirmed",
		"conversation", conversation.String(),
		"local_id", temp.ID.String(),
		"message_id", confirmed.ID.String(),
	)
	if conversation == o.session.Active {
		o.renderTimelineLocked()
	}
	o.renderSidebarLocked()
	return confirmed, nil
}

// lookupActiveLocked resolves a message of the active conversation.
func (o *Orchestrator) lookupActiveLocked(id chat.Identity) (chat.ConversationRef, chat.Message, error) {
	conversation := o.session.Active
	if conversation.IsZero() {
		return conversation, chat.Message{}, ErrNoConversation
	}
	msg, ok := o.ledger.Get(conversation, id)
	if !ok {
		return conversation, chat.Message{}, fmt.Errorf("orchestrator: message %s: %w", id, chat.ErrUnknownReference)
	}
	if id.IsLocal() {
		return conversation, chat.Message{}, fmt.Errorf("orchestrator: message %s is not confirmed yet", id)
	}
	return conversation, msg, nil
}

// messageAction runs a server call for one message of the active
// conversation and applies apply on success. Failures become an error
// notice.
func (o *Orchestrator) messageAction(ctx context.Context, id chat.Identity, failure string,
	call func(conversation chat.ConversationRef, msg chat.Message) error,
	apply func(conversation chat.ConversationRef, msg chat.Message),
) error {
	o.mu.Lock()
	conversation, msg, err := o.lookupActiveLocked(id)
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if err := call(conversation, msg); err != nil {
		o.mu.Lock()
		o.presenter.ShowNotice(Notice{Level: NoticeError, Text: failure})
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: %s: %w", strings.ToLower(failure), err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	apply(conversation, msg)
	if conversation == o.session.Active {
		o.renderTimelineLocked()
	}
	return nil
}

// Edit replaces the content of one of the user's messages.
func (o *Orchestrator) Edit(ctx context.Context, id chat.Identity, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("orchestrator: empty edit")
	}
	return o.messageAction(ctx, id, "Could not edit message",
		func(conversation chat.ConversationRef, msg chat.Message) error {
			if msg.SenderID != o.local {
				return fmt.Errorf("message %s was sent by %s", id, msg.SenderID)
			}
			return o.backend.EditMessage(ctx, conversation, id, content)
		},
		func(_ chat.ConversationRef, msg chat.Message) {
			msg.Content = content
			msg.EditedAtMs = clock.UnixMilli(o.clock)
			o.ledger.Edit(msg)
		})
}

// DeleteForEveryone deletes a direct message on both sides. The row
// stays in the timeline as a tombstone.
func (o *Orchestrator) DeleteForEveryone(ctx context.Context, id chat.Identity) error {
	return o.messageAction(ctx, id, "Could not delete for everyone",
		func(conversation chat.ConversationRef, _ chat.Message) error {
			if conversation.Kind != chat.KindDirect {
				return fmt.Errorf("delete for everyone is only available in direct conversations")
			}
			return o.backend.DeleteForEveryone(ctx, conversation, id)
		},
		func(conversation chat.ConversationRef, _ chat.Message) {
			o.ledger.Delete(conversation, id)
		})
}

// DeleteForMe hides a message from this user only; it is removed from
// the timeline.
func (o *Orchestrator) DeleteForMe(ctx context.Context, id chat.Identity) error {
	return o.messageAction(ctx, id, "Could not delete message",
		func(conversation chat.ConversationRef, _ chat.Message) error {
			return o.backend.DeleteForMe(ctx, conversation, id)
		},
		func(conversation chat.ConversationRef, _ chat.Message) {
			o.ledger.Remove(conversation, id)
			o.delivery.Forget(id)
		})
}

// ToggleStar flips the starred flag of a message.
func (o *Orchestrator) ToggleStar(ctx context.Context, id chat.Identity) error {
	var starred bool
	return o.messageAction(ctx, id, "Could not star message",
		func(conversation chat.ConversationRef, msg chat.Message) error {
			starred = !msg.Starred
			return o.backend.StarMessage(ctx, conversation, id, starred)
		},
		func(conversation chat.ConversationRef, _ chat.Message) {
			o.ledger.SetStarred(conversation, id, starred)
		})
}

// UpdateSettings pins, archives, or mutes a conversation. The sidebar
// changes only after the server accepts the change.
func (o *Orchestrator) UpdateSettings(ctx context.Context, conversation chat.ConversationRef, change chat.SettingsChange) error {
	if err := o.backend.UpdateSettings(ctx, conversation, change); err != nil {
		o.mu.Lock()
		o.presenter.ShowNotice(Notice{Level: NoticeError, Text: "Could not update conversation"})
		o.mu.Unlock()
		return fmt.Errorf("orchestrator: updating %s: %w", conversation, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	settings := ranking.Settings{
		PinnedRank: change.PinnedRank,
		Unpin:      change.Unpin,
		Archived:   change.Archived,
	}
	if change.MuteFor != nil {
		var until time.Time
		if *change.MuteFor > 0 {
			until = o.clock.Now().Add(*change.MuteFor)
		}
		settings.MutedUntil = &until
	}
	o.board.ApplySettings(conversation, settings)
	o.renderSidebarLocked()
	return nil
}
