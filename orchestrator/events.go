// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/delivery"
	"github.com/bureau-foundation/chatsync/lib/ledger"
)

// followup is work an event handler needs done after the lock is
// released, typically a network call.
type followup func(ctx context.Context)

// HandleEvent applies one realtime event. It implements EventHandler.
// Follow-up network work (badge refresh, presence lookup, re-pull) runs
// before HandleEvent returns, so a source that emits synchronously sees
// the full effect of each event.
func (o *Orchestrator) HandleEvent(ctx context.Context, event chat.Event) {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	var followups []followup
	switch typed := event.(type) {
	case chat.NewMessage:
		followups = o.onNewMessageLocked(typed.Message)
	case chat.MessageEdited:
		o.onEditedLocked(typed.Message)
	case chat.MessageDeleted:
		o.onDeletedLocked(typed)
	case chat.MessageStatus:
		o.onStatusLocked(typed)
	case chat.Typing:
		// The tracker has its own lock and renders through the presenter.
		followups = append(followups, func(context.Context) {
			o.presence.OnTyping(typed.Conversation, typed.SenderID, typed.IsTyping)
		})
	case chat.PresenceSnapshot:
		for _, user := range o.presence.ApplySnapshot(typed.Online) {
			o.presenter.RenderPresence(user, false)
		}
		for _, user := range typed.Online {
			o.presenter.RenderPresence(user, true)
		}
		o.metrics.OnlineUsers.Set(float64(o.presence.OnlineCount()))
		followups = append(followups, o.refreshPeerStatus)
	case chat.PresenceDelta:
		o.presence.ApplyDelta(typed.UserID, typed.Online)
		o.presenter.RenderPresence(typed.UserID, typed.Online)
		o.metrics.OnlineUsers.Set(float64(o.presence.OnlineCount()))
		if o.session.Active == chat.DirectRef(typed.UserID) {
			followups = append(followups, o.refreshPeerStatus)
		}
	case chat.RefreshUnread:
		followups = append(followups, o.refreshBadgesLimited)
	case chat.Connected:
		o.onConnectedLocked()
		followups = append(followups, func(ctx context.Context) {
			if err := o.Load(ctx); err != nil {
				o.logger.Warn("re-pull after reconnect failed", "error", err)
			}
		})
	case chat.Disconnected:
		o.logger.Info("realtime channel disconnected", "error", typed.Err)
		followups = append(followups, func(context.Context) { o.presence.ClearTyping() })
	default:
		o.logger.Warn("ignoring unknown event", "event", event.EventName())
	}
	o.mu.Unlock()

	for _, run := range followups {
		run(ctx)
	}
}

func (o *Orchestrator) onNewMessageLocked(msg chat.Message) []followup {
	// Our own messages come back through send confirmation.
	if msg.SenderID == o.local {
		return nil
	}
	session := o.session

	if msg.Conversation != session.Active {
		o.board.Bump(msg.Conversation, msg.TimestampMs)
		o.board.IncrementUnread(msg.Conversation)
		o.renderSidebarLocked()
		o.notifyLocked(msg)
		o.metrics.Ingested.WithLabelValues("push", "background").Inc()
		return []followup{o.refreshBadgesLimited}
	}

	distance := o.presenter.DistanceFromBottom()
	result := o.ledger.Ingest(msg)
	o.metrics.Ingested.WithLabelValues("push", result.String()).Inc()
	if result != ledger.Inserted {
		if result == ledger.Updated {
			o.renderTimelineLocked()
		}
		return nil
	}

	session.Cursor.Advance(msg)
	o.board.Bump(msg.Conversation, msg.TimestampMs)
	o.renderTimelineLocked()
	if distance <= o.stickToBottom {
		o.presenter.ScrollToBottom()
	}
	o.renderSidebarLocked()
	if session.painted && !session.suppressSound && !o.mutedLocked(msg.Conversation) {
		o.presenter.PlayAlert()
	}
	o.notifyLocked(msg)

	return []followup{func(context.Context) { o.presence.ClearTyping() }}
}

func (o *Orchestrator) onEditedLocked(msg chat.Message) {
	if !o.ledger.Edit(msg) {
		o.logger.Debug("ignoring edit of unknown message", "message_id", msg.ID.String())
		return
	}
	if msg.Conversation == o.session.Active {
		o.renderTimelineLocked()
	}
}

func (o *Orchestrator) onDeletedLocked(event chat.MessageDeleted) {
	conversation, ok := o.ledger.Find(event.Conversation, event.MessageID)
	if !ok || !o.ledger.Delete(conversation, event.MessageID) {
		o.logger.Debug("ignoring delete of unknown message", "message_id", event.MessageID.String())
		return
	}
	if conversation == o.session.Active {
		o.renderTimelineLocked()
	}
}

func (o *Orchestrator) onStatusLocked(event chat.MessageStatus) {
	atMs := event.AtMs
	if atMs <= 0 {
		atMs = clock.UnixMilli(o.clock)
	}
	rerender := false
	for _, id := range event.MessageIDs {
		state, changed := o.delivery.Apply(id, event.Status)
		if !changed {
			continue
		}
		conversation, ok := o.ledger.Find(chat.KindDirect, id)
		if !ok {
			continue
		}
		switch state {
		case delivery.Read:
			o.ledger.SetDelivery(conversation, id, 0, atMs)
		case delivery.Delivered:
			o.ledger.SetDelivery(conversation, id, atMs, 0)
		}
		if conversation == o.session.Active {
			rerender = true
		}
	}
	if rerender {
		o.renderTimelineLocked()
	}
}

// onConnectedLocked re-joins every group channel the sidebar knows
// about; the server forgets joins when a session drops.
func (o *Orchestrator) onConnectedLocked() {
	for _, conversation := range o.board.Refs() {
		if conversation.IsGroup() {
			o.intents.JoinConversation(conversation)
		}
	}
	if active := o.session.Active; active.IsGroup() {
		if _, known := o.board.Get(active); !known {
			o.intents.JoinConversation(active)
		}
	}
}
