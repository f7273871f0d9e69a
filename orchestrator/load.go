// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/ledger"
	"github.com/bureau-foundation/chatsync/lib/presence"
)

// Switch opens conversation: it replaces the session (resetting the
// cursor, typing, and alert suppression), clears the ledger's copy of
// that conversation, and runs the initial pull. Other conversations'
// timelines are kept.
func (o *Orchestrator) Switch(ctx context.Context, conversation chat.ConversationRef) error {
	if conversation.IsZero() {
		return fmt.Errorf("orchestrator: switch to empty conversation")
	}

	o.mu.Lock()
	previous := o.session
	o.retireSessionLocked(previous)
	o.session = newSession(previous.Generation+1, conversation)
	o.ledger.Reset(conversation)
	o.board.SetUnread(conversation, 0)
	if conversation.IsGroup() {
		o.intents.JoinConversation(conversation)
	}
	o.logger.Info("switched conversation",
		"conversation", conversation.String(),
		"generation", o.session.Generation,
	)
	o.presenter.RenderState(conversation, o.session.State)
	o.presenter.RenderTimeline(conversation, nil)
	o.renderSidebarLocked()
	o.mu.Unlock()

	o.presence.SetActive(conversation)

	err := o.Load(ctx)
	o.refreshPeerStatus(ctx)
	return err
}

// retireSessionLocked stops the outgoing session's timers and withdraws
// its typing intent.
func (o *Orchestrator) retireSessionLocked(session *SyncSession) {
	session.stopTimers()
	if session.typingSent {
		session.typingSent = false
		o.intents.SendTyping(session.Active, false)
	}
}

// Refresh pulls anything new for the active conversation, for example
// when the session becomes visible again.
func (o *Orchestrator) Refresh(ctx context.Context) error { return o.Load(ctx) }

// Load pulls messages newer than the cursor. The first pull of a
// session is limited to PageLimit messages; later pulls let the server
// decide. A response that arrives after the session was replaced is
// discarded. Failures leave the ledger as it was.
func (o *Orchestrator) Load(ctx context.Context) error {
	o.mu.Lock()
	session := o.session
	if session.Active.IsZero() || session.loading || o.closed {
		o.mu.Unlock()
		return nil
	}
	request := chat.FetchRequest{Conversation: session.Active, Cursor: session.Cursor}
	initial := session.Cursor.IsZero()
	if initial {
		request.Limit = o.pageLimit
	}
	session.loading = true
	previousState := session.State
	o.setStateLocked(Loading)
	o.mu.Unlock()

	messages, err := o.backend.FetchMessages(ctx, request)

	o.mu.Lock()
	defer o.mu.Unlock()
	if stale := o.staleLocked(session); stale != nil {
		o.metrics.StaleResponses.Inc()
		o.logger.Debug("discarding pull response",
			"conversation", request.Conversation.String(),
			"reason", stale,
			"error", err,
		)
		return nil
	}
	session.loading = false

	if err != nil {
		if previousState == Loading {
			previousState = Idle
			if session.painted {
				previousState = Synced
			}
		}
		o.setStateLocked(previousState)
		if errors.Is(err, chat.ErrMalformedPayload) {
			o.metrics.MalformedBatches.Inc()
			o.logger.Warn("dropping malformed pull response",
				"conversation", request.Conversation.String(),
				"error", err,
			)
		} else {
			o.logger.Warn("pull failed",
				"conversation", request.Conversation.String(),
				"error", err,
			)
		}
		return fmt.Errorf("orchestrator: loading %s: %w", request.Conversation, err)
	}

	o.ingestPulledLocked(session, messages, initial)
	o.setStateLocked(Synced)
	return nil
}

// staleLocked returns an error wrapping chat.ErrStaleResponse when
// session is no longer the current one.
func (o *Orchestrator) staleLocked(session *SyncSession) error {
	if session == o.session {
		return nil
	}
	return fmt.Errorf("%w: %s generation %d replaced by %s generation %d",
		chat.ErrStaleResponse, session.Active, session.Generation, o.session.Active, o.session.Generation)
}

// ingestPulledLocked merges one pull response into the ledger and
// derived state, then renders and alerts.
func (o *Orchestrator) ingestPulledLocked(session *SyncSession, messages []chat.Message, initial bool) {
	active := session.Active
	firstPaint := !session.painted
	distance := o.presenter.DistanceFromBottom()

	var incoming []chat.Message
	var newestMs int64
	changed := false
	for _, msg := range messages {
		if msg.Conversation != active {
			o.logger.Warn("pull returned a message for another conversation",
				"conversation", active.String(),
				"message_conversation", msg.Conversation.String(),
				"message_id", msg.ID.String(),
			)
			continue
		}
		session.Cursor.Advance(msg)
		result := o.ledger.Ingest(msg)
		o.metrics.Ingested.WithLabelValues("pull", result.String()).Inc()

		switch result {
		case ledger.Inserted:
			changed = true
			o.delivery.Track(msg)
			if msg.TimestampMs > newestMs {
				newestMs = msg.TimestampMs
			}
			if msg.SenderID != o.local {
				incoming = append(incoming, msg)
			}
		case ledger.Updated:
			changed = true
		case ledger.Duplicate:
			// A re-pulled outbound message may carry newer receipts.
			o.delivery.Track(msg)
			if o.ledger.SetDelivery(active, msg.ID, msg.DeliveredAtMs, msg.ReadAtMs) {
				changed = true
			}
		}
	}

	if newestMs > 0 {
		o.board.Bump(active, newestMs)
	}
	o.board.SetUnread(active, 0)

	if changed || firstPaint {
		o.renderTimelineLocked()
		if initial || distance <= o.stickToBottom {
			o.presenter.ScrollToBottom()
		}
	}
	o.renderSidebarLocked()

	if len(incoming) > 0 && !firstPaint && !session.suppressSound && !o.mutedLocked(active) {
		o.presenter.PlayAlert()
		for _, msg := range incoming {
			o.notifyLocked(msg)
		}
	}

	if firstPaint {
		session.painted = true
		o.scheduleSettleLocked(session)
	}
}

// scheduleSettleLocked lifts alert suppression SettleWindow after the
// first paint, unless the session has been replaced by then.
func (o *Orchestrator) scheduleSettleLocked(session *SyncSession) {
	session.settleTimer = o.clock.AfterFunc(o.settleWindow, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if session == o.session {
			session.suppressSound = false
			session.settleTimer = nil
		}
	})
}

// refreshPeerStatus looks up and renders the presence line of the
// active direct conversation's peer. Lookup failures are logged.
func (o *Orchestrator) refreshPeerStatus(ctx context.Context) {
	o.mu.Lock()
	active := o.session.Active
	o.mu.Unlock()
	if active.Kind != chat.KindDirect {
		return
	}

	line, err := o.ActivePresence(ctx)
	if err != nil {
		o.logger.Warn("presence lookup failed", "user_id", active.Peer(), "error", err)
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.Active == active {
		o.presenter.RenderPeerStatus(active, line)
	}
}

// ActivePresence returns the presence line for the active direct
// conversation's peer: "online" or a last-seen description. It returns
// "" for groups and when no conversation is open.
func (o *Orchestrator) ActivePresence(ctx context.Context) (string, error) {
	o.mu.Lock()
	active := o.session.Active
	o.mu.Unlock()
	if active.Kind != chat.KindDirect {
		return "", nil
	}
	peer := active.Peer()
	if o.presence.IsOnline(peer) {
		return "online", nil
	}
	lastSeen, _, err := o.presence.LastSeen(ctx, peer)
	if err != nil {
		return "", err
	}
	return presence.Describe(o.presence.IsOnline(peer), lastSeen, o.clock.Now()), nil
}
