// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/ranking"
	"github.com/bureau-foundation/chatsync/lib/snapshot"
)

// ExportState captures the session metadata worth keeping across a
// restart. Message history is not included.
func (o *Orchestrator) ExportState() snapshot.Snapshot {
	o.mu.Lock()
	state := snapshot.Snapshot{
		LocalUser: o.local,
		SavedAtMs: clock.UnixMilli(o.clock),
		Active:    o.session.Active,
		Invites:   o.board.Invites(),
	}
	for _, summary := range o.board.Ranked() {
		entry := snapshot.Conversation{
			Ref:            summary.Ref,
			Name:           summary.Name,
			LastActivityMs: summary.LastActivityMs,
			Archived:       summary.Archived,
			Unread:         summary.Unread,
		}
		if summary.PinnedRank != nil {
			rank := *summary.PinnedRank
			entry.PinnedRank = &rank
		}
		if !summary.MutedUntil.IsZero() {
			entry.MutedUntilMs = summary.MutedUntil.UnixMilli()
		}
		state.Conversations = append(state.Conversations, entry)
	}
	o.mu.Unlock()

	cache := o.presence.LastSeenCache()
	if len(cache) > 0 {
		state.LastSeen = make(map[chat.UserID]int64, len(cache))
		for user, seen := range cache {
			state.LastSeen[user] = seen.UnixMilli()
		}
	}
	return state
}

// RestoreState loads a snapshot taken by ExportState into a fresh
// orchestrator and reopens the conversation that was active. The
// snapshot must belong to the same user.
func (o *Orchestrator) RestoreState(ctx context.Context, state snapshot.Snapshot) error {
	if state.LocalUser != o.local {
		return fmt.Errorf("orchestrator: snapshot belongs to %q, not %q", state.LocalUser, o.local)
	}

	o.mu.Lock()
	for _, entry := range state.Conversations {
		summary := ranking.Summary{
			Ref:            entry.Ref,
			Name:           entry.Name,
			LastActivityMs: entry.LastActivityMs,
			PinnedRank:     entry.PinnedRank,
			Archived:       entry.Archived,
			Unread:         entry.Unread,
		}
		if entry.MutedUntilMs > 0 {
			summary.MutedUntil = time.UnixMilli(entry.MutedUntilMs)
		}
		o.board.Upsert(summary)
	}
	o.board.SetInvites(state.Invites)
	o.renderSidebarLocked()
	o.mu.Unlock()

	if len(state.LastSeen) > 0 {
		cache := make(map[chat.UserID]time.Time, len(state.LastSeen))
		for user, ms := range state.LastSeen {
			cache[user] = time.UnixMilli(ms)
		}
		o.presence.SeedLastSeen(cache)
	}

	o.logger.Info("restored session",
		"conversations", len(state.Conversations),
		"active", state.Active.String(),
		"saved_at", time.UnixMilli(state.SavedAtMs),
	)
	if state.Active.IsZero() {
		return nil
	}
	return o.Switch(ctx, state.Active)
}
