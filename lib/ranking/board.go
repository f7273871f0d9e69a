// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ranking

import (
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// UnreadCounts is one badge refresh from the server.
type UnreadCounts struct {
	PerUser  map[chat.UserID]int
	PerGroup map[string]int

	LastActivityPerUser  map[chat.UserID]int64
	LastActivityPerGroup map[string]int64

	// Invites is the number of pending group invitations.
	Invites int
}

// Settings is a partial update from a pin, archive, or mute action.
// Nil fields are left unchanged.
type Settings struct {
	// PinnedRank sets the pin rank. Use Unpin to clear it.
	PinnedRank *int
	Unpin      bool

	Archived *bool

	// MutedUntil sets the mute deadline; a zero time unmutes.
	MutedUntil *time.Time
}

// Board holds the summaries of every known conversation. Entries are
// never removed here: deleting a conversation is a server decision.
//
// A Board is not safe for concurrent use.
type Board struct {
	ranker    *Ranker
	summaries map[chat.ConversationRef]*Summary
	invites   int
}

// NewBoard returns an empty Board ranked by ranker.
func NewBoard(ranker *Ranker) *Board {
	return &Board{ranker: ranker, summaries: make(map[chat.ConversationRef]*Summary)}
}

func (b *Board) entry(ref chat.ConversationRef) *Summary {
	summary := b.summaries[ref]
	if summary == nil {
		summary = &Summary{Ref: ref, Name: ref.ID}
		b.summaries[ref] = summary
	}
	return summary
}

// Upsert stores summary, replacing any existing entry for its Ref. The
// stored last activity never goes backwards.
func (b *Board) Upsert(summary Summary) {
	existing, ok := b.summaries[summary.Ref]
	stored := summary
	if ok && existing.LastActivityMs > stored.LastActivityMs {
		stored.LastActivityMs = existing.LastActivityMs
	}
	b.summaries[summary.Ref] = &stored
}

// Get returns the summary for ref.
func (b *Board) Get(ref chat.ConversationRef) (Summary, bool) {
	summary, ok := b.summaries[ref]
	if !ok {
		return Summary{}, false
	}
	return *summary, true
}

// Len returns the number of conversations on the board.
func (b *Board) Len() int { return len(b.summaries) }

// Refs returns every conversation on the board in no particular order.
func (b *Board) Refs() []chat.ConversationRef {
	refs := make([]chat.ConversationRef, 0, len(b.summaries))
	for ref := range b.summaries {
		refs = append(refs, ref)
	}
	return refs
}

// Bump raises the conversation's last activity to atMs. Older values
// are ignored. Unknown conversations are created.
func (b *Board) Bump(ref chat.ConversationRef, atMs int64) {
	summary := b.entry(ref)
	if atMs > summary.LastActivityMs {
		summary.LastActivityMs = atMs
	}
}

// Correct replaces an optimistic bump with the server's timestamp.
// When the stored value is still the optimistic one, the server value
// wins even if it is older; that is the only way last activity moves
// backwards. If something newer arrived since, the server value is
// only applied as a regular Bump.
func (b *Board) Correct(ref chat.ConversationRef, optimisticMs, serverMs int64) {
	summary := b.entry(ref)
	if summary.LastActivityMs == optimisticMs {
		summary.LastActivityMs = serverMs
		return
	}
	b.Bump(ref, serverMs)
}

// SetUnread sets the unread count.
func (b *Board) SetUnread(ref chat.ConversationRef, unread int) {
	if unread < 0 {
		unread = 0
	}
	b.entry(ref).Unread = unread
}

// IncrementUnread adds one to the unread count.
func (b *Board) IncrementUnread(ref chat.ConversationRef) {
	b.entry(ref).Unread++
}

// ApplySettings applies a settings change.
func (b *Board) ApplySettings(ref chat.ConversationRef, settings Settings) {
	summary := b.entry(ref)
	switch {
	case settings.Unpin:
		summary.PinnedRank = nil
	case settings.PinnedRank != nil:
		rank := *settings.PinnedRank
		summary.PinnedRank = &rank
	}
	if settings.Archived != nil {
		summary.Archived = *settings.Archived
	}
	if settings.MutedUntil != nil {
		summary.MutedUntil = *settings.MutedUntil
	}
}

// ApplyCounts merges a badge refresh. Counts for conversations the
// server did not mention drop to zero, except active, whose unread
// count is always zero while it is on screen.
func (b *Board) ApplyCounts(counts UnreadCounts, active chat.ConversationRef) {
	for ref, summary := range b.summaries {
		switch ref.Kind {
		case chat.KindDirect:
			summary.Unread = counts.PerUser[ref.Peer()]
		case chat.KindGroup:
			summary.Unread = counts.PerGroup[ref.ID]
		}
	}
	for user, unread := range counts.PerUser {
		b.entry(chat.DirectRef(user)).Unread = unread
	}
	for group, unread := range counts.PerGroup {
		b.entry(chat.GroupRef(group)).Unread = unread
	}
	for user, lastMs := range counts.LastActivityPerUser {
		b.Bump(chat.DirectRef(user), lastMs)
	}
	for group, lastMs := range counts.LastActivityPerGroup {
		b.Bump(chat.GroupRef(group), lastMs)
	}
	if summary, ok := b.summaries[active]; ok {
		summary.Unread = 0
	}
	b.invites = counts.Invites
}

// Invites returns the pending invitation count from the last refresh.
func (b *Board) Invites() int { return b.invites }

// SetInvites replaces the pending invitation count.
func (b *Board) SetInvites(invites int) { b.invites = invites }

// TotalUnread sums unread counts across conversations.
func (b *Board) TotalUnread() int {
	total := 0
	for _, summary := range b.summaries {
		total += summary.Unread
	}
	return total
}

// Ranked returns every summary in sidebar order.
func (b *Board) Ranked() []Summary {
	summaries := make([]Summary, 0, len(b.summaries))
	for _, summary := range b.summaries {
		summaries = append(summaries, *summary)
	}
	return b.ranker.Rank(summaries)
}
