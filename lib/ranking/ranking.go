// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ranking orders the conversation sidebar.
//
// Ranker.Rank is a pure function of its input. Board is the mutable set
// of summaries the orchestrator keeps up to date from sends, pushes,
// badge refreshes, and settings changes.
package ranking

import (
	"sort"
	"strconv"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// Summary is the sidebar entry of one conversation.
type Summary struct {
	Ref            chat.ConversationRef
	Name           string
	LastActivityMs int64

	// PinnedRank is nil for unpinned conversations. Lower ranks sort
	// first.
	PinnedRank *int

	Archived bool

	// MutedUntil is zero when the conversation is not muted.
	MutedUntil time.Time

	Unread int
}

// Muted reports whether alerts for the conversation are suppressed at now.
func (s Summary) Muted(now time.Time) bool {
	return !s.MutedUntil.IsZero() && now.Before(s.MutedUntil)
}

// Pinned reports whether the conversation has a pin rank.
func (s Summary) Pinned() bool { return s.PinnedRank != nil }

// BadgeLabel renders an unread count for display: empty for zero and
// "99+" past 99.
func BadgeLabel(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 99:
		return "99+"
	}
	return strconv.Itoa(unread)
}

// Ranker sorts summaries. Names compare case-insensitively using the
// collation rules of the configured locale.
//
// A Ranker is not safe for concurrent use; collate.Collator keeps
// internal buffers.
type Ranker struct {
	collator *collate.Collator
}

// NewRanker returns a Ranker collating names for locale.
func NewRanker(locale language.Tag) *Ranker {
	return &Ranker{collator: collate.New(locale, collate.IgnoreCase)}
}

// Rank returns a sorted copy of summaries:
//
//  1. archived conversations after all others
//  2. pinned rank ascending, unpinned last
//  3. last activity, newest first
//  4. name, case-insensitive and locale-aware
//  5. conversation reference, so equal names still order the same way
//     every time
//
// The input slice is not modified.
func (r *Ranker) Rank(summaries []Summary) []Summary {
	ranked := make([]Summary, len(summaries))
	copy(ranked, summaries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return r.compare(&ranked[i], &ranked[j]) < 0
	})
	return ranked
}

func (r *Ranker) compare(a, b *Summary) int {
	if a.Archived != b.Archived {
		if b.Archived {
			return -1
		}
		return 1
	}
	if a.Pinned() != b.Pinned() {
		if a.Pinned() {
			return -1
		}
		return 1
	}
	if a.Pinned() && *a.PinnedRank != *b.PinnedRank {
		if *a.PinnedRank < *b.PinnedRank {
			return -1
		}
		return 1
	}
	if a.LastActivityMs != b.LastActivityMs {
		if a.LastActivityMs > b.LastActivityMs {
			return -1
		}
		return 1
	}
	if order := r.collator.CompareString(a.Name, b.Name); order != 0 {
		return order
	}
	switch left, right := a.Ref.String(), b.Ref.String(); {
	case left < right:
		return -1
	case left > right:
		return 1
	}
	return 0
}
