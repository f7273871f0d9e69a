// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence tracks who is online, when offline users were last
// seen, and whether the peer in the active conversation is typing.
//
// The online set is fed by push snapshots and deltas. Last-seen times
// are looked up lazily and cached until a delta makes them stale.
// Typing indicators expire on their own through the injected clock.
package presence

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
)

// DefaultTypingExpiry is how long a typing indicator stays up without a
// refresh.
const DefaultTypingExpiry = 2500 * time.Millisecond

// Status is a user's presence as reported by a Lookup.
type Status struct {
	Online bool

	// LastSeen is zero when the server does not know.
	LastSeen time.Time
}

// Lookup fetches one user's presence from the server.
type Lookup interface {
	LastSeen(ctx context.Context, user chat.UserID) (Status, error)
}

// TypingState is the typing indicator of the active conversation.
type TypingState struct {
	Active       bool
	Conversation chat.ConversationRef
	SenderID     chat.UserID
	ExpiresAt    time.Time
}

// Config configures a Tracker.
type Config struct {
	// LocalUser is the signed-in user. Their own typing echoes are
	// ignored.
	LocalUser chat.UserID

	// Lookup resolves last-seen times. Required.
	Lookup Lookup

	// Clock drives typing expiry. If nil, clock.Real() is used.
	Clock clock.Clock

	// TypingExpiry defaults to DefaultTypingExpiry.
	TypingExpiry time.Duration

	// OnTypingChange, if set, is called after every typing state
	// change, including expiry. It is called without internal locks
	// held and may run on a timer goroutine.
	OnTypingChange func(TypingState)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Tracker is safe for concurrent use: typing expiry fires on timer
// goroutines.
type Tracker struct {
	local    chat.UserID
	lookup   Lookup
	clock    clock.Clock
	expiry   time.Duration
	onTyping func(TypingState)
	logger   *slog.Logger

	mu       sync.Mutex
	online   map[chat.UserID]struct{}
	lastSeen map[chat.UserID]time.Time
	active   chat.ConversationRef
	typing   TypingState
	timer    *clock.Timer

	// typingGeneration increments whenever the typing timer is re-armed
	// or cleared, so a callback from a superseded timer does nothing.
	typingGeneration uint64
}

// NewTracker creates a Tracker.
func NewTracker(config Config) (*Tracker, error) {
	if config.Lookup == nil {
		return nil, fmt.Errorf("presence: Lookup is required")
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	expiry := config.TypingExpiry
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		local:    config.LocalUser,
		lookup:   config.Lookup,
		clock:    clk,
		expiry:   expiry,
		onTyping: config.OnTypingChange,
		logger:   logger,
		online:   make(map[chat.UserID]struct{}),
		lastSeen: make(map[chat.UserID]time.Time),
	}, nil
}

// ApplySnapshot replaces the online set and returns, sorted, the users
// that were online before and are not in the snapshot.
func (t *Tracker) ApplySnapshot(online []chat.UserID) []chat.UserID {
	t.mu.Lock()
	defer t.mu.Unlock()
	previous := t.online
	t.online = make(map[chat.UserID]struct{}, len(online))
	for _, user := range online {
		t.online[user] = struct{}{}
		delete(t.lastSeen, user)
	}
	var dropped []chat.UserID
	for user := range previous {
		if _, still := t.online[user]; !still {
			dropped = append(dropped, user)
		}
	}
	slices.Sort(dropped)
	return dropped
}

// ApplyDelta records one user going online or offline. Going online
// drops any cached last-seen time. Going offline records now as the
// last-seen time, which is what the server will report as well.
func (t *Tracker) ApplyDelta(user chat.UserID, online bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if online {
		t.online[user] = struct{}{}
		delete(t.lastSeen, user)
		return
	}
	delete(t.online, user)
	t.lastSeen[user] = t.clock.Now()
}

// IsOnline reports whether user is in the online set.
func (t *Tracker) IsOnline(user chat.UserID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, online := t.online[user]
	return online
}

// OnlineCount returns the size of the online set.
func (t *Tracker) OnlineCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.online)
}

// LastSeen returns when user was last seen. The boolean is false when
// the user is online or the server has no record. The first call for a
// user goes to the Lookup; later calls use the cache.
func (t *Tracker) LastSeen(ctx context.Context, user chat.UserID) (time.Time, bool, error) {
	t.mu.Lock()
	if _, online := t.online[user]; online {
		t.mu.Unlock()
		return time.Time{}, false, nil
	}
	if seen, cached := t.lastSeen[user]; cached {
		t.mu.Unlock()
		return seen, !seen.IsZero(), nil
	}
	t.mu.Unlock()

	status, err := t.lookup.LastSeen(ctx, user)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("presence: looking up %s: %w", user, err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, online := t.online[user]; online || status.Online {
		return time.Time{}, false, nil
	}
	t.lastSeen[user] = status.LastSeen
	t.logger.Debug("cached last seen", "user_id", user, "last_seen", status.LastSeen)
	return status.LastSeen, !status.LastSeen.IsZero(), nil
}

// LastSeenCache returns a copy of the cached last-seen times, skipping
// users with no record.
func (t *Tracker) LastSeenCache() map[chat.UserID]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	cache := make(map[chat.UserID]time.Time, len(t.lastSeen))
	for user, seen := range t.lastSeen {
		if !seen.IsZero() {
			cache[user] = seen
		}
	}
	return cache
}

// SeedLastSeen fills the cache from a previous run. Entries already
// cached and users currently online are left alone.
func (t *Tracker) SeedLastSeen(cache map[chat.UserID]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for user, seen := range cache {
		if _, online := t.online[user]; online {
			continue
		}
		if _, cached := t.lastSeen[user]; !cached {
			t.lastSeen[user] = seen
		}
	}
}

// SetActive changes the conversation whose typing signals are shown and
// clears the current indicator.
func (t *Tracker) SetActive(ref chat.ConversationRef) {
	t.mu.Lock()
	t.active = ref
	state, changed := t.clearLocked()
	t.mu.Unlock()
	t.notify(state, changed)
}

// OnTyping handles a typing signal. Signals from the local user or for
// a conversation other than the active one are ignored. A start signal
// (re)arms the expiry timer; a stop signal clears the indicator.
func (t *Tracker) OnTyping(ref chat.ConversationRef, sender chat.UserID, isTyping bool) {
	t.mu.Lock()
	if sender == t.local || ref.IsZero() || ref != t.active {
		t.mu.Unlock()
		return
	}
	if !isTyping {
		state, changed := t.clearLocked()
		t.mu.Unlock()
		t.notify(state, changed)
		return
	}

	t.typingGeneration++
	generation := t.typingGeneration
	t.timer.Stop()
	t.typing = TypingState{
		Active:       true,
		Conversation: ref,
		SenderID:     sender,
		ExpiresAt:    t.clock.Now().Add(t.expiry),
	}
	state := t.typing
	t.mu.Unlock()

	// Arm outside the lock: a fake clock with a non-positive expiry runs
	// the callback synchronously.
	timer := t.clock.AfterFunc(t.expiry, func() { t.expire(generation) })
	t.mu.Lock()
	if t.typingGeneration == generation {
		t.timer = timer
	} else {
		timer.Stop()
	}
	t.mu.Unlock()

	t.notify(state, true)
}

// ClearTyping drops the indicator early, for example when the typist's
// message arrives or the push channel disconnects.
func (t *Tracker) ClearTyping() {
	t.mu.Lock()
	state, changed := t.clearLocked()
	t.mu.Unlock()
	t.notify(state, changed)
}

// Typing returns the current indicator.
func (t *Tracker) Typing() TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.typing
}

// Close cancels the expiry timer.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.typingGeneration++
	t.timer.Stop()
	t.timer = nil
}

func (t *Tracker) expire(generation uint64) {
	t.mu.Lock()
	if generation != t.typingGeneration || !t.typing.Active {
		t.mu.Unlock()
		return
	}
	t.typing = TypingState{Conversation: t.typing.Conversation}
	t.timer = nil
	state := t.typing
	t.mu.Unlock()

	t.logger.Debug("typing indicator expired", "conversation", state.Conversation.String())
	t.notify(state, true)
}

func (t *Tracker) clearLocked() (TypingState, bool) {
	t.typingGeneration++
	t.timer.Stop()
	t.timer = nil
	if !t.typing.Active {
		return t.typing, false
	}
	t.typing = TypingState{Conversation: t.typing.Conversation}
	return t.typing, true
}

func (t *Tracker) notify(state TypingState, changed bool) {
	if changed && t.onTyping != nil {
		t.onTyping(state)
	}
}

// Describe renders a presence line: "online", "last seen 5 minutes
// ago", or "offline" when nothing is known.
func Describe(online bool, lastSeen time.Time, now time.Time) string {
	switch {
	case online:
		return "online"
	case lastSeen.IsZero():
		return "offline"
	case now.Sub(lastSeen) < time.Minute:
		return "last seen just now"
	}
	return "last seen " + humanize.RelTime(lastSeen, now, "ago", "from now")
}
