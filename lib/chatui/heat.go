// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// HeatDecayDuration is how long a sidebar row glows after activity.
// Heat starts at 1.0 and decays linearly to 0.0 over this duration.
const HeatDecayDuration = 3 * time.Second

// HeatTickInterval is the re-render interval while any row is hot.
const HeatTickInterval = 100 * time.Millisecond

// HeatTracker maps conversations to the time they last had activity,
// for animated highlighting of the sidebar.
type HeatTracker struct {
	ignitions map[chat.ConversationRef]time.Time
}

// NewHeatTracker creates an empty heat tracker.
func NewHeatTracker() *HeatTracker {
	return &HeatTracker{ignitions: make(map[chat.ConversationRef]time.Time)}
}

// Ignite records activity on a conversation, restarting its decay.
func (tracker *HeatTracker) Ignite(conversation chat.ConversationRef, now time.Time) {
	tracker.ignitions[conversation] = now
}

// Heat returns the current intensity for a conversation: 1.0 at
// ignition, decaying to 0.0 over [HeatDecayDuration].
func (tracker *HeatTracker) Heat(conversation chat.ConversationRef, now time.Time) float64 {
	ignition, exists := tracker.ignitions[conversation]
	if !exists {
		return 0.0
	}
	elapsed := now.Sub(ignition)
	if elapsed >= HeatDecayDuration {
		return 0.0
	}
	return 1.0 - float64(elapsed)/float64(HeatDecayDuration)
}

// HasHot reports whether any conversation still has heat, meaning the
// tick should keep running. Fully decayed entries are dropped.
func (tracker *HeatTracker) HasHot(now time.Time) bool {
	hot := false
	for conversation, ignition := range tracker.ignitions {
		if now.Sub(ignition) < HeatDecayDuration {
			hot = true
			continue
		}
		delete(tracker.ignitions, conversation)
	}
	return hot
}
