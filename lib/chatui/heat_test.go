// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"testing"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

func TestHeatTracker(t *testing.T) {
	tracker := NewHeatTracker()
	start := time.Unix(1_700_000_000, 0)
	group := chat.GroupRef("9")

	if heat := tracker.Heat(group, start); heat != 0 {
		t.Fatalf("heat before ignition = %v, want 0", heat)
	}
	if tracker.HasHot(start) {
		t.Fatal("HasHot with no entries")
	}

	tracker.Ignite(group, start)
	if heat := tracker.Heat(group, start); heat != 1 {
		t.Errorf("heat at ignition = %v, want 1", heat)
	}
	half := tracker.Heat(group, start.Add(HeatDecayDuration/2))
	if half < 0.49 || half > 0.51 {
		t.Errorf("heat at half decay = %v, want 0.5", half)
	}
	if !tracker.HasHot(start.Add(HeatDecayDuration / 2)) {
		t.Error("HasHot false while decaying")
	}

	done := start.Add(HeatDecayDuration)
	if heat := tracker.Heat(group, done); heat != 0 {
		t.Errorf("heat after decay = %v, want 0", heat)
	}
	if tracker.HasHot(done) {
		t.Error("HasHot true after full decay")
	}
	if len(tracker.ignitions) != 0 {
		t.Errorf("decayed entries not collected: %d left", len(tracker.ignitions))
	}
}
