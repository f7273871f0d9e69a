// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package delivery

import (
	"testing"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

const local chat.UserID = "7"

func outbound(id string) chat.Message {
	return chat.Message{ID: chat.ServerID(id), Conversation: chat.DirectRef("42"), SenderID: local}
}

func TestApplyProgression(t *testing.T) {
	tracker := NewTracker(local)
	msg := outbound("6")
	tracker.Track(msg)

	if state := tracker.State(msg.ID); state != Sent {
		t.Fatalf("initial state = %v, want sent", state)
	}
	if state, changed := tracker.Apply(msg.ID, chat.StatusDelivered); !changed || state != Delivered {
		t.Fatalf("Apply(delivered) = %v, %v", state, changed)
	}
	if state, changed := tracker.Apply(msg.ID, chat.StatusRead); !changed || state != Read {
		t.Fatalf("Apply(read) = %v, %v", state, changed)
	}
}

func TestApplyNeverRegresses(t *testing.T) {
	tracker := NewTracker(local)
	msg := outbound("6")
	tracker.Track(msg)

	tracker.Apply(msg.ID, chat.StatusRead)
	state, changed := tracker.Apply(msg.ID, chat.StatusDelivered)
	if changed || state != Read {
		t.Fatalf("Apply(delivered) after read = %v, %v; want read, unchanged", state, changed)
	}
	if _, changed := tracker.Apply(msg.ID, chat.StatusRead); changed {
		t.Fatal("re-applying read reported a change")
	}
}

func TestApplyUnknownIsNoop(t *testing.T) {
	tracker := NewTracker(local)
	state, changed := tracker.Apply(chat.ServerID("404"), chat.StatusRead)
	if changed || state != Unknown {
		t.Fatalf("Apply on unknown id = %v, %v", state, changed)
	}
	if tracker.Len() != 0 {
		t.Fatal("Apply on unknown id started tracking it")
	}
}

func TestTrackIgnoresInboundAndGroups(t *testing.T) {
	tracker := NewTracker(local)

	inbound := outbound("1")
	inbound.SenderID = "42"
	tracker.Track(inbound)

	group := outbound("2")
	group.Conversation = chat.GroupRef("9")
	tracker.Track(group)

	if tracker.Len() != 0 {
		t.Fatalf("tracked %d messages, want 0", tracker.Len())
	}
}

func TestTrackUsesRecordedState(t *testing.T) {
	tracker := NewTracker(local)
	msg := outbound("6")
	msg.ReadAtMs = 5000
	tracker.Track(msg)
	if tracker.State(msg.ID) != Read {
		t.Fatalf("state = %v, want read", tracker.State(msg.ID))
	}

	msg.ReadAtMs = 0
	tracker.Track(msg)
	if tracker.State(msg.ID) != Read {
		t.Fatal("re-tracking an older copy moved the state backwards")
	}
}

func TestRekey(t *testing.T) {
	tracker := NewTracker(local)
	temp := chat.Message{ID: chat.LocalID(1000), Conversation: chat.DirectRef("42"), SenderID: local}
	tracker.Track(temp)

	server := chat.ServerID("501")
	tracker.Rekey(temp.ID, server)
	if tracker.State(temp.ID) != Unknown {
		t.Fatal("local identity still tracked after Rekey")
	}
	if tracker.State(server) != Sent {
		t.Fatalf("server identity state = %v, want sent", tracker.State(server))
	}
}
