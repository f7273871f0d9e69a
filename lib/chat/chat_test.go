// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"testing"
)

func TestParseConversationRef(t *testing.T) {
	tests := []struct {
		raw     string
		want    ConversationRef
		wantErr bool
	}{
		{raw: "dm:42", want: DirectRef("42")},
		{raw: "group:7", want: GroupRef("7")},
		{raw: "dm:", wantErr: true},
		{raw: "channel:1", wantErr: true},
		{raw: "42", wantErr: true},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			got, err := ParseConversationRef(test.raw)
			if test.wantErr {
				if err == nil {
					t.Fatalf("ParseConversationRef(%q) succeeded, want error", test.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseConversationRef(%q): %v", test.raw, err)
			}
			if got != test.want {
				t.Fatalf("got %+v, want %+v", got, test.want)
			}
			if got.String() != test.raw {
				t.Fatalf("String() = %q, want %q", got.String(), test.raw)
			}
		})
	}
}

func TestConversationRefPeer(t *testing.T) {
	if peer := DirectRef("42").Peer(); peer != "42" {
		t.Fatalf("Peer() = %q, want 42", peer)
	}
	if peer := GroupRef("9").Peer(); peer != "" {
		t.Fatalf("group Peer() = %q, want empty", peer)
	}
	if !(ConversationRef{}).IsZero() {
		t.Fatal("zero ref should report IsZero")
	}
}

func TestIdentityCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Identity
		want int
	}{
		{"numeric not lexical", ServerID("9"), ServerID("10"), -1},
		{"equal numeric", ServerID("501"), ServerID("501"), 0},
		{"lexical fallback", ServerID("abc"), ServerID("abd"), -1},
		{"integer before non-integer", ServerID("10"), ServerID("x"), -1},
		{"non-integer after integer", ServerID("1a"), ServerID("2"), 1},
		{"same integer spelled differently", ServerID("07"), ServerID("7"), -1},
		{"server before local", ServerID("999"), LocalID(1), -1},
		{"local after server", LocalID(1), ServerID("1"), 1},
		{"local numeric", LocalID(1000), LocalID(999), 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := test.a.Compare(test.b); got != test.want {
				t.Fatalf("%v.Compare(%v) = %d, want %d", test.a, test.b, got, test.want)
			}
		})
	}
}

func TestIdentityCompareIsTransitive(t *testing.T) {
	identities := []Identity{
		ServerID("2"), ServerID("10"), ServerID("1a"), ServerID("b"),
		ServerID("07"), ServerID("7"), ServerID("-3"), LocalID(5), LocalID(40),
	}
	for _, a := range identities {
		for _, b := range identities {
			if a.Compare(b) != -b.Compare(a) {
				t.Errorf("%v.Compare(%v) = %d but reverse = %d", a, b, a.Compare(b), b.Compare(a))
			}
			if (a.Compare(b) == 0) != (a == b) {
				t.Errorf("%v.Compare(%v) = %d for distinct identities", a, b, a.Compare(b))
			}
			for _, c := range identities {
				if a.Compare(b) < 0 && b.Compare(c) < 0 && a.Compare(c) >= 0 {
					t.Errorf("%v < %v < %v but %v.Compare(%v) = %d", a, b, c, a, c, a.Compare(c))
				}
			}
		}
	}
}

func TestIdentityText(t *testing.T) {
	local := LocalID(1000)
	if local.String() != "temp-1000" {
		t.Fatalf("LocalID(1000).String() = %q", local.String())
	}
	if !local.IsLocal() || ServerID("501").IsLocal() {
		t.Fatal("IsLocal does not follow the identity kind")
	}

	for _, identity := range []Identity{local, ServerID("501")} {
		text, err := identity.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var decoded Identity
		if err := decoded.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if decoded != identity {
			t.Fatalf("decoded %+v, want %+v", decoded, identity)
		}
	}
}

func TestParseMessageType(t *testing.T) {
	if got, err := ParseMessageType(""); err != nil || got != TypeText {
		t.Fatalf("ParseMessageType(\"\") = %q, %v", got, err)
	}
	if got, err := ParseMessageType("image"); err != nil || got != TypeImage {
		t.Fatalf("ParseMessageType(image) = %q, %v", got, err)
	}
	_, err := ParseMessageType("sticker")
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("unknown type error = %v, want ErrMalformedPayload", err)
	}
}

func TestMessageRevision(t *testing.T) {
	existing := Message{ID: ServerID("5"), Content: "hello", Type: TypeText}

	edited := existing
	edited.Content = "hello!"
	edited.EditedAtMs = 2000
	if !edited.IsNewerRevisionOf(&existing) {
		t.Fatal("edit with a later EditedAtMs should be a newer revision")
	}

	same := existing
	if same.IsNewerRevisionOf(&existing) {
		t.Fatal("identical message should not be a newer revision")
	}

	deleted := existing
	deleted.Tombstone()
	if !deleted.IsNewerRevisionOf(&existing) {
		t.Fatal("delete should be a newer revision")
	}
	if deleted.Content != "" || deleted.Type != TypeDeleted {
		t.Fatalf("Tombstone left %+v", deleted)
	}
}

func TestCursorAdvance(t *testing.T) {
	var cursor Cursor
	if !cursor.IsZero() {
		t.Fatal("zero cursor should report IsZero")
	}

	cursor.Advance(Message{ID: ServerID("9"), TimestampMs: 2000})
	cursor.Advance(Message{ID: ServerID("10"), TimestampMs: 1500})
	cursor.Advance(Message{ID: ServerID("8"), TimestampMs: 1000})
	cursor.Advance(Message{ID: LocalID(99999), TimestampMs: 1000})

	if cursor.LastMessageID != "10" {
		t.Fatalf("LastMessageID = %q, want 10 (numeric max)", cursor.LastMessageID)
	}
	if cursor.LastTimestampMs != 2000 {
		t.Fatalf("LastTimestampMs = %d, want 2000", cursor.LastTimestampMs)
	}
}
