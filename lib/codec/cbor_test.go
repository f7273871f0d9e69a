// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

type sampleEntry struct {
	Ref    chat.ConversationRef `cbor:"ref"`
	Name   string               `cbor:"name,omitempty"`
	Unread int                  `cbor:"unread"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleEntry{Ref: chat.GroupRef("12"), Name: "ops", Unread: 3}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded sampleEntry
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	value := map[chat.ConversationRef]int{
		chat.DirectRef("9"):  1,
		chat.GroupRef("4"):   2,
		chat.DirectRef("10"): 3,
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for range 10 {
		again, err := Marshal(value)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("non-deterministic encoding:\n  first: %x\n  again: %x", first, again)
		}
	}
}

func TestTextMarshalerEncodesAsString(t *testing.T) {
	data, err := Marshal(chat.DirectRef("42"))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, rest, err := DiagnoseFirst(data)
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	if len(rest) != 0 {
		t.Errorf("unexpected trailing bytes: %x", rest)
	}
	if diagnostic != `"dm:42"` {
		t.Errorf("diagnostic = %s, want \"dm:42\"", diagnostic)
	}

	var decoded chat.ConversationRef
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != chat.DirectRef("42") {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestTextUnmarshalerRejectsBadRef(t *testing.T) {
	data, err := Marshal("channel:1")
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded chat.ConversationRef
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("expected error for unknown conversation kind")
	}
}

func TestEncoderDecoderSequence(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	entries := []sampleEntry{
		{Ref: chat.DirectRef("1"), Unread: 1},
		{Ref: chat.GroupRef("2"), Name: "team"},
	}
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for i, want := range entries {
		var got sampleEntry
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode[%d]: %v", i, err)
		}
		if got != want {
			t.Errorf("entry %d = %+v, want %+v", i, got, want)
		}
	}
	var extra sampleEntry
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode after last item = %v, want io.EOF", err)
	}
}

func TestOmitemptyRespected(t *testing.T) {
	data, err := Marshal(sampleEntry{Ref: chat.GroupRef("5")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	diagnostic, _, err := DiagnoseFirst(data)
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	if strings.Contains(diagnostic, `"name"`) {
		t.Errorf("empty name should be omitted: %s", diagnostic)
	}
	if !strings.Contains(diagnostic, `"unread"`) {
		t.Errorf("unread has no omitempty and should be present: %s", diagnostic)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]int{"a": 1})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := decoded.(map[string]any); !ok {
		t.Errorf("decoded type = %T, want map[string]any", decoded)
	}
}

func TestUnmarshalInvalidCBOR(t *testing.T) {
	var decoded sampleEntry
	if err := Unmarshal([]byte{0xff, 0xfe}, &decoded); err == nil {
		t.Fatal("expected error for invalid CBOR")
	}
}

func TestUnmarshalRejectsDeepNesting(t *testing.T) {
	// maxNestedLevels+1 one-element arrays around a zero.
	data := append(bytes.Repeat([]byte{0x81}, maxNestedLevels+1), 0x00)
	var decoded any
	if err := Unmarshal(data, &decoded); err == nil {
		t.Fatal("expected an error for nesting past the limit")
	}

	shallow := append(bytes.Repeat([]byte{0x81}, maxNestedLevels-1), 0x00)
	if err := Unmarshal(shallow, &decoded); err != nil {
		t.Fatalf("nesting within the limit: %v", err)
	}
}

func TestDiagnoseFirstWalksSequence(t *testing.T) {
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, value := range []int{1, 2} {
		if err := encoder.Encode(value); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	first, rest, err := DiagnoseFirst(buffer.Bytes())
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	second, rest, err := DiagnoseFirst(rest)
	if err != nil {
		t.Fatalf("DiagnoseFirst: %v", err)
	}
	if first != "1" || second != "2" || len(rest) != 0 {
		t.Errorf("got %q, %q, rest %x", first, second, rest)
	}
}
