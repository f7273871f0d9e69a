// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"math/rand"
	"sort"
	"strconv"
	"testing"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

var peer = chat.DirectRef("42")

func serverMessage(id string, timestampMs int64) chat.Message {
	return chat.Message{
		ID:           chat.ServerID(id),
		Conversation: peer,
		SenderID:     "42",
		Content:      "message " + id,
		Type:         chat.TypeText,
		TimestampMs:  timestampMs,
	}
}

func ids(messages []chat.Message) []string {
	result := make([]string, len(messages))
	for i, msg := range messages {
		result[i] = msg.ID.String()
	}
	return result
}

func assertIDs(t *testing.T, got []chat.Message, want ...string) {
	t.Helper()
	gotIDs := ids(got)
	if len(gotIDs) != len(want) {
		t.Fatalf("ids = %v, want %v", gotIDs, want)
	}
	for i := range want {
		if gotIDs[i] != want[i] {
			t.Fatalf("ids = %v, want %v", gotIDs, want)
		}
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	ledger := New()
	msg := serverMessage("5", 1000)

	if result := ledger.Ingest(msg); result != Inserted {
		t.Fatalf("first Ingest = %v, want inserted", result)
	}
	before := ledger.Digest(peer)
	if result := ledger.Ingest(msg); result != Duplicate {
		t.Fatalf("second Ingest = %v, want duplicate", result)
	}
	if ledger.Len(peer) != 1 {
		t.Fatalf("Len = %d, want 1", ledger.Len(peer))
	}
	if ledger.Digest(peer) != before {
		t.Fatal("duplicate ingest changed the timeline")
	}
}

func TestIngestOrdersArbitraryArrival(t *testing.T) {
	var messages []chat.Message
	for i := 1; i <= 40; i++ {
		// Several messages share a timestamp so the ID tie-break matters.
		messages = append(messages, serverMessage(strconv.Itoa(i), int64(1000+(i%7)*10)))
	}

	random := rand.New(rand.NewSource(7))
	for round := 0; round < 5; round++ {
		shuffled := append([]chat.Message(nil), messages...)
		random.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		ledger := New()
		for _, msg := range shuffled {
			ledger.Ingest(msg)
		}

		want := append([]chat.Message(nil), messages...)
		sort.SliceStable(want, func(i, j int) bool { return want[i].Compare(&want[j]) < 0 })
		assertIDs(t, ledger.Messages(peer), ids(want)...)
	}
}

func TestIngestOutOfOrderPushInsertsChronologically(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("10", 1000))
	ledger.Ingest(serverMessage("12", 1200))
	// Arrives late with an older timestamp and lower ID.
	ledger.Ingest(serverMessage("11", 1100))

	assertIDs(t, ledger.Messages(peer), "10", "11", "12")
}

func TestIngestNumericTieBreak(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("10", 1000))
	ledger.Ingest(serverMessage("9", 1000))

	assertIDs(t, ledger.Messages(peer), "9", "10")
}

func TestIngestNewerRevisionUpdates(t *testing.T) {
	ledger := New()
	original := serverMessage("5", 1000)
	original.ReplyToID = "3"
	ledger.Ingest(original)

	edited := original
	edited.Content = "fixed typo"
	edited.ReplyToID = ""
	edited.EditedAtMs = 1500
	if result := ledger.Ingest(edited); result != Updated {
		t.Fatalf("Ingest(edited) = %v, want updated", result)
	}

	got, _ := ledger.Get(peer, original.ID)
	if got.Content != "fixed typo" || got.EditedAtMs != 1500 {
		t.Fatalf("edit not applied: %+v", got)
	}
	if got.ReplyToID != "3" {
		t.Fatalf("edit clobbered an unedited field: ReplyToID = %q", got.ReplyToID)
	}
}

func TestReconcileTempKeepsSlot(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("400", 900))
	temp := chat.Message{
		ID:           chat.LocalID(1000),
		Conversation: peer,
		SenderID:     "7",
		Content:      "hi",
		Type:         chat.TypeText,
		TimestampMs:  1000,
	}
	ledger.Ingest(temp)
	ledger.Ingest(serverMessage("600", 1100))
	assertIDs(t, ledger.Messages(peer), "400", "temp-1000", "600")

	confirmed := temp
	confirmed.ID = chat.ServerID("501")
	confirmed.TimestampMs = 1005
	if !ledger.ReconcileTemp(peer, temp.ID, confirmed) {
		t.Fatal("ReconcileTemp reported the temp entry missing")
	}

	assertIDs(t, ledger.Messages(peer), "400", "501", "600")
	if _, ok := ledger.Get(peer, temp.ID); ok {
		t.Fatal("temp identity still resolvable after reconciliation")
	}
	if ledger.Ingest(confirmed) != Duplicate {
		t.Fatal("ingesting the confirmed message after reconciliation should be a duplicate")
	}
}

func TestReconcileTempAfterPullWonRace(t *testing.T) {
	ledger := New()
	temp := chat.Message{ID: chat.LocalID(1), Conversation: peer, SenderID: "7", Content: "hi", TimestampMs: 2000}
	ledger.Ingest(temp)

	confirmed := serverMessage("6", 1010)
	confirmed.SenderID = "7"
	ledger.Ingest(confirmed)

	if !ledger.ReconcileTemp(peer, temp.ID, confirmed) {
		t.Fatal("ReconcileTemp should drop the temp entry")
	}
	assertIDs(t, ledger.Messages(peer), "6")
}

func TestReconcileTempMovesWhenServerTimestampReorders(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("5", 1000))
	ledger.Ingest(serverMessage("7", 1020))
	temp := chat.Message{ID: chat.LocalID(1), Conversation: peer, Content: "hi", TimestampMs: 5000}
	ledger.Ingest(temp)
	assertIDs(t, ledger.Messages(peer), "5", "7", "temp-1")

	confirmed := serverMessage("6", 1010)
	ledger.ReconcileTemp(peer, temp.ID, confirmed)
	assertIDs(t, ledger.Messages(peer), "5", "6", "7")
}

func TestReconcileTempMissingIsNoop(t *testing.T) {
	ledger := New()
	if ledger.ReconcileTemp(peer, chat.LocalID(1), serverMessage("6", 1010)) {
		t.Fatal("ReconcileTemp on an empty ledger should report false")
	}
	ledger.Ingest(serverMessage("5", 1000))
	ledger.Reset(peer)
	if ledger.ReconcileTemp(peer, chat.LocalID(1), serverMessage("6", 1010)) {
		t.Fatal("ReconcileTemp after Reset should report false")
	}
	if ledger.Len(peer) != 0 {
		t.Fatal("no-op reconciliation inserted a message")
	}
}

func TestDeleteKeepsTombstoneInPlace(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("1", 100))
	media := serverMessage("2", 200)
	media.Type = chat.TypeImage
	media.MediaURL = "/uploads/cat.png"
	ledger.Ingest(media)
	ledger.Ingest(serverMessage("3", 300))

	if !ledger.Delete(peer, media.ID) {
		t.Fatal("Delete reported the message missing")
	}
	messages := ledger.Messages(peer)
	assertIDs(t, messages, "1", "2", "3")
	if messages[1].Type != chat.TypeDeleted || messages[1].Content != "" || messages[1].MediaURL != "" {
		t.Fatalf("tombstone = %+v", messages[1])
	}

	if ledger.Delete(peer, chat.ServerID("99")) {
		t.Fatal("Delete of an unknown ID should report false")
	}
}

func TestEditUnknownIsNoop(t *testing.T) {
	ledger := New()
	if ledger.Edit(serverMessage("1", 100)) {
		t.Fatal("Edit of an unknown ID should report false")
	}
	if ledger.Len(peer) != 0 {
		t.Fatal("Edit inserted a message")
	}
}

func TestRemoveForMe(t *testing.T) {
	ledger := New()
	ledger.Ingest(serverMessage("1", 100))
	ledger.Ingest(serverMessage("2", 200))
	if !ledger.Remove(peer, chat.ServerID("1")) {
		t.Fatal("Remove reported the message missing")
	}
	assertIDs(t, ledger.Messages(peer), "2")
	if ledger.Ingest(serverMessage("1", 100)) != Inserted {
		t.Fatal("a removed ID should no longer count as a duplicate")
	}
}

func TestPruneIsLogical(t *testing.T) {
	ledger := New()
	for i := 1; i <= 150; i++ {
		ledger.Ingest(serverMessage(strconv.Itoa(i), int64(i)))
	}
	ledger.Prune(peer, DefaultVisibleLimit)

	visible := ledger.Visible(peer)
	if len(visible) != DefaultVisibleLimit {
		t.Fatalf("Visible len = %d, want %d", len(visible), DefaultVisibleLimit)
	}
	if visible[0].ID.Value != "51" || visible[len(visible)-1].ID.Value != "150" {
		t.Fatalf("visible window = %s..%s, want 51..150", visible[0].ID, visible[len(visible)-1].ID)
	}
	if ledger.Len(peer) != 150 {
		t.Fatalf("Len = %d, pruning must not drop messages", ledger.Len(peer))
	}
	if ledger.Ingest(serverMessage("3", 3)) != Duplicate {
		t.Fatal("a pruned message must still be detected as a duplicate")
	}
}

func TestResetIsPerConversation(t *testing.T) {
	ledger := New()
	group := chat.GroupRef("9")
	ledger.Ingest(serverMessage("1", 100))
	groupMessage := serverMessage("1", 100)
	groupMessage.Conversation = group
	ledger.Ingest(groupMessage)

	ledger.Reset(peer)
	if ledger.Len(peer) != 0 {
		t.Fatal("Reset left messages behind")
	}
	if ledger.Len(group) != 1 {
		t.Fatal("Reset touched another conversation")
	}
}

func TestFindByKind(t *testing.T) {
	ledger := New()
	group := chat.GroupRef("9")
	groupMessage := serverMessage("77", 100)
	groupMessage.Conversation = group
	ledger.Ingest(groupMessage)

	if ref, ok := ledger.Find(chat.KindGroup, chat.ServerID("77")); !ok || ref != group {
		t.Fatalf("Find(group, 77) = %v, %v", ref, ok)
	}
	if _, ok := ledger.Find(chat.KindDirect, chat.ServerID("77")); ok {
		t.Fatal("Find matched a message of the wrong conversation kind")
	}
}

func TestSetDeliveryNeverRegresses(t *testing.T) {
	ledger := New()
	msg := serverMessage("5", 1000)
	ledger.Ingest(msg)

	if !ledger.SetDelivery(peer, msg.ID, 0, 3000) {
		t.Fatal("first read receipt reported no change")
	}
	if ledger.SetDelivery(peer, msg.ID, 2000, 0) {
		t.Fatal("older delivery receipt reported a change")
	}

	got, _ := ledger.Get(peer, msg.ID)
	if got.ReadAtMs != 3000 || got.DeliveredAtMs != 3000 {
		t.Fatalf("delivery fields = delivered %d read %d", got.DeliveredAtMs, got.ReadAtMs)
	}
}

func TestDigestTracksVisibleChanges(t *testing.T) {
	ledger := New()
	msg := serverMessage("5", 1000)
	ledger.Ingest(msg)
	before := ledger.Digest(peer)

	ledger.SetStarred(peer, msg.ID, true)
	if ledger.Digest(peer) == before {
		t.Fatal("starring did not change the digest")
	}
	if ledger.Digest(chat.GroupRef("none")) == before {
		t.Fatal("empty timeline digest collided with a populated one")
	}
}
