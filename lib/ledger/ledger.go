// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ledger holds the ordered, de-duplicated message timelines of
// every conversation the session has loaded.
//
// Pull responses and push events race to deliver the same message;
// the ledger's ID check is what makes ingesting both harmless. Each
// timeline stays sorted by (TimestampMs, ID) no matter the arrival
// order, and an optimistic message keeps its slot when its local
// identity is swapped for the server's.
//
// A Ledger is not safe for concurrent use. The orchestrator owns it and
// serializes access.
package ledger

import (
	"encoding/binary"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// DefaultVisibleLimit is the number of newest messages kept in a
// conversation's visible window after Prune.
const DefaultVisibleLimit = 100

// IngestResult reports what Ingest did with a message.
type IngestResult int

const (
	// Duplicate means the ID was already present and the message carried
	// nothing newer. The ledger is unchanged.
	Duplicate IngestResult = iota

	// Inserted means the message was new and now sits at its ordered
	// position.
	Inserted

	// Updated means the ID was present and the message carried a newer
	// edit or delete, which was applied in place.
	Updated
)

func (r IngestResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "duplicate"
	}
}

// Ledger maps conversations to their timelines.
type Ledger struct {
	timelines map[chat.ConversationRef]*timeline
}

// timeline is one conversation's messages in (TimestampMs, ID) order.
type timeline struct {
	entries []*chat.Message
	byID    map[chat.Identity]*chat.Message

	// visibleLimit bounds Visible; zero shows everything.
	visibleLimit int
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{timelines: make(map[chat.ConversationRef]*timeline)}
}

func (l *Ledger) timeline(ref chat.ConversationRef, create bool) *timeline {
	line := l.timelines[ref]
	if line == nil && create {
		line = &timeline{byID: make(map[chat.Identity]*chat.Message)}
		l.timelines[ref] = line
	}
	return line
}

// Ingest adds msg to its conversation's timeline.
func (l *Ledger) Ingest(msg chat.Message) IngestResult {
	line := l.timeline(msg.Conversation, true)
	if existing, ok := line.byID[msg.ID]; ok {
		if !msg.IsNewerRevisionOf(existing) {
			return Duplicate
		}
		applyRevision(existing, &msg)
		return Updated
	}
	stored := msg
	line.insert(&stored)
	return Inserted
}

// Edit applies an edit event to the message it references. It reports
// false when the ledger does not hold that message.
func (l *Ledger) Edit(msg chat.Message) bool {
	existing := l.lookup(msg.Conversation, msg.ID)
	if existing == nil {
		return false
	}
	applyRevision(existing, &msg)
	return true
}

// applyRevision copies the editable fields of revision onto existing.
// Everything else on existing is kept.
func applyRevision(existing, revision *chat.Message) {
	if revision.Type == chat.TypeDeleted {
		existing.Tombstone()
	} else {
		existing.Content = revision.Content
		if revision.Type != "" {
			existing.Type = revision.Type
		}
	}
	if revision.EditedAtMs > existing.EditedAtMs {
		existing.EditedAtMs = revision.EditedAtMs
	}
}

// Delete turns the referenced message into a tombstone in place.
func (l *Ledger) Delete(ref chat.ConversationRef, id chat.Identity) bool {
	existing := l.lookup(ref, id)
	if existing == nil {
		return false
	}
	existing.Tombstone()
	return true
}

// ReconcileTemp replaces the optimistic message tempID with the
// server's confirmed copy, in the same slot. It does nothing and
// reports false when tempID is not present, which happens when the
// conversation was reset while the send was in flight.
//
// If the server ID is already present because a pull delivered it
// first, the optimistic entry is dropped instead. If the server
// timestamp no longer fits between the slot's neighbours the entry
// moves to its ordered position.
func (l *Ledger) ReconcileTemp(ref chat.ConversationRef, tempID chat.Identity, server chat.Message) bool {
	line := l.timeline(ref, false)
	if line == nil {
		return false
	}
	index := line.indexOf(tempID)
	if index < 0 {
		return false
	}
	temp := line.entries[index]

	if _, exists := line.byID[server.ID]; exists {
		line.removeAt(index)
		return true
	}

	confirmed := server
	confirmed.Conversation = ref
	if confirmed.SenderName == "" {
		confirmed.SenderName = temp.SenderName
	}
	if confirmed.ReplyToID == "" {
		confirmed.ReplyToID = temp.ReplyToID
	}
	confirmed.Starred = confirmed.Starred || temp.Starred
	confirmed.Failed = false

	delete(line.byID, tempID)
	line.entries[index] = &confirmed
	line.byID[confirmed.ID] = &confirmed

	if !line.inOrderAt(index) {
		line.removeAt(index)
		line.insert(&confirmed)
	}
	return true
}

// MarkFailed flags an optimistic message whose send was rejected.
func (l *Ledger) MarkFailed(ref chat.ConversationRef, id chat.Identity) bool {
	existing := l.lookup(ref, id)
	if existing == nil {
		return false
	}
	existing.Failed = true
	return true
}

// SetDelivery records delivery and read times. Zero arguments leave the
// field alone, and a recorded time is never replaced. It reports
// whether anything changed.
func (l *Ledger) SetDelivery(ref chat.ConversationRef, id chat.Identity, deliveredAtMs, readAtMs int64) bool {
	existing := l.lookup(ref, id)
	if existing == nil {
		return false
	}
	changed := false
	if readAtMs > 0 && existing.ReadAtMs == 0 {
		existing.ReadAtMs = readAtMs
		changed = true
		if deliveredAtMs <= 0 {
			deliveredAtMs = readAtMs
		}
	}
	if deliveredAtMs > 0 && existing.DeliveredAtMs == 0 {
		existing.DeliveredAtMs = deliveredAtMs
		changed = true
	}
	return changed
}

// SetStarred sets the starred flag.
func (l *Ledger) SetStarred(ref chat.ConversationRef, id chat.Identity, starred bool) bool {
	existing := l.lookup(ref, id)
	if existing == nil {
		return false
	}
	existing.Starred = starred
	return true
}

// Remove physically drops a message. Only delete-for-me uses this; a
// delete for everyone keeps the row as a tombstone.
func (l *Ledger) Remove(ref chat.ConversationRef, id chat.Identity) bool {
	line := l.timeline(ref, false)
	if line == nil {
		return false
	}
	index := line.indexOf(id)
	if index < 0 {
		return false
	}
	line.removeAt(index)
	return true
}

// Prune limits the conversation's visible window to its newest
// maxVisible messages. Trimmed messages stay in the ledger so duplicate
// detection and reconciliation keep working.
func (l *Ledger) Prune(ref chat.ConversationRef, maxVisible int) {
	if line := l.timeline(ref, false); line != nil {
		line.visibleLimit = maxVisible
	}
}

// Reset forgets one conversation. Other conversations are untouched.
func (l *Ledger) Reset(ref chat.ConversationRef) {
	delete(l.timelines, ref)
}

// Get returns a copy of the referenced message.
func (l *Ledger) Get(ref chat.ConversationRef, id chat.Identity) (chat.Message, bool) {
	existing := l.lookup(ref, id)
	if existing == nil {
		return chat.Message{}, false
	}
	return *existing, true
}

// Find locates a message by ID among conversations of the given kind.
// Delete events only name the kind, so this is how they are routed.
func (l *Ledger) Find(kind chat.ConversationKind, id chat.Identity) (chat.ConversationRef, bool) {
	for ref, line := range l.timelines {
		if ref.Kind != kind {
			continue
		}
		if _, ok := line.byID[id]; ok {
			return ref, true
		}
	}
	return chat.ConversationRef{}, false
}

// Len returns the number of messages held for ref, visible or not.
func (l *Ledger) Len(ref chat.ConversationRef) int {
	line := l.timeline(ref, false)
	if line == nil {
		return 0
	}
	return len(line.entries)
}

// Messages returns copies of every message held for ref, in order.
func (l *Ledger) Messages(ref chat.ConversationRef) []chat.Message {
	line := l.timeline(ref, false)
	if line == nil {
		return nil
	}
	return copyMessages(line.entries)
}

// Visible returns copies of the messages in ref's visible window.
func (l *Ledger) Visible(ref chat.ConversationRef) []chat.Message {
	line := l.timeline(ref, false)
	if line == nil {
		return nil
	}
	return copyMessages(line.visible())
}

// Digest hashes the visible window. Two calls return the same digest
// exactly when a render of the window would draw the same thing.
func (l *Ledger) Digest(ref chat.ConversationRef) [32]byte {
	hasher := blake3.New()
	var scratch []byte
	if line := l.timeline(ref, false); line != nil {
		for _, msg := range line.visible() {
			scratch = scratch[:0]
			scratch = append(scratch, byte(msg.ID.Kind))
			scratch = binary.AppendUvarint(scratch, uint64(len(msg.ID.Value)))
			scratch = append(scratch, msg.ID.Value...)
			scratch = binary.AppendVarint(scratch, msg.TimestampMs)
			scratch = binary.AppendVarint(scratch, msg.EditedAtMs)
			scratch = binary.AppendVarint(scratch, msg.DeliveredAtMs)
			scratch = binary.AppendVarint(scratch, msg.ReadAtMs)
			scratch = append(scratch, flagByte(msg.Starred), flagByte(msg.Failed))
			scratch = binary.AppendUvarint(scratch, uint64(len(msg.Type)))
			scratch = append(scratch, msg.Type...)
			for _, field := range []string{msg.Content, string(msg.SenderID), msg.SenderName, msg.MediaURL, msg.MediaMime, msg.ReplyToID} {
				scratch = binary.AppendUvarint(scratch, uint64(len(field)))
				scratch = append(scratch, field...)
			}
			hasher.Write(scratch)
		}
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest
}

func flagByte(flag bool) byte {
	if flag {
		return 1
	}
	return 0
}

func (l *Ledger) lookup(ref chat.ConversationRef, id chat.Identity) *chat.Message {
	line := l.timeline(ref, false)
	if line == nil {
		return nil
	}
	return line.byID[id]
}

// insert places msg after every entry that does not sort after it, so
// equal keys keep arrival order.
func (t *timeline) insert(msg *chat.Message) {
	index := sort.Search(len(t.entries), func(i int) bool {
		return t.entries[i].Compare(msg) > 0
	})
	t.entries = append(t.entries, nil)
	copy(t.entries[index+1:], t.entries[index:])
	t.entries[index] = msg
	t.byID[msg.ID] = msg
}

func (t *timeline) removeAt(index int) {
	delete(t.byID, t.entries[index].ID)
	t.entries = append(t.entries[:index], t.entries[index+1:]...)
}

// indexOf scans from the newest end, where optimistic messages live.
func (t *timeline) indexOf(id chat.Identity) int {
	if _, ok := t.byID[id]; !ok {
		return -1
	}
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].ID == id {
			return i
		}
	}
	return -1
}

func (t *timeline) inOrderAt(index int) bool {
	entry := t.entries[index]
	if index > 0 && t.entries[index-1].Compare(entry) > 0 {
		return false
	}
	if index < len(t.entries)-1 && entry.Compare(t.entries[index+1]) > 0 {
		return false
	}
	return true
}

func (t *timeline) visible() []*chat.Message {
	if t.visibleLimit <= 0 || len(t.entries) <= t.visibleLimit {
		return t.entries
	}
	return t.entries[len(t.entries)-t.visibleLimit:]
}

func copyMessages(entries []*chat.Message) []chat.Message {
	result := make([]chat.Message, len(entries))
	for i, entry := range entries {
		result[i] = *entry
	}
	return result
}
