// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"strings"
)

// UserID identifies an account on the chat server. Servers send numeric
// IDs; they are kept as decimal strings so comparisons never depend on
// JSON number handling.
type UserID string

// ConversationKind discriminates ConversationRef.
type ConversationKind string

const (
	// KindDirect is a one-to-one conversation keyed by the peer's user ID.
	KindDirect ConversationKind = "dm"

	// KindGroup is a group conversation keyed by the group ID.
	KindGroup ConversationKind = "group"
)

// ConversationRef is the tagged identity of a conversation:
// {dm, peerID} or {group, groupID}. It is a comparable value type and
// is used directly as a map key.
type ConversationRef struct {
	Kind ConversationKind
	ID   string
}

// DirectRef returns the reference for the direct conversation with peer.
func DirectRef(peer UserID) ConversationRef {
	return ConversationRef{Kind: KindDirect, ID: string(peer)}
}

// GroupRef returns the reference for a group conversation.
func GroupRef(groupID string) ConversationRef {
	return ConversationRef{Kind: KindGroup, ID: groupID}
}

// ParseConversationRef parses the "kind:id" form produced by String.
func ParseConversationRef(raw string) (ConversationRef, error) {
	kind, id, found := strings.Cut(raw, ":")
	if !found || id == "" {
		return ConversationRef{}, fmt.Errorf("conversation reference must be kind:id: %q", raw)
	}
	switch ConversationKind(kind) {
	case KindDirect, KindGroup:
	default:
		return ConversationRef{}, fmt.Errorf("unknown conversation kind %q in %q", kind, raw)
	}
	return ConversationRef{Kind: ConversationKind(kind), ID: id}, nil
}

// String returns "dm:<peer>" or "group:<id>".
func (r ConversationRef) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether r refers to no conversation.
func (r ConversationRef) IsZero() bool { return r.Kind == "" && r.ID == "" }

// IsGroup reports whether r is a group conversation.
func (r ConversationRef) IsGroup() bool { return r.Kind == KindGroup }

// Peer returns the peer user of a direct conversation, or "" for a group.
func (r ConversationRef) Peer() UserID {
	if r.Kind != KindDirect {
		return ""
	}
	return UserID(r.ID)
}

// MarshalText implements encoding.TextMarshaler so references work as
// JSON and CBOR map keys.
func (r ConversationRef) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ConversationRef) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*r = ConversationRef{}
		return nil
	}
	parsed, err := ParseConversationRef(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
