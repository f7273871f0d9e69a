// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// IdentityKind discriminates Identity.
type IdentityKind uint8

const (
	// ServerIdentity is a durable ID assigned by the server.
	ServerIdentity IdentityKind = iota + 1

	// LocalIdentity is a placeholder for an optimistically rendered
	// message that the server has not confirmed yet.
	LocalIdentity
)

// localPrefix is the display form of a local identity. It never
// appears in a ServerID and is never parsed back for matching.
const localPrefix = "temp-"

// Identity is a message ID tagged with where it came from. A local
// identity is replaced by the server identity on confirmation; the tag
// is what the ledger matches on, not any string prefix.
type Identity struct {
	Kind  IdentityKind
	Value string
}

// ServerID wraps a server-assigned message ID.
func ServerID(id string) Identity { return Identity{Kind: ServerIdentity, Value: id} }

// LocalID returns the local identity for sequence number seq.
func LocalID(seq int64) Identity {
	return Identity{Kind: LocalIdentity, Value: strconv.FormatInt(seq, 10)}
}

// IsLocal reports whether the identity is an unconfirmed placeholder.
func (id Identity) IsLocal() bool { return id.Kind == LocalIdentity }

// IsZero reports whether id is unset.
func (id Identity) IsZero() bool { return id.Kind == 0 && id.Value == "" }

// String renders the identity: the bare server ID, or "temp-<seq>".
func (id Identity) String() string {
	if id.Kind == LocalIdentity {
		return localPrefix + id.Value
	}
	return id.Value
}

// Compare orders identities for the timestamp tie-break. Server
// identities sort before local ones. Within a kind, values that parse
// as integers sort before values that do not; integers compare
// numerically and everything else lexically. Equal integers spelled
// differently ("7", "07") fall back to the lexical order, so Compare
// returns 0 only for equal identities.
func (id Identity) Compare(other Identity) int {
	if id.Kind != other.Kind {
		if id.Kind < other.Kind {
			return -1
		}
		return 1
	}
	left, leftErr := strconv.ParseInt(id.Value, 10, 64)
	right, rightErr := strconv.ParseInt(other.Value, 10, 64)
	switch {
	case leftErr == nil && rightErr != nil:
		return -1
	case leftErr != nil && rightErr == nil:
		return 1
	case leftErr == nil && rightErr == nil && left != right:
		if left < right {
			return -1
		}
		return 1
	}
	return strings.Compare(id.Value, other.Value)
}

// MarshalText implements encoding.TextMarshaler.
func (id Identity) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. The "temp-" form
// is accepted only because MarshalText produces it for local
// identities persisted by this client; server payloads are decoded
// with ServerID and never go through here.
func (id *Identity) UnmarshalText(data []byte) error {
	raw := string(data)
	if raw == "" {
		return fmt.Errorf("empty message identity")
	}
	if seq, ok := strings.CutPrefix(raw, localPrefix); ok {
		*id = Identity{Kind: LocalIdentity, Value: seq}
		return nil
	}
	*id = ServerID(raw)
	return nil
}
