// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/codec"
)

// FormatVersion is the header version written by Encode.
const FormatVersion = 1

const (
	magic      = "CHSN"
	headerSize = len(magic) + 1 + 1 + 4 + blake3Size
	blake3Size = 32

	// ageHeader starts every binary age file.
	ageHeader = "age-encryption.org/v1"
)

var (
	// ErrCorrupt is returned when a snapshot fails its checksum or
	// cannot be parsed.
	ErrCorrupt = errors.New("snapshot: corrupt snapshot")

	// ErrSealed is returned when a sealed snapshot is decoded without
	// an identity that can open it.
	ErrSealed = errors.New("snapshot: snapshot is sealed")
)

// Snapshot is the session metadata that survives a restart.
type Snapshot struct {
	LocalUser chat.UserID `cbor:"local_user"`
	SavedAtMs int64       `cbor:"saved_at_ms"`

	// Active is the conversation that was open, if any. It is reopened
	// on restore with a fresh initial pull.
	Active chat.ConversationRef `cbor:"active"`

	Conversations []Conversation `cbor:"conversations"`
	Invites       int            `cbor:"invites"`

	// LastSeen maps users to their last-seen time in Unix
	// milliseconds.
	LastSeen map[chat.UserID]int64 `cbor:"last_seen,omitempty"`
}

// Conversation is one sidebar entry.
type Conversation struct {
	Ref            chat.ConversationRef `cbor:"ref"`
	Name           string               `cbor:"name"`
	LastActivityMs int64                `cbor:"last_activity_ms"`
	PinnedRank     *int                 `cbor:"pinned_rank,omitempty"`
	Archived       bool                 `cbor:"archived,omitempty"`
	MutedUntilMs   int64                `cbor:"muted_until_ms,omitempty"`
	Unread         int                  `cbor:"unread,omitempty"`
}

// Options control Encode.
type Options struct {
	// Compression for the body. Incompressible bodies are stored
	// uncompressed whatever this says.
	Compression Compression

	// Recipients are age X25519 public keys (age1...). When set, the
	// snapshot is sealed to all of them.
	Recipients []string
}

// Encode serializes snapshot.
func Encode(snapshot Snapshot, options Options) ([]byte, error) {
	body, err := codec.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encoding body: %w", err)
	}
	if len(body) > math.MaxUint32 {
		return nil, fmt.Errorf("snapshot: body too large (%d bytes)", len(body))
	}

	tag := options.Compression
	compressed, err := compress(body, tag)
	if errors.Is(err, errIncompressible) {
		tag, compressed = CompressionNone, body
	} else if err != nil {
		return nil, err
	}

	sum := blake3.Sum256(body)
	output := make([]byte, 0, headerSize+len(compressed))
	output = append(output, magic...)
	output = append(output, FormatVersion, byte(tag))
	output = binary.BigEndian.AppendUint32(output, uint32(len(body)))
	output = append(output, sum[:]...)
	output = append(output, compressed...)

	if len(options.Recipients) == 0 {
		return output, nil
	}
	return seal(output, options.Recipients)
}

// Decode parses a snapshot produced by Encode. identities are age
// secret keys (AGE-SECRET-KEY-1...) tried against a sealed snapshot;
// they are ignored for an unsealed one.
func Decode(data []byte, identities ...string) (Snapshot, error) {
	if IsSealed(data) {
		opened, err := unseal(data, identities)
		if err != nil {
			return Snapshot{}, err
		}
		data = opened
	}

	if len(data) < headerSize || string(data[:len(magic)]) != magic {
		return Snapshot{}, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	position := len(magic)
	version := data[position]
	if version != FormatVersion {
		return Snapshot{}, fmt.Errorf("snapshot: unsupported format version %d", version)
	}
	tag := Compression(data[position+1])
	size := int(binary.BigEndian.Uint32(data[position+2:]))
	var sum [blake3Size]byte
	copy(sum[:], data[position+6:headerSize])

	body, err := decompress(data[headerSize:], tag, size)
	if err != nil {
		return Snapshot{}, err
	}
	if blake3.Sum256(body) != sum {
		return Snapshot{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	var snapshot Snapshot
	if err := codec.Unmarshal(body, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return snapshot, nil
}

// IsSealed reports whether data is an age-sealed snapshot.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, []byte(ageHeader))
}

func seal(plaintext []byte, recipientKeys []string) ([]byte, error) {
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("snapshot: invalid recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, recipients...)
	if err != nil {
		return nil, fmt.Errorf("snapshot: sealing: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("snapshot: sealing: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("snapshot: finishing seal: %w", err)
	}
	return sealed.Bytes(), nil
}

func unseal(data []byte, identityKeys []string) ([]byte, error) {
	if len(identityKeys) == 0 {
		return nil, ErrSealed
	}
	identities := make([]age.Identity, 0, len(identityKeys))
	for _, key := range identityKeys {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(key))
		if err != nil {
			return nil, fmt.Errorf("snapshot: invalid identity: %w", err)
		}
		identities = append(identities, identity)
	}

	reader, err := age.Decrypt(bytes.NewReader(data), identities...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSealed, err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("snapshot: reading sealed snapshot: %w", err)
	}
	return plaintext, nil
}

// WriteFile encodes snapshot and writes it to path atomically: the data
// goes to a temporary file in the same directory, is synced, and is
// renamed into place. The file is created with mode 0600.
func WriteFile(path string, snapshot Snapshot, options Options) error {
	data, err := Encode(snapshot, options)
	if err != nil {
		return err
	}

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("snapshot: creating temporary file: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: writing temporary file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: syncing temporary file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: closing temporary file: %w", err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("snapshot: renaming into place: %w", err)
	}

	if directory, err := os.Open(filepath.Dir(path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// ReadFile reads and decodes the snapshot at path. A missing file
// returns an error wrapping os.ErrNotExist.
func ReadFile(path string, identities ...string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: %w", err)
	}
	snapshot, err := Decode(data, identities...)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%s: %w", path, err)
	}
	return snapshot, nil
}
