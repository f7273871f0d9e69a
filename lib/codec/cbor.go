// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Limits on decoded items. Snapshots and traces are small and shallow;
// a file that breaks these is corrupt, not large.
const (
	maxNestedLevels  = 16
	maxArrayElements = 1 << 20
	maxMapPairs      = 1 << 20
)

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	options := cbor.CoreDetEncOptions()
	// chat.ConversationRef and chat.Identity are TextMarshalers and
	// appear as map keys in snapshots, so they must encode as strings.
	options.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := options.EncMode()
	if err != nil {
		panic("codec: building CBOR encoder: " + err.Error())
	}
	return mode
}

func mustDecMode() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DefaultMapType:   reflect.TypeOf(map[string]any(nil)),
		TextUnmarshaler:  cbor.TextUnmarshalerTextString,
		MaxNestedLevels:  maxNestedLevels,
		MaxArrayElements: maxArrayElements,
		MaxMapPairs:      maxMapPairs,
	}.DecMode()
	if err != nil {
		panic("codec: building CBOR decoder: " + err.Error())
	}
	return mode
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) { return encMode.Marshal(v) }

// Unmarshal decodes data into v. Fields v does not know are skipped, so
// an older build reads what a newer one wrote.
func Unmarshal(data []byte, v any) error { return decMode.Unmarshal(data, v) }

// Encoder writes a CBOR sequence (RFC 8742), one item per Encode.
type Encoder = cbor.Encoder

// Decoder reads a CBOR sequence. Decode returns io.EOF after the last
// item.
type Decoder = cbor.Decoder

func NewEncoder(w io.Writer) *Encoder { return encMode.NewEncoder(w) }

func NewDecoder(r io.Reader) *Decoder { return decMode.NewDecoder(r) }

// DiagnoseFirst renders the first item of data in diagnostic notation
// (RFC 8949 §8) and returns the bytes after it.
func DiagnoseFirst(data []byte) (string, []byte, error) {
	return cbor.DiagnoseFirst(data)
}
