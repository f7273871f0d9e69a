// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/codec"
	"github.com/bureau-foundation/chatsync/messaging"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// Recorder receives every raw push event before it is decoded.
type Recorder interface {
	Record(receivedAt time.Time, raw RawEvent) error
}

// TraceEntry is one recorded push event. A trace file is a CBOR
// sequence of entries in arrival order.
type TraceEntry struct {
	ReceivedAtMs int64  `cbor:"received_at_ms"`
	Event        string `cbor:"event"`
	Data         []byte `cbor:"data,omitempty"`
}

// TraceWriter records push events to a CBOR sequence. It is safe for
// concurrent use.
type TraceWriter struct {
	mu      sync.Mutex
	encoder *codec.Encoder
}

var _ Recorder = (*TraceWriter)(nil)

// NewTraceWriter returns a TraceWriter appending to w. The caller owns
// w and closes it after the stream stops.
func NewTraceWriter(w io.Writer) *TraceWriter {
	return &TraceWriter{encoder: codec.NewEncoder(w)}
}

// Record appends one entry.
func (w *TraceWriter) Record(receivedAt time.Time, raw RawEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	entry := TraceEntry{
		ReceivedAtMs: receivedAt.UnixMilli(),
		Event:        raw.Event,
		Data:         []byte(raw.Data),
	}
	if err := w.encoder.Encode(entry); err != nil {
		return fmt.Errorf("transport: recording %s: %w", raw.Event, err)
	}
	return nil
}

// TraceReader reads entries back from a trace.
type TraceReader struct {
	decoder *codec.Decoder
}

// NewTraceReader returns a TraceReader over r.
func NewTraceReader(r io.Reader) *TraceReader {
	return &TraceReader{decoder: codec.NewDecoder(r)}
}

// Next returns the next entry, or io.EOF after the last one.
func (r *TraceReader) Next() (TraceEntry, error) {
	var entry TraceEntry
	if err := r.decoder.Decode(&entry); err != nil {
		if errors.Is(err, io.EOF) {
			return TraceEntry{}, io.EOF
		}
		return TraceEntry{}, fmt.Errorf("transport: %w: trace entry: %v", chat.ErrMalformedPayload, err)
	}
	return entry, nil
}

// ReplayStats counts what a replay did with each entry.
type ReplayStats struct {
	Delivered int
	Skipped   int
	Malformed int
}

// Replay decodes every entry of a trace the way a live Stream would and
// delivers the events to handler. Entries that do not decode are
// counted and skipped; an unreadable trace stops the replay with an
// error. The original timing is not reproduced.
func Replay(ctx context.Context, trace io.Reader, local chat.UserID, handler orchestrator.EventHandler, logger *slog.Logger) (ReplayStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	reader := NewTraceReader(trace)
	var stats ReplayStats
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		entry, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		event, err := messaging.DecodeEvent(entry.Event, entry.Data, local)
		switch {
		case errors.Is(err, messaging.ErrUnknownEvent):
			stats.Skipped++
			continue
		case err != nil:
			stats.Malformed++
			logger.Warn("skipping malformed trace entry",
				"event", entry.Event,
				"received_at_ms", entry.ReceivedAtMs,
				"error", err,
			)
			continue
		case event == nil:
			stats.Skipped++
			continue
		}
		handler.HandleEvent(ctx, event)
		stats.Delivered++
	}
}
