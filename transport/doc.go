// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport is the realtime push channel between the chat
// server and the orchestrator.
//
// [Stream] long-polls GET /api/events?since=<token>&timeout=<ms>. Each
// response is an [Envelope] carrying a resume token and a list of
// [RawEvent] values, which are decoded by messaging.DecodeEvent and
// delivered in order to the subscribed handler. Unknown events are
// skipped; malformed ones are logged, counted, and skipped without
// affecting the rest of the envelope.
//
// Failed polls are retried with exponential backoff, starting at one
// second and capped at Config.MaxBackoff. The stream reports its
// connection state to the handler as chat.Connected (after the first
// successful poll, and after every recovery) and chat.Disconnected
// (when a poll fails while connected). Backoff waits use the injected
// clock, so tests drive reconnects with clock.Fake.
//
// Stream also implements the orchestrator's Intents. Typing and join
// signals are queued on a bounded outbox and posted by a separate
// goroutine, so callers never block; when the outbox is full the
// intent is dropped and counted.
//
// With Config.Recorder set, every raw event is handed to the recorder
// before decoding. [TraceWriter] stores them as a CBOR sequence of
// [TraceEntry] values, and [Replay] feeds such a trace back through the
// same decoding path into any handler.
package transport
