// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/netutil"
	"github.com/bureau-foundation/chatsync/lib/secret"
	"github.com/bureau-foundation/chatsync/lib/version"
	"github.com/bureau-foundation/chatsync/messaging"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

var (
	_ orchestrator.EventSource = (*Stream)(nil)
	_ orchestrator.Intents     = (*Stream)(nil)
)

const (
	initialBackoff = time.Second

	// pollSlack is how much longer than the server's hold time a poll
	// may take before the client gives up on it.
	pollSlack = 10 * time.Second

	intentTimeout = 10 * time.Second
)

// Config configures a Stream.
type Config struct {
	// ServerURL is the base URL of the chat server. Required.
	ServerURL string

	// LocalUser is the signed-in user. Required.
	LocalUser chat.UserID

	// Token is the bearer token. The Stream borrows it; the owner
	// (normally the messaging.Client) closes it.
	Token *secret.Buffer

	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used. Its Timeout, if set, must exceed PollTimeout.
	HTTPClient *http.Client

	// PollTimeout is how long the server may hold a poll open when it
	// has nothing to send. Default: 25 seconds.
	PollTimeout time.Duration

	// MaxBackoff caps the delay between retries of failed polls.
	// Default: 30 seconds.
	MaxBackoff time.Duration

	// OutboxSize bounds the queue of unsent intents. Default: 64.
	OutboxSize int

	// Clock drives backoff waits. If nil, clock.Real() is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Registerer receives the stream's metrics. Nil skips registration.
	Registerer prometheus.Registerer

	// Recorder, if set, receives every raw event before decoding.
	Recorder Recorder
}

// Stream is the long-poll push channel. Create it with New, subscribe
// a handler, and call Run.
type Stream struct {
	baseURL     string
	localUser   chat.UserID
	token       *secret.Buffer
	httpClient  *http.Client
	pollTimeout time.Duration
	maxBackoff  time.Duration
	clock       clock.Clock
	logger      *slog.Logger
	metrics     *Metrics
	recorder    Recorder

	outbox chan intent

	mu        sync.Mutex
	handler   orchestrator.EventHandler
	connected bool
}

// intent is a queued outbound signal.
type intent struct {
	kind string
	path string
	body map[string]any
}

// New creates a Stream.
func New(config Config) (*Stream, error) {
	if config.ServerURL == "" {
		return nil, fmt.Errorf("transport: ServerURL is required")
	}
	if _, err := url.Parse(config.ServerURL); err != nil {
		return nil, fmt.Errorf("transport: invalid ServerURL %q: %w", config.ServerURL, err)
	}
	if config.LocalUser == "" {
		return nil, fmt.Errorf("transport: LocalUser is required")
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.PollTimeout <= 0 {
		config.PollTimeout = 25 * time.Second
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = 30 * time.Second
	}
	if config.OutboxSize <= 0 {
		config.OutboxSize = 64
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	return &Stream{
		baseURL:     strings.TrimRight(config.ServerURL, "/"),
		localUser:   config.LocalUser,
		token:       config.Token,
		httpClient:  config.HTTPClient,
		pollTimeout: config.PollTimeout,
		maxBackoff:  config.MaxBackoff,
		clock:       config.Clock,
		logger:      config.Logger,
		metrics:     NewMetrics(config.Registerer),
		recorder:    config.Recorder,
		outbox:      make(chan intent, config.OutboxSize),
	}, nil
}

// Subscribe sets the handler events are delivered to, replacing any
// previous one. It implements orchestrator.EventSource.
func (s *Stream) Subscribe(handler orchestrator.EventHandler) (unsubscribe func()) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.handler == handler {
			s.handler = nil
		}
	}
}

// Connected reports whether the last poll succeeded.
func (s *Stream) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Run polls until ctx is cancelled, then returns nil. Intents are
// posted only while Run is active.
func (s *Stream) Run(ctx context.Context) error {
	var wait sync.WaitGroup
	wait.Add(1)
	go func() {
		defer wait.Done()
		s.sendLoop(ctx)
	}()
	defer wait.Wait()

	since := ""
	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		envelope, err := s.poll(ctx, since)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.metrics.Polls.WithLabelValues("error").Inc()
			s.setDisconnected(ctx, err)
			s.logger.Warn("push poll failed, retrying", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return nil
			case <-s.clock.After(backoff):
			}
			backoff *= 2
			if backoff > s.maxBackoff {
				backoff = s.maxBackoff
			}
			continue
		}

		backoff = initialBackoff
		s.metrics.Polls.WithLabelValues("ok").Inc()
		s.setConnected(ctx)
		if envelope.Next != "" {
			since = envelope.Next
		}
		for _, raw := range envelope.Events {
			s.dispatch(ctx, raw)
		}
	}
}

func (s *Stream) poll(ctx context.Context, since string) (Envelope, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.pollTimeout+pollSlack)
	defer cancel()

	query := url.Values{}
	query.Set("since", since)
	query.Set("timeout", strconv.FormatInt(s.pollTimeout.Milliseconds(), 10))

	request, err := http.NewRequestWithContext(pollCtx, http.MethodGet, s.baseURL+"/api/events?"+query.Encode(), nil)
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: creating poll request: %w", err)
	}
	s.authorize(request)
	request.Header.Set("Accept", "application/json")

	response, err := s.httpClient.Do(request)
	if err != nil {
		return Envelope{}, fmt.Errorf("transport: %w: poll: %w", chat.ErrNetworkFailure, err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNoContent {
		return Envelope{Next: since}, nil
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return Envelope{}, fmt.Errorf("transport: %w: poll returned %d: %s",
			chat.ErrNetworkFailure, response.StatusCode, netutil.ErrorBody(response.Body))
	}

	var envelope Envelope
	if err := netutil.DecodeResponse(response.Body, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("transport: %w: poll envelope: %v", chat.ErrMalformedPayload, err)
	}
	return envelope, nil
}

func (s *Stream) dispatch(ctx context.Context, raw RawEvent) {
	if s.recorder != nil {
		if err := s.recorder.Record(s.clock.Now(), raw); err != nil {
			s.logger.Warn("recording push event failed", "event", raw.Event, "error", err)
		}
	}
	event, err := messaging.DecodeEvent(raw.Event, raw.Data, s.localUser)
	switch {
	case errors.Is(err, messaging.ErrUnknownEvent):
		s.metrics.Events.WithLabelValues("unknown", "skipped").Inc()
		s.logger.Debug("skipping unknown push event", "event", raw.Event)
		return
	case err != nil:
		s.metrics.Events.WithLabelValues(raw.Event, "malformed").Inc()
		s.logger.Warn("dropping malformed push event", "event", raw.Event, "error", err)
		return
	case event == nil:
		s.metrics.Events.WithLabelValues(raw.Event, "skipped").Inc()
		return
	}
	s.metrics.Events.WithLabelValues(raw.Event, "ok").Inc()
	s.deliver(ctx, event)
}

func (s *Stream) deliver(ctx context.Context, event chat.Event) {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()
	if handler != nil {
		handler.HandleEvent(ctx, event)
	}
}

func (s *Stream) setConnected(ctx context.Context) {
	s.mu.Lock()
	changed := !s.connected
	s.connected = true
	s.mu.Unlock()
	if changed {
		s.metrics.Connected.Set(1)
		s.logger.Info("push channel connected")
		s.deliver(ctx, chat.Connected{})
	}
}

func (s *Stream) setDisconnected(ctx context.Context, cause error) {
	s.mu.Lock()
	changed := s.connected
	s.connected = false
	s.mu.Unlock()
	if changed {
		s.metrics.Connected.Set(0)
		s.deliver(ctx, chat.Disconnected{Err: cause})
	}
}

// SendTyping queues a typing start or stop for conversation. It
// implements orchestrator.Intents and never blocks.
func (s *Stream) SendTyping(conversation chat.ConversationRef, isTyping bool) {
	body := map[string]any{"is_typing": isTyping}
	switch conversation.Kind {
	case chat.KindGroup:
		body["group_id"] = conversation.ID
	case chat.KindDirect:
		body["receiver_id"] = conversation.ID
	default:
		return
	}
	s.enqueue(intent{kind: "typing", path: "/api/events/typing", body: body})
}

// JoinConversation subscribes to a group's events. Direct messages
// need no join. It implements orchestrator.Intents and never blocks.
func (s *Stream) JoinConversation(conversation chat.ConversationRef) {
	if !conversation.IsGroup() {
		return
	}
	s.enqueue(intent{
		kind: "join",
		path: "/api/events/join",
		body: map[string]any{"groups": []string{conversation.ID}},
	})
}

func (s *Stream) enqueue(item intent) {
	select {
	case s.outbox <- item:
	default:
		s.metrics.IntentsDropped.Inc()
		s.logger.Debug("outbox full, dropping intent", "kind", item.kind)
	}
}

func (s *Stream) sendLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-s.outbox:
			if err := s.post(ctx, item); err != nil {
				if ctx.Err() != nil {
					return
				}
				s.metrics.IntentsSent.WithLabelValues(item.kind, "error").Inc()
				s.logger.Warn("sending intent failed", "kind", item.kind, "error", err)
				continue
			}
			s.metrics.IntentsSent.WithLabelValues(item.kind, "ok").Inc()
		}
	}
}

func (s *Stream) post(ctx context.Context, item intent) error {
	encoded, err := json.Marshal(item.body)
	if err != nil {
		return fmt.Errorf("transport: encoding %s intent: %w", item.kind, err)
	}

	postCtx, cancel := context.WithTimeout(ctx, intentTimeout)
	defer cancel()

	request, err := http.NewRequestWithContext(postCtx, http.MethodPost, s.baseURL+item.path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("transport: creating %s request: %w", item.kind, err)
	}
	request.Header.Set("Content-Type", "application/json")
	s.authorize(request)

	response, err := s.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("transport: %w: %s: %w", chat.ErrNetworkFailure, item.kind, err)
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return fmt.Errorf("transport: %w: %s returned %d: %s",
			chat.ErrNetworkFailure, item.kind, response.StatusCode, netutil.ErrorBody(response.Body))
	}
	return nil
}

func (s *Stream) authorize(request *http.Request) {
	request.Header.Set("User-Agent", version.UserAgent())
	if s.token != nil {
		request.Header.Set("Authorization", s.token.BearerAuthorization())
	}
}
