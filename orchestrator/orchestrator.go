// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package orchestrator is the top of the sync core. It merges pull
// responses and push events into the message ledger, keeps the sidebar
// ranking, delivery states, and presence current, and decides when the
// user is alerted.
//
// Every mutation runs under one mutex, which plays the part of a single
// event loop: push handlers, timer callbacks, and user actions never
// interleave. Network calls are made with the lock released; when they
// return, the orchestrator checks whether the SyncSession that issued
// them is still the current one and discards the result if not.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/delivery"
	"github.com/bureau-foundation/chatsync/lib/ledger"
	"github.com/bureau-foundation/chatsync/lib/notify"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
)

// Defaults for Config fields left at zero.
const (
	DefaultPageLimit            = 50
	DefaultSettleWindow         = 250 * time.Millisecond
	DefaultStickToBottom        = 120
	DefaultOutboundTypingIdle   = 1500 * time.Millisecond
	DefaultBadgePollDelay       = 3 * time.Second
	DefaultBadgePollInterval    = 15 * time.Second
	DefaultBadgeRefreshInterval = 2 * time.Second
)

// Config configures an Orchestrator.
type Config struct {
	// LocalUser is the signed-in user. Required.
	LocalUser chat.UserID

	// Backend is the server API. Required.
	Backend Backend

	// Intents, Presenter, and Notifier default to no-op implementations.
	Intents   Intents
	Presenter Presenter
	Notifier  Notifier

	// Clock defaults to clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Locale drives sidebar name collation. Defaults to language.Und.
	Locale language.Tag

	// PageLimit bounds the initial pull of a conversation.
	PageLimit int

	// VisibleLimit bounds the rendered timeline window.
	VisibleLimit int

	// SettleWindow is how long alerts stay suppressed after the first
	// paint of a conversation.
	SettleWindow time.Duration

	// StickToBottom is the distance from the bottom within which a new
	// message keeps the timeline scrolled to the end. Zero selects
	// DefaultStickToBottom. A negative value turns auto-scroll off for
	// new messages; the first paint still scrolls.
	StickToBottom int

	TypingExpiry       time.Duration
	OutboundTypingIdle time.Duration

	BadgePollDelay    time.Duration
	BadgePollInterval time.Duration

	// BadgeRefreshInterval is the minimum spacing of push-triggered
	// badge refreshes. Polls are not limited.
	BadgeRefreshInterval time.Duration

	// PreviewLength caps notification previews in runes.
	PreviewLength int

	// Registerer receives the orchestrator's metrics. Nil skips
	// registration.
	Registerer prometheus.Registerer
}

// Orchestrator coordinates one signed-in session.
type Orchestrator struct {
	local     chat.UserID
	backend   Backend
	intents   Intents
	presenter Presenter
	notifier  Notifier
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics

	pageLimit          int
	visibleLimit       int
	settleWindow       time.Duration
	stickToBottom      int
	outboundTypingIdle time.Duration
	badgePollDelay     time.Duration
	badgePollInterval  time.Duration
	previewLength      int

	presence *presence.Tracker

	mu           sync.Mutex
	ledger       *ledger.Ledger
	board        *ranking.Board
	delivery     *delivery.Tracker
	session      *SyncSession
	visible      bool
	closed       bool
	lastLocalSeq int64
	badgeLimiter *rate.Limiter
	badgeTimer   *clock.Timer
	unsubscribe  func()

	// baseContext is the context handed to Start. Timer-driven work
	// (badge polls) runs under it.
	baseContext context.Context
}

// New creates an Orchestrator. No conversation is open and no timers
// run until Start and Switch are called.
func New(config Config) (*Orchestrator, error) {
	if config.LocalUser == "" {
		return nil, fmt.Errorf("orchestrator: LocalUser is required")
	}
	if config.Backend == nil {
		return nil, fmt.Errorf("orchestrator: Backend is required")
	}

	o := &Orchestrator{
		local:              config.LocalUser,
		backend:            config.Backend,
		intents:            config.Intents,
		presenter:          config.Presenter,
		notifier:           config.Notifier,
		clock:              config.Clock,
		logger:             config.Logger,
		metrics:            NewMetrics(config.Registerer),
		pageLimit:          orDefault(config.PageLimit, DefaultPageLimit),
		visibleLimit:       orDefault(config.VisibleLimit, ledger.DefaultVisibleLimit),
		settleWindow:       orDefault(config.SettleWindow, DefaultSettleWindow),
		stickToBottom:      orDefault(config.StickToBottom, DefaultStickToBottom),
		outboundTypingIdle: orDefault(config.OutboundTypingIdle, DefaultOutboundTypingIdle),
		badgePollDelay:     orDefault(config.BadgePollDelay, DefaultBadgePollDelay),
		badgePollInterval:  orDefault(config.BadgePollInterval, DefaultBadgePollInterval),
		previewLength:      orDefault(config.PreviewLength, notify.DefaultPreviewLength),
		ledger:             ledger.New(),
		delivery:           delivery.NewTracker(config.LocalUser),
		session:            newSession(0, chat.ConversationRef{}),
		visible:            true,
		baseContext:        context.Background(),
	}
	if config.StickToBottom < 0 {
		o.stickToBottom = -1
	}
	if o.intents == nil {
		o.intents = discardIntents{}
	}
	if o.presenter == nil {
		o.presenter = DiscardPresenter{}
	}
	if o.notifier == nil {
		o.notifier = discardNotifier{}
	}
	if o.clock == nil {
		o.clock = clock.Real()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	o.board = ranking.NewBoard(ranking.NewRanker(config.Locale))
	refreshInterval := orDefault(config.BadgeRefreshInterval, DefaultBadgeRefreshInterval)
	o.badgeLimiter = rate.NewLimiter(rate.Every(refreshInterval), 1)

	tracker, err := presence.NewTracker(presence.Config{
		LocalUser:      config.LocalUser,
		Lookup:         config.Backend,
		Clock:          o.clock,
		TypingExpiry:   config.TypingExpiry,
		OnTypingChange: o.presenter.RenderTyping,
		Logger:         o.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.presence = tracker
	return o, nil
}

func orDefault[T int | time.Duration](value, fallback T) T {
	if value <= 0 {
		return fallback
	}
	return value
}

// Start subscribes to source (if non-nil) and starts badge polling.
// ctx bounds timer-driven work for the life of the orchestrator.
func (o *Orchestrator) Start(ctx context.Context, source EventSource) {
	o.mu.Lock()
	o.baseContext = ctx
	if o.visible {
		o.scheduleBadgePollLocked(o.badgePollDelay)
	}
	o.mu.Unlock()

	if source != nil {
		unsubscribe := source.Subscribe(o)
		o.mu.Lock()
		o.unsubscribe = unsubscribe
		o.mu.Unlock()
	}
}

// Close stops every timer and ends the event subscription. The
// orchestrator ignores events and timer callbacks afterwards.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	o.closed = true
	o.session.stopTimers()
	o.badgeTimer.Stop()
	o.badgeTimer = nil
	unsubscribe := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	o.presence.Close()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Session returns a copy of the current session's public fields.
func (o *Orchestrator) Session() SyncSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return SyncSession{
		Generation: o.session.Generation,
		Active:     o.session.Active,
		Cursor:     o.session.Cursor,
		State:      o.session.State,
	}
}

// Timeline returns the visible messages of conversation.
func (o *Orchestrator) Timeline(conversation chat.ConversationRef) []chat.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ledger.Visible(conversation)
}

// Sidebar returns every known conversation in ranked order.
func (o *Orchestrator) Sidebar() []ranking.Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.board.Ranked()
}

// Summary returns one conversation's sidebar entry.
func (o *Orchestrator) Summary(conversation chat.ConversationRef) (ranking.Summary, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.board.Get(conversation)
}

// DeliveryState returns the delivery state of an outbound message.
func (o *Orchestrator) DeliveryState(id chat.Identity) delivery.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.delivery.State(id)
}

// Typing returns the active conversation's typing indicator.
func (o *Orchestrator) Typing() presence.TypingState { return o.presence.Typing() }

// AddConversation puts a conversation on the sidebar, for example from
// the server's conversation list. The stored last activity never moves
// backwards.
func (o *Orchestrator) AddConversation(summary ranking.Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.board.Upsert(summary)
	o.renderSidebarLocked()
}

func (o *Orchestrator) renderTimelineLocked() {
	active := o.session.Active
	if active.IsZero() {
		return
	}
	o.ledger.Prune(active, o.visibleLimit)
	digest := o.ledger.Digest(active)
	if o.session.rendered && digest == o.session.renderedDigest {
		return
	}
	o.session.renderedDigest = digest
	o.session.rendered = true
	o.presenter.RenderTimeline(active, o.ledger.Visible(active))
}

func (o *Orchestrator) renderSidebarLocked() {
	o.presenter.RenderSidebar(o.board.Ranked(), o.board.Invites())
	o.metrics.UnreadMessages.Set(float64(o.board.TotalUnread()))
}

func (o *Orchestrator) setStateLocked(state State) {
	o.session.State = state
	o.presenter.RenderState(o.session.Active, state)
}

// mutedLocked reports whether alerts for conversation are muted now.
func (o *Orchestrator) mutedLocked(conversation chat.ConversationRef) bool {
	summary, ok := o.board.Get(conversation)
	return ok && summary.Muted(o.clock.Now())
}

// notifyLocked raises an OS notification for msg when the session is
// in the background and the conversation is not muted.
func (o *Orchestrator) notifyLocked(msg chat.Message) {
	if o.visible || o.mutedLocked(msg.Conversation) {
		return
	}
	name := msg.SenderName
	if name == "" {
		if summary, ok := o.board.Get(chat.DirectRef(msg.SenderID)); ok && summary.Name != summary.Ref.ID {
			name = summary.Name
		}
	}
	o.notifier.Notify(notify.SenderLabel(name, msg.SenderID), notify.Preview(msg, o.previewLength), msg.ID.String())
	o.metrics.Notifications.Inc()
}

// nextLocalSeqLocked returns a sequence number for a new local
// identity: the current time in milliseconds, bumped past the previous
// one when two sends land in the same millisecond.
func (o *Orchestrator) nextLocalSeqLocked(nowMs int64) int64 {
	seq := nowMs
	if seq <= o.lastLocalSeq {
		seq = o.lastLocalSeq + 1
	}
	o.lastLocalSeq = seq
	return seq
}
