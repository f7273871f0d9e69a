// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend answers from per-call hooks. Unset hooks succeed with
// zero values.
type fakeBackend struct {
	mu sync.Mutex

	fetch    func(ctx context.Context, request chat.FetchRequest) ([]chat.Message, error)
	send     func(ctx context.Context, conversation chat.ConversationRef, draft chat.Draft) (chat.Message, error)
	counts   func(ctx context.Context) (ranking.UnreadCounts, error)
	failures map[string]error

	fetches      []chat.FetchRequest
	countCalls   int
	presenceHits int
	edits        []string
	deletes      []string
	stars        []bool
	settings     []chat.SettingsChange
}

func (b *fakeBackend) FetchMessages(ctx context.Context, request chat.FetchRequest) ([]chat.Message, error) {
	b.mu.Lock()
	b.fetches = append(b.fetches, request)
	fetch := b.fetch
	b.mu.Unlock()
	if fetch == nil {
		return nil, nil
	}
	return fetch(ctx, request)
}

func (b *fakeBackend) SendMessage(ctx context.Context, conversation chat.ConversationRef, draft chat.Draft) (chat.Message, error) {
	if b.send == nil {
		return chat.Message{}, chat.ErrNetworkFailure
	}
	return b.send(ctx, conversation, draft)
}

func (b *fakeBackend) fail(operation string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures[operation]
}

func (b *fakeBackend) EditMessage(_ context.Context, _ chat.ConversationRef, id chat.Identity, content string) error {
	if err := b.fail("edit"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edits = append(b.edits, id.Value+"="+content)
	return nil
}

func (b *fakeBackend) DeleteForEveryone(_ context.Context, _ chat.ConversationRef, id chat.Identity) error {
	if err := b.fail("delete"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, "all:"+id.Value)
	return nil
}

func (b *fakeBackend) DeleteForMe(_ context.Context, _ chat.ConversationRef, id chat.Identity) error {
	if err := b.fail("delete"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, "me:"+id.Value)
	return nil
}

func (b *fakeBackend) StarMessage(_ context.Context, _ chat.ConversationRef, _ chat.Identity, starred bool) error {
	if err := b.fail("star"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stars = append(b.stars, starred)
	return nil
}

func (b *fakeBackend) UnreadCounts(ctx context.Context) (ranking.UnreadCounts, error) {
	b.mu.Lock()
	b.countCalls++
	counts := b.counts
	b.mu.Unlock()
	if counts == nil {
		return ranking.UnreadCounts{}, nil
	}
	return counts(ctx)
}

func (b *fakeBackend) UpdateSettings(_ context.Context, _ chat.ConversationRef, change chat.SettingsChange) error {
	if err := b.fail("settings"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings = append(b.settings, change)
	return nil
}

func (b *fakeBackend) LastSeen(context.Context, chat.UserID) (presence.Status, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presenceHits++
	return presence.Status{LastSeen: epoch.Add(-5 * time.Minute)}, nil
}

func (b *fakeBackend) countCallsSoFar() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.countCalls
}

// recordingPresenter keeps what was last drawn and counts effects.
type recordingPresenter struct {
	mu sync.Mutex

	distance int

	timeline   []chat.Message
	renders    int
	online     map[chat.UserID]bool
	sidebar    []ranking.Summary
	invites    int
	states     []State
	typing     []presence.TypingState
	peerStatus string
	notices    []Notice
	alerts     int
	scrolls    int
}

func (p *recordingPresenter) RenderState(_ chat.ConversationRef, state State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, state)
}

func (p *recordingPresenter) RenderTimeline(_ chat.ConversationRef, messages []chat.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeline = messages
	p.renders++
}

func (p *recordingPresenter) RenderSidebar(summaries []ranking.Summary, invites int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sidebar = summaries
	p.invites = invites
}

func (p *recordingPresenter) RenderTyping(state presence.TypingState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typing = append(p.typing, state)
}

func (p *recordingPresenter) RenderPresence(user chat.UserID, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online == nil {
		p.online = make(map[chat.UserID]bool)
	}
	if online {
		p.online[user] = true
	} else {
		delete(p.online, user)
	}
}

func (p *recordingPresenter) renderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renders
}

func (p *recordingPresenter) onlineUsers() []chat.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	users := make([]chat.UserID, 0, len(p.online))
	for user := range p.online {
		users = append(users, user)
	}
	slices.Sort(users)
	return users
}

func (p *recordingPresenter) RenderPeerStatus(_ chat.ConversationRef, line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peerStatus = line
}

func (p *recordingPresenter) DistanceFromBottom() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.distance
}

func (p *recordingPresenter) ScrollToBottom() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
}

func (p *recordingPresenter) ShowNotice(notice Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, notice)
}

func (p *recordingPresenter) PlayAlert() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts++
}

func (p *recordingPresenter) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alerts
}

// recordingIntents logs outbound intents as "typing:<ref>:<bool>" and
// "join:<ref>".
type recordingIntents struct {
	mu  sync.Mutex
	log []string
}

func (i *recordingIntents) SendTyping(conversation chat.ConversationRef, isTyping bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	state := "stop"
	if isTyping {
		state = "start"
	}
	i.log = append(i.log, "typing:"+conversation.String()+":"+state)
}

func (i *recordingIntents) JoinConversation(conversation chat.ConversationRef) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.log = append(i.log, "join:"+conversation.String())
}

func (i *recordingIntents) entries() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]string(nil), i.log...)
}

type notification struct {
	sender, preview, messageID string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *recordingNotifier) Notify(senderName, preview, messageID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification{senderName, preview, messageID})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// fakeSource emits events synchronously to its subscriber.
type fakeSource struct {
	handler EventHandler
}

func (s *fakeSource) Subscribe(handler EventHandler) func() {
	s.handler = handler
	return func() { s.handler = nil }
}

func (s *fakeSource) emit(event chat.Event) {
	if s.handler != nil {
		s.handler.HandleEvent(context.Background(), event)
	}
}

type harness struct {
	orchestrator *Orchestrator
	backend      *fakeBackend
	presenter    *recordingPresenter
	intents      *recordingIntents
	notifier     *recordingNotifier
	source       *fakeSource
	clock        *clock.FakeClock
}

const localUser chat.UserID = "7"

// newHarness builds an orchestrator over fakes. Options adjust the
// Config before New is called.
func newHarness(t *testing.T, options ...func(*Config)) *harness {
	t.Helper()
	h := &harness{
		backend:   &fakeBackend{},
		presenter: &recordingPresenter{},
		intents:   &recordingIntents{},
		notifier:  &recordingNotifier{},
		source:    &fakeSource{},
		clock:     clock.Fake(epoch),
	}
	config := Config{
		LocalUser:  localUser,
		Backend:    h.backend,
		Intents:    h.intents,
		Presenter:  h.presenter,
		Notifier:   h.notifier,
		Clock:      h.clock,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer: prometheus.NewRegistry(),
	}
	for _, option := range options {
		option(&config)
	}
	orchestrator, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.orchestrator = orchestrator
	t.Cleanup(orchestrator.Close)
	return h
}

// start subscribes to the fake source and starts badge polling.
func (h *harness) start() {
	h.orchestrator.Start(context.Background(), h.source)
}

func message(conversation chat.ConversationRef, id string, sender chat.UserID, timestampMs int64) chat.Message {
	return chat.Message{
		ID:           chat.ServerID(id),
		Conversation: conversation,
		SenderID:     sender,
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
