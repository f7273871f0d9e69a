// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
)

// Backend is the server API the orchestrator pulls from and writes to.
// Implementations return errors wrapping chat.ErrNetworkFailure for
// transport problems and chat.ErrMalformedPayload for bodies that do
// not decode. package messaging provides the HTTP implementation.
type Backend interface {
	presence.Lookup

	// FetchMessages returns messages newer than the request cursor, in
	// any order.
	FetchMessages(ctx context.Context, request chat.FetchRequest) ([]chat.Message, error)

	// SendMessage posts a draft and returns the server's copy.
	SendMessage(ctx context.Context, conversation chat.ConversationRef, draft chat.Draft) (chat.Message, error)

	EditMessage(ctx context.Context, conversation chat.ConversationRef, id chat.Identity, content string) error
	DeleteForEveryone(ctx context.Context, conversation chat.ConversationRef, id chat.Identity) error
	DeleteForMe(ctx context.Context, conversation chat.ConversationRef, id chat.Identity) error
	StarMessage(ctx context.Context, conversation chat.ConversationRef, id chat.Identity, starred bool) error

	UnreadCounts(ctx context.Context) (ranking.UnreadCounts, error)
	UpdateSettings(ctx context.Context, conversation chat.ConversationRef, change chat.SettingsChange) error
}

// EventHandler receives realtime events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event chat.Event)
}

// EventSource delivers realtime events to one subscribed handler.
// Subscribe returns a function that ends the subscription.
type EventSource interface {
	Subscribe(handler EventHandler) (unsubscribe func())
}

// Intents carries outbound signals to the realtime channel. Calls are
// made with the orchestrator's lock held and must not block.
type Intents interface {
	SendTyping(conversation chat.ConversationRef, isTyping bool)
	JoinConversation(conversation chat.ConversationRef)
}

// NoticeLevel grades a transient notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient, toast-style message for the user.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Presenter draws the session. Methods may be called from any
// goroutine, often with the orchestrator's lock held, so they must be
// quick and must not call back into the orchestrator.
type Presenter interface {
	RenderState(conversation chat.ConversationRef, state State)
	RenderTimeline(conversation chat.ConversationRef, messages []chat.Message)
	RenderSidebar(summaries []ranking.Summary, invites int)
	RenderTyping(state presence.TypingState)
	RenderPresence(user chat.UserID, online bool)
	RenderPeerStatus(conversation chat.ConversationRef, line string)

	// DistanceFromBottom reports how far, in pixels or the presenter's
	// equivalent unit, the timeline viewport is scrolled up from the
	// newest message.
	DistanceFromBottom() int
	ScrollToBottom()

	ShowNotice(notice Notice)
	PlayAlert()
}

// Notifier raises an OS-level notification. The orchestrator only calls
// it while the session is not visible.
type Notifier interface {
	Notify(senderName, preview, messageID string)
}

// DiscardPresenter ignores every call. It is the default Presenter.
type DiscardPresenter struct{}

func (DiscardPresenter) RenderState(chat.ConversationRef, State)             {}
func (DiscardPresenter) RenderTimeline(chat.ConversationRef, []chat.Message) {}
func (DiscardPresenter) RenderSidebar([]ranking.Summary, int)                {}
func (DiscardPresenter) RenderTyping(presence.TypingState)                   {}
func (DiscardPresenter) RenderPresence(chat.UserID, bool)                    {}
func (DiscardPresenter) RenderPeerStatus(chat.ConversationRef, string)       {}
func (DiscardPresenter) DistanceFromBottom() int                             { return 0 }
func (DiscardPresenter) ScrollToBottom()                                     {}
func (DiscardPresenter) ShowNotice(Notice)                                   {}
func (DiscardPresenter) PlayAlert()                                          {}

type discardIntents struct{}

func (discardIntents) SendTyping(chat.ConversationRef, bool) {}
func (discardIntents) JoinConversation(chat.ConversationRef) {}

type discardNotifier struct{}

func (discardNotifier) Notify(string, string, string) {}
