// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"io"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

var _ orchestrator.Presenter = (*Presenter)(nil)

// Frame is everything the UI draws. The orchestrator fills it through
// Presenter calls; the model takes copies.
type Frame struct {
	Active chat.ConversationRef
	State  orchestrator.State

	// Timeline belongs to TimelineOf, which can lag Active by one
	// render after a switch.
	TimelineOf chat.ConversationRef
	Timeline   []chat.Message

	Sidebar []ranking.Summary
	Invites int

	Typing     presence.TypingState
	Online     map[chat.UserID]bool
	PeerStatus string

	// One-shot fields, cleared by Take.
	Notices        []orchestrator.Notice
	ScrollToBottom bool
	Alerts         int
}

// Presenter implements orchestrator.Presenter by recording into a
// Frame and signalling the model. It is safe for concurrent use and
// never blocks.
type Presenter struct {
	mu    sync.Mutex
	frame Frame

	dirty chan struct{}
	done  chan struct{}
	once  sync.Once

	distance atomic.Int64
	bell     io.Writer
}

// NewPresenter returns a Presenter. When bell is non-nil, PlayAlert
// writes a BEL character to it.
func NewPresenter(bell io.Writer) *Presenter {
	return &Presenter{
		frame: Frame{Online: make(map[chat.UserID]bool)},
		dirty: make(chan struct{}, 1),
		done:  make(chan struct{}),
		bell:  bell,
	}
}

// Changed is signalled after any update since the last Take.
func (p *Presenter) Changed() <-chan struct{} { return p.dirty }

// Done is closed by Close.
func (p *Presenter) Done() <-chan struct{} { return p.done }

// Close releases any model waiting on Changed.
func (p *Presenter) Close() {
	p.once.Do(func() { close(p.done) })
}

// Take returns a copy of the frame and clears its one-shot fields.
func (p *Presenter) Take() Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	frame := p.frame
	frame.Timeline = slices.Clone(p.frame.Timeline)
	frame.Sidebar = slices.Clone(p.frame.Sidebar)
	frame.Online = maps.Clone(p.frame.Online)

	p.frame.Notices = nil
	p.frame.ScrollToBottom = false
	p.frame.Alerts = 0
	return frame
}

// SetDistanceFromBottom records how many lines the timeline is
// scrolled up from the newest message.
func (p *Presenter) SetDistanceFromBottom(lines int) {
	p.distance.Store(int64(lines))
}

func (p *Presenter) update(apply func(frame *Frame)) {
	p.mu.Lock()
	apply(&p.frame)
	p.mu.Unlock()

	select {
	case p.dirty <- struct{}{}:
	default:
	}
}

func (p *Presenter) RenderState(conversation chat.ConversationRef, state orchestrator.State) {
	p.update(func(frame *Frame) {
		if frame.Active != conversation {
			frame.PeerStatus = ""
		}
		frame.Active = conversation
		frame.State = state
	})
}

func (p *Presenter) RenderTimeline(conversation chat.ConversationRef, messages []chat.Message) {
	messages = slices.Clone(messages)
	p.update(func(frame *Frame) {
		frame.TimelineOf = conversation
		frame.Timeline = messages
	})
}

func (p *Presenter) RenderSidebar(summaries []ranking.Summary, invites int) {
	summaries = slices.Clone(summaries)
	p.update(func(frame *Frame) {
		frame.Sidebar = summaries
		frame.Invites = invites
	})
}

func (p *Presenter) RenderTyping(state presence.TypingState) {
	p.update(func(frame *Frame) { frame.Typing = state })
}

func (p *Presenter) RenderPresence(user chat.UserID, online bool) {
	p.update(func(frame *Frame) {
		if online {
			frame.Online[user] = true
		} else {
			delete(frame.Online, user)
		}
	})
}

func (p *Presenter) RenderPeerStatus(conversation chat.ConversationRef, line string) {
	p.update(func(frame *Frame) {
		if frame.Active == conversation {
			frame.PeerStatus = line
		}
	})
}

// DistanceFromBottom is in timeline lines.
func (p *Presenter) DistanceFromBottom() int {
	return int(p.distance.Load())
}

func (p *Presenter) ScrollToBottom() {
	p.update(func(frame *Frame) { frame.ScrollToBottom = true })
}

func (p *Presenter) ShowNotice(notice orchestrator.Notice) {
	p.update(func(frame *Frame) { frame.Notices = append(frame.Notices, notice) })
}

func (p *Presenter) PlayAlert() {
	if p.bell != nil {
		_, _ = io.WriteString(p.bell, "\a")
	}
	p.update(func(frame *Frame) { frame.Alerts++ })
}
