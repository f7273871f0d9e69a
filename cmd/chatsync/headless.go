// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// logPresenter renders to the log. It backs --no-tui and replay.
type logPresenter struct {
	orchestrator.DiscardPresenter
	logger *slog.Logger
}

var _ orchestrator.Presenter = logPresenter{}

func (p logPresenter) RenderState(conversation chat.ConversationRef, state orchestrator.State) {
	p.logger.Debug("state", "conversation", conversation.String(), "state", state.String())
}

func (p logPresenter) RenderTimeline(conversation chat.ConversationRef, messages []chat.Message) {
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	p.logger.Debug("timeline",
		"conversation", conversation.String(),
		"messages", len(messages),
		"last_id", last.ID.String(),
	)
}

func (p logPresenter) RenderSidebar(summaries []ranking.Summary, invites int) {
	p.logger.Debug("sidebar", "conversations", len(summaries), "invites", invites)
}

func (p logPresenter) RenderTyping(state presence.TypingState) {
	if state.Active {
		p.logger.Debug("typing", "conversation", state.Conversation.String(), "sender", state.SenderID)
	}
}

func (p logPresenter) RenderPeerStatus(conversation chat.ConversationRef, line string) {
	p.logger.Info("peer status", "conversation", conversation.String(), "status", line)
}

func (p logPresenter) ShowNotice(notice orchestrator.Notice) {
	if notice.Level == orchestrator.NoticeError {
		p.logger.Warn(notice.Text)
		return
	}
	p.logger.Info(notice.Text)
}
