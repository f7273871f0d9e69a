// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/delivery"
	"github.com/bureau-foundation/chatsync/lib/notify"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// conversationName is the sidebar label of a summary.
func conversationName(summary ranking.Summary) string {
	if summary.Name != "" {
		return summary.Name
	}
	return summary.Ref.String()
}

// renderSidebarRow draws one conversation in exactly width columns.
func renderSidebarRow(theme Theme, summary ranking.Summary, online bool, selected bool, heat float64, width int, now time.Time) string {
	if width <= 0 {
		return ""
	}

	marker := " "
	switch {
	case summary.Pinned():
		marker = lipgloss.NewStyle().Foreground(theme.Pinned).Render("^")
	case summary.Ref.Kind == chat.KindDirect && online:
		marker = lipgloss.NewStyle().Foreground(theme.Online).Render("●")
	}

	badge := ranking.BadgeLabel(summary.Unread)
	if summary.Muted(now) {
		badge = strings.TrimSpace("~ " + badge)
	}
	badgeWidth := ansi.StringWidth(badge)

	nameWidth := width - 2 - badgeWidth
	if badgeWidth > 0 {
		nameWidth--
	}
	name := ""
	if nameWidth > 0 {
		name = ansi.Truncate(conversationName(summary), nameWidth, "…")
	}
	padding := width - 2 - ansi.StringWidth(name) - badgeWidth
	if padding < 0 {
		padding = 0
	}

	nameStyle := lipgloss.NewStyle().Foreground(theme.NormalText)
	if summary.Archived {
		nameStyle = nameStyle.Foreground(theme.FaintText)
	}
	if summary.Unread > 0 {
		nameStyle = nameStyle.Bold(true)
	}
	badgeStyle := lipgloss.NewStyle().Foreground(theme.UnreadBadge)

	row := marker + " " + nameStyle.Render(name) + strings.Repeat(" ", padding) + badgeStyle.Render(badge)

	rowStyle := lipgloss.NewStyle()
	switch {
	case selected:
		rowStyle = rowStyle.Background(theme.SelectedBackground).Foreground(theme.SelectedForeground)
	case heat > 0:
		rowStyle = rowStyle.Background(theme.HotAccent)
	}
	return rowStyle.Render(row)
}

// messageBody is the text shown for a message, by type.
func messageBody(msg chat.Message) string {
	switch msg.Type {
	case chat.TypeDeleted:
		return "message deleted"
	case chat.TypeImage, chat.TypeAudio, chat.TypeVideo, chat.TypeFile:
		label := "[" + string(msg.Type) + "]"
		if msg.Content != "" {
			label += " " + notify.PlainText(msg.Content)
		}
		if msg.MediaURL != "" {
			label += " " + msg.MediaURL
		}
		return label
	}
	return msg.Content
}

// deliveryMark is the suffix of an outbound message.
func deliveryMark(theme Theme, msg chat.Message) string {
	if msg.Failed {
		return lipgloss.NewStyle().Foreground(theme.Failed).Render("! not sent")
	}
	state := delivery.StateOf(msg)
	if msg.ID.IsLocal() {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("…")
	}
	ticks := "✓"
	if state >= delivery.Delivered {
		ticks = "✓✓"
	}
	return lipgloss.NewStyle().Foreground(theme.DeliveryColor(state)).Render(ticks)
}

// renderMessage draws one timeline entry wrapped to width.
func renderMessage(theme Theme, msg chat.Message, local chat.UserID, location *time.Location, width int) string {
	own := msg.SenderID == local

	stamp := time.UnixMilli(msg.TimestampMs).In(location).Format("15:04")
	stampStyle := lipgloss.NewStyle().Foreground(theme.FaintText)

	sender := notify.SenderLabel(msg.SenderName, msg.SenderID)
	senderStyle := lipgloss.NewStyle().Foreground(theme.PeerSender).Bold(true)
	if own {
		sender = "you"
		senderStyle = senderStyle.Foreground(theme.OwnSender)
	}

	bodyStyle := lipgloss.NewStyle().Foreground(theme.NormalText)
	if msg.Type == chat.TypeDeleted {
		bodyStyle = bodyStyle.Foreground(theme.FaintText).Italic(true)
	}
	if msg.Type == chat.TypeSystem {
		bodyStyle = bodyStyle.Foreground(theme.FaintText)
	}

	var suffix []string
	if msg.EditedAtMs > 0 && msg.Type != chat.TypeDeleted {
		suffix = append(suffix, lipgloss.NewStyle().Foreground(theme.FaintText).Render("(edited)"))
	}
	if msg.Starred {
		suffix = append(suffix, lipgloss.NewStyle().Foreground(theme.Starred).Render("★"))
	}
	if own && msg.Conversation.Kind == chat.KindDirect {
		suffix = append(suffix, deliveryMark(theme, msg))
	}

	line := stampStyle.Render(stamp) + " " + senderStyle.Render(sender) + " " + bodyStyle.Render(messageBody(msg))
	if len(suffix) > 0 {
		line += " " + strings.Join(suffix, " ")
	}
	if width <= 0 {
		return line
	}
	return lipgloss.NewStyle().Width(width).Render(line)
}

// renderTimeline draws every message, one or more lines each.
func renderTimeline(theme Theme, messages []chat.Message, local chat.UserID, location *time.Location, width int) string {
	if len(messages) == 0 {
		return lipgloss.NewStyle().Foreground(theme.FaintText).Render("No messages yet.")
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, renderMessage(theme, msg, local, location, width))
	}
	return strings.Join(lines, "\n")
}

// typingLine is the indicator under the timeline, or "".
func typingLine(state presence.TypingState, active chat.ConversationRef, names map[chat.UserID]string) string {
	if !state.Active || state.Conversation != active {
		return ""
	}
	name := names[state.SenderID]
	if name == "" {
		name = string(state.SenderID)
	}
	return name + " is typing…"
}

// stateLabel is shown in the header while the conversation loads.
func stateLabel(state orchestrator.State) string {
	if state == orchestrator.Loading {
		return "loading…"
	}
	return ""
}

// headerLine is the title bar: conversation name and peer status.
func headerLine(theme Theme, title, status string, width int) string {
	titleStyle := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	statusStyle := lipgloss.NewStyle().Foreground(theme.FaintText)
	line := " " + titleStyle.Render(title)
	if status != "" {
		line += "  " + statusStyle.Render(status)
	}
	return ansi.Truncate(line, width, "…")
}

func badgeSummary(total, invites int) string {
	var parts []string
	if label := ranking.BadgeLabel(total); label != "" {
		parts = append(parts, label+" unread")
	}
	if invites > 0 {
		parts = append(parts, fmt.Sprintf("%d invite(s)", invites))
	}
	return strings.Join(parts, ", ")
}
