// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify renders the short previews shown in OS notifications
// and provides simple Notifier implementations.
package notify

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/bureau-foundation/chatsync/lib/chat"
)

// DefaultPreviewLength is the preview cap in runes.
const DefaultPreviewLength = 100

var markdown = goldmark.New()

// Preview returns the notification body for msg: media get a fixed
// label, text is stripped of markdown, whitespace-collapsed, and cut
// to limit runes.
func Preview(msg chat.Message, limit int) string {
	if limit <= 0 {
		limit = DefaultPreviewLength
	}
	var body string
	switch msg.Type {
	case chat.TypeImage:
		body = "Photo"
	case chat.TypeAudio:
		body = "Voice message"
	case chat.TypeVideo:
		body = "Video"
	case chat.TypeFile:
		body = "File"
	case chat.TypeDeleted:
		body = "This message was deleted"
	default:
		body = PlainText(msg.Content)
	}
	return truncate(body, limit)
}

// PlainText renders markdown source as a single line of plain text.
func PlainText(source string) string {
	if source == "" {
		return ""
	}
	src := []byte(source)
	document := markdown.Parser().Parse(text.NewReader(src))

	var builder strings.Builder
	ast.Walk(document, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if node.Type() == ast.TypeBlock {
				builder.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch typed := node.(type) {
		case *ast.Text:
			builder.Write(typed.Segment.Value(src))
			if typed.SoftLineBreak() || typed.HardLineBreak() {
				builder.WriteByte(' ')
			}
		case *ast.String:
			builder.Write(typed.Value)
		case *ast.AutoLink:
			builder.Write(typed.URL(src))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				segment := lines.At(i)
				builder.Write(segment.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(strings.Fields(builder.String()), " ")
}

func truncate(body string, limit int) string {
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	runes := []rune(body)
	return string(runes[:limit])
}

// SenderLabel picks the name to show for a sender.
func SenderLabel(senderName string, sender chat.UserID) string {
	if name := strings.TrimSpace(senderName); name != "" {
		return name
	}
	if sender != "" {
		return "User " + string(sender)
	}
	return "Someone"
}

// Func adapts a function to the orchestrator's Notifier interface.
type Func func(senderName, preview, messageID string)

// Notify calls f.
func (f Func) Notify(senderName, preview, messageID string) { f(senderName, preview, messageID) }

// LogNotifier writes notifications to a logger. The CLI uses it when
// there is no desktop notification service to hand them to.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification at info level.
func (n LogNotifier) Notify(senderName, preview, messageID string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("notification", "sender", senderName, "preview", preview, "message_id", messageID)
}
