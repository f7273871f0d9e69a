// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/chatsync/lib/delivery"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// Theme defines the color palette for the chat UI. All colors use
// lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected sidebar row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Message authorship.
	OwnSender  lipgloss.Color
	PeerSender lipgloss.Color

	// Delivery ticks on outbound messages.
	DeliverySent      lipgloss.Color
	DeliveryDelivered lipgloss.Color
	DeliveryRead      lipgloss.Color
	Failed            lipgloss.Color

	Online      lipgloss.Color
	UnreadBadge lipgloss.Color
	Pinned      lipgloss.Color
	Starred     lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color
	ScrollThumb      lipgloss.Color

	// HotAccent tints sidebar rows that just had activity.
	HotAccent lipgloss.Color

	NoticeInfo  lipgloss.Color
	NoticeError lipgloss.Color
}

// DeliveryColor returns the tick color for an outbound message state.
func (theme Theme) DeliveryColor(state delivery.State) lipgloss.Color {
	switch state {
	case delivery.Read:
		return theme.DeliveryRead
	case delivery.Delivered:
		return theme.DeliveryDelivered
	default:
		return theme.DeliverySent
	}
}

// NoticeColor returns the color for a notice level. Unknown levels use
// NormalText.
func (theme Theme) NoticeColor(level orchestrator.NoticeLevel) lipgloss.Color {
	switch level {
	case orchestrator.NoticeError:
		return theme.NoticeError
	case orchestrator.NoticeInfo:
		return theme.NoticeInfo
	default:
		return theme.NormalText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	OwnSender:  lipgloss.Color("75"),  // blue
	PeerSender: lipgloss.Color("114"), // green

	DeliverySent:      lipgloss.Color("245"), // gray
	DeliveryDelivered: lipgloss.Color("252"),
	DeliveryRead:      lipgloss.Color("75"),
	Failed:            lipgloss.Color("196"), // red

	Online:      lipgloss.Color("114"),
	UnreadBadge: lipgloss.Color("208"), // orange
	Pinned:      lipgloss.Color("220"), // amber
	Starred:     lipgloss.Color("220"),

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),
	ScrollThumb:      lipgloss.Color("220"),

	HotAccent: lipgloss.Color("58"), // dark amber background tint

	NoticeInfo:  lipgloss.Color("75"),
	NoticeError: lipgloss.Color("196"),
}
