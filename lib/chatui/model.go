// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/clock"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// Controller is the part of the orchestrator the UI drives. Every call
// is made from a tea.Cmd goroutine, never from Update.
type Controller interface {
	Switch(ctx context.Context, conversation chat.ConversationRef) error
	Refresh(ctx context.Context) error
	Send(ctx context.Context, draft chat.Draft) (chat.Message, error)
	Edit(ctx context.Context, id chat.Identity, content string) error
	DeleteForEveryone(ctx context.Context, id chat.Identity) error
	DeleteForMe(ctx context.Context, id chat.Identity) error
	ToggleStar(ctx context.Context, id chat.Identity) error
	UpdateSettings(ctx context.Context, conversation chat.ConversationRef, change chat.SettingsChange) error
	InputChanged()
	InputStopped()
	SetVisible(ctx context.Context, visible bool)
	ActivePresence(ctx context.Context) (string, error)
}

var _ Controller = (*orchestrator.Orchestrator)(nil)

const (
	sidebarWidth = 28

	// noticeFadeDelay is how long a notice stays in the status bar.
	noticeFadeDelay = 4 * time.Second

	// chromeLines is the header, the typing line, the composer, and
	// the status bar.
	chromeLines = 4
)

type focusRegion int

const (
	focusComposer focusRegion = iota
	focusSidebar
)

// frameMsg carries a new frame from the Presenter.
type frameMsg struct {
	frame Frame
}

// actionResultMsg is sent when a Controller call completes.
type actionResultMsg struct {
	action string
	err    error

	// peerStatus is set by the seen action.
	peerStatus string
}

type noticeFadeMsg struct {
	serial int
}

type heatTickMsg struct{}

// Config configures a Model.
type Config struct {
	// Controller receives user actions. Required.
	Controller Controller

	// Presenter is the frame source. Required. Pass the same instance
	// to the orchestrator.
	Presenter *Presenter

	// LocalUser is the signed-in user. Required.
	LocalUser chat.UserID

	// Theme defaults to DefaultTheme.
	Theme *Theme

	// Clock drives heat animation and mute display. Defaults to
	// clock.Real().
	Clock clock.Clock

	// Location for message timestamps. Defaults to time.Local.
	Location *time.Location
}

// Model is the bubbletea model of the chat UI.
type Model struct {
	ctx        context.Context
	controller Controller
	presenter  *Presenter
	local      chat.UserID
	theme      Theme
	keys       KeyMap
	clock      clock.Clock
	location   *time.Location

	width  int
	height int
	ready  bool
	focus  focusRegion

	frame Frame

	// cursor indexes frame.Sidebar; selected keeps the cursor on the
	// same conversation as the ranking changes.
	cursor        int
	selected      chat.ConversationRef
	sidebarOffset int

	// activity remembers each conversation's last activity so new
	// activity ignites its row.
	activity    map[chat.ConversationRef]int64
	heat        *HeatTracker
	tickRunning bool

	timeline viewport.Model
	composer textinput.Model

	notice       orchestrator.Notice
	noticeSerial int
}

// NewModel creates the UI model. ctx bounds every Controller call.
func NewModel(ctx context.Context, config Config) (Model, error) {
	if config.Controller == nil {
		return Model{}, fmt.Errorf("chatui: Controller is required")
	}
	if config.Presenter == nil {
		return Model{}, fmt.Errorf("chatui: Presenter is required")
	}
	if config.LocalUser == "" {
		return Model{}, fmt.Errorf("chatui: LocalUser is required")
	}
	theme := DefaultTheme
	if config.Theme != nil {
		theme = *config.Theme
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	composer := textinput.New()
	composer.Placeholder = "Write a message, or /help"
	composer.Prompt = "> "
	composer.CharLimit = 4000
	composer.Focus()

	return Model{
		ctx:        ctx,
		controller: config.Controller,
		presenter:  config.Presenter,
		local:      config.LocalUser,
		theme:      theme,
		keys:       DefaultKeyMap,
		clock:      config.Clock,
		location:   config.Location,
		activity:   make(map[chat.ConversationRef]int64),
		heat:       NewHeatTracker(),
		timeline:   viewport.New(0, 0),
		composer:   composer,
	}, nil
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return tea.Batch(waitForFrame(model.presenter), textinput.Blink)
}

// waitForFrame blocks until the Presenter has something new, then
// delivers a copy of the frame.
func waitForFrame(presenter *Presenter) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-presenter.Changed():
			return frameMsg{frame: presenter.Take()}
		case <-presenter.Done():
			return nil
		}
	}
}

// Update implements tea.Model.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		return model.handleKey(message)

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.layout()
		model.syncTimeline(false)

	case tea.FocusMsg:
		return model, model.setVisible(true)

	case tea.BlurMsg:
		return model, model.setVisible(false)

	case frameMsg:
		return model.handleFrame(message.frame)

	case actionResultMsg:
		return model.handleActionResult(message)

	case noticeFadeMsg:
		if message.serial == model.noticeSerial {
			model.notice = orchestrator.Notice{}
		}

	case heatTickMsg:
		if model.heat.HasHot(model.clock.Now()) {
			return model, scheduleHeatTick()
		}
		model.tickRunning = false
	}

	if model.focus == focusComposer {
		var cmd tea.Cmd
		model.composer, cmd = model.composer.Update(message)
		return model, cmd
	}
	return model, nil
}

func (model Model) handleKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Quit):
		return model, tea.Quit

	case key.Matches(message, model.keys.FocusToggle):
		if model.focus == focusComposer {
			model.focus = focusSidebar
			model.composer.Blur()
		} else {
			model.focus = focusComposer
			model.composer.Focus()
		}
		return model, nil

	case key.Matches(message, model.keys.Refresh):
		return model, model.run("refresh", func(ctx context.Context) error {
			return model.controller.Refresh(ctx)
		})

	case key.Matches(message, model.keys.PageUp):
		model.timeline.HalfViewUp()
		model.reportDistance()
		return model, nil

	case key.Matches(message, model.keys.PageDown):
		model.timeline.HalfViewDown()
		model.reportDistance()
		return model, nil
	}

	if model.focus == focusSidebar {
		return model.handleSidebarKey(message)
	}
	return model.handleComposerKey(message)
}

func (model Model) handleSidebarKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)
	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)
	case key.Matches(message, model.keys.Open):
		if model.cursor < 0 || model.cursor >= len(model.frame.Sidebar) {
			return model, nil
		}
		conversation := model.frame.Sidebar[model.cursor].Ref
		model.focus = focusComposer
		model.composer.Focus()
		return model, model.run("open", func(ctx context.Context) error {
			return model.controller.Switch(ctx, conversation)
		})
	}
	return model, nil
}

func (model Model) handleComposerKey(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(message, model.keys.Send) {
		input := model.composer.Value()
		if strings.TrimSpace(input) == "" {
			return model, nil
		}
		command, err := ParseCommand(input)
		if err != nil {
			return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeError, Text: err.Error()})
		}
		model.composer.Reset()
		if command.Kind == CommandHelp {
			return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeInfo, Text: CommandHelpText})
		}
		stopTyping := func() tea.Msg {
			model.controller.InputStopped()
			return nil
		}
		return model.dispatch(command, stopTyping)
	}

	before := model.composer.Value()
	var cmd tea.Cmd
	model.composer, cmd = model.composer.Update(message)
	if model.composer.Value() != before {
		controller := model.controller
		cmd = tea.Batch(cmd, func() tea.Msg {
			controller.InputChanged()
			return nil
		})
	}
	return model, cmd
}

// dispatch turns a parsed command into a Controller call.
func (model Model) dispatch(command Command, extra tea.Cmd) (tea.Model, tea.Cmd) {
	active := model.frame.Active
	if active.IsZero() {
		return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeError, Text: "Open a conversation first"})
	}
	controller := model.controller

	var action tea.Cmd
	switch command.Kind {
	case CommandSend:
		draft := chat.Draft{Content: command.Text}
		action = model.run("send", func(ctx context.Context) error {
			_, err := controller.Send(ctx, draft)
			return err
		})

	case CommandEdit, CommandDelete:
		target, ok := model.latestMessage(true)
		if !ok {
			return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeError, Text: "No message of yours to " + string(command.Kind)})
		}
		if command.Kind == CommandEdit {
			action = model.run("edit", func(ctx context.Context) error {
				return controller.Edit(ctx, target, command.Text)
			})
		} else {
			action = model.run("delete", func(ctx context.Context) error {
				return controller.DeleteForEveryone(ctx, target)
			})
		}

	case CommandHide, CommandStar:
		target, ok := model.latestMessage(false)
		if !ok {
			return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeError, Text: "No message to " + string(command.Kind)})
		}
		if command.Kind == CommandHide {
			action = model.run("hide", func(ctx context.Context) error {
				return controller.DeleteForMe(ctx, target)
			})
		} else {
			action = model.run("star", func(ctx context.Context) error {
				return controller.ToggleStar(ctx, target)
			})
		}

	case CommandPin, CommandUnpin, CommandArchive, CommandUnarchive, CommandMute, CommandUnmute:
		change := settingsChange(command)
		action = model.run(string(command.Kind), func(ctx context.Context) error {
			return controller.UpdateSettings(ctx, active, change)
		})

	case CommandRefresh:
		action = model.run("refresh", func(ctx context.Context) error {
			return controller.Refresh(ctx)
		})

	case CommandSeen:
		ctx := model.ctx
		action = func() tea.Msg {
			line, err := controller.ActivePresence(ctx)
			return actionResultMsg{action: "seen", err: err, peerStatus: line}
		}
	}
	return model, tea.Batch(extra, action)
}

// settingsChange maps a conversation command to its settings change.
func settingsChange(command Command) chat.SettingsChange {
	var change chat.SettingsChange
	switch command.Kind {
	case CommandPin:
		rank := command.Rank
		change.PinnedRank = &rank
	case CommandUnpin:
		change.Unpin = true
	case CommandArchive, CommandUnarchive:
		archived := command.Kind == CommandArchive
		change.Archived = &archived
	case CommandMute, CommandUnmute:
		duration := command.Duration
		change.MuteFor = &duration
	}
	return change
}

// latestMessage finds the newest message in the visible timeline that
// the server knows about. When own is set, only the user's messages
// count and tombstones are skipped.
func (model Model) latestMessage(own bool) (chat.Identity, bool) {
	if model.frame.TimelineOf != model.frame.Active {
		return chat.Identity{}, false
	}
	for i := len(model.frame.Timeline) - 1; i >= 0; i-- {
		msg := model.frame.Timeline[i]
		if msg.ID.IsLocal() || msg.ID.IsZero() {
			continue
		}
		if own && (msg.SenderID != model.local || msg.Type == chat.TypeDeleted) {
			continue
		}
		return msg.ID, true
	}
	return chat.Identity{}, false
}

// run executes call on a tea.Cmd goroutine and reports the result.
func (model Model) run(action string, call func(ctx context.Context) error) tea.Cmd {
	ctx := model.ctx
	return func() tea.Msg {
		return actionResultMsg{action: action, err: call(ctx)}
	}
}

func (model Model) setVisible(visible bool) tea.Cmd {
	ctx, controller := model.ctx, model.controller
	return func() tea.Msg {
		controller.SetVisible(ctx, visible)
		return nil
	}
}

func (model Model) handleActionResult(message actionResultMsg) (tea.Model, tea.Cmd) {
	if message.err != nil {
		return model.showNotice(orchestrator.Notice{
			Level: orchestrator.NoticeError,
			Text:  message.action + " failed: " + message.err.Error(),
		})
	}
	if message.action == "seen" {
		status := message.peerStatus
		if status == "" {
			status = "no presence for this conversation"
		}
		model.frame.PeerStatus = message.peerStatus
		return model.showNotice(orchestrator.Notice{Level: orchestrator.NoticeInfo, Text: status})
	}
	return model, nil
}

func (model Model) showNotice(notice orchestrator.Notice) (tea.Model, tea.Cmd) {
	model.noticeSerial++
	model.notice = notice
	serial := model.noticeSerial
	return model, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{serial: serial}
	})
}

// handleFrame adopts a new frame from the Presenter.
func (model Model) handleFrame(frame Frame) (tea.Model, tea.Cmd) {
	now := model.clock.Now()
	for _, summary := range frame.Sidebar {
		previous, known := model.activity[summary.Ref]
		if known && summary.LastActivityMs > previous && summary.Ref != frame.Active {
			model.heat.Ignite(summary.Ref, now)
		}
		model.activity[summary.Ref] = summary.LastActivityMs
	}

	switched := frame.Active != model.frame.Active
	atBottom := model.timeline.AtBottom()
	model.frame = frame
	model.restoreSelection()
	model.syncTimeline(switched || frame.ScrollToBottom || atBottom)

	commands := []tea.Cmd{waitForFrame(model.presenter)}
	if !model.tickRunning && model.heat.HasHot(now) {
		model.tickRunning = true
		commands = append(commands, scheduleHeatTick())
	}
	if len(frame.Notices) > 0 {
		updated, fade := model.showNotice(frame.Notices[len(frame.Notices)-1])
		model = updated.(Model)
		commands = append(commands, fade)
	}
	return model, tea.Batch(commands...)
}

func scheduleHeatTick() tea.Cmd {
	return tea.Tick(HeatTickInterval, func(time.Time) tea.Msg {
		return heatTickMsg{}
	})
}

// restoreSelection keeps the cursor on the selected conversation as
// the sidebar order changes.
func (model *Model) restoreSelection() {
	for index, summary := range model.frame.Sidebar {
		if summary.Ref == model.selected {
			model.cursor = index
			model.clampSidebar()
			return
		}
	}
	model.clampSidebar()
	if model.cursor < len(model.frame.Sidebar) {
		model.selected = model.frame.Sidebar[model.cursor].Ref
	}
}

func (model *Model) moveCursor(delta int) {
	model.cursor += delta
	model.clampSidebar()
	if model.cursor < len(model.frame.Sidebar) {
		model.selected = model.frame.Sidebar[model.cursor].Ref
	}
}

func (model *Model) clampSidebar() {
	count := len(model.frame.Sidebar)
	if model.cursor >= count {
		model.cursor = count - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	visible := model.bodyHeight()
	if visible <= 0 {
		return
	}
	if model.cursor < model.sidebarOffset {
		model.sidebarOffset = model.cursor
	}
	if model.cursor >= model.sidebarOffset+visible {
		model.sidebarOffset = model.cursor - visible + 1
	}
}

// syncTimeline re-renders the timeline into the viewport, keeping the
// scroll position unless toBottom is set.
func (model *Model) syncTimeline(toBottom bool) {
	if !model.ready {
		return
	}
	var messages []chat.Message
	if model.frame.TimelineOf == model.frame.Active {
		messages = model.frame.Timeline
	}
	offset := model.timeline.YOffset
	model.timeline.SetContent(renderTimeline(model.theme, messages, model.local, model.location, model.timeline.Width))
	if toBottom {
		model.timeline.GotoBottom()
	} else {
		model.timeline.SetYOffset(offset)
	}
	model.reportDistance()
}

// reportDistance tells the orchestrator, through the Presenter, how far
// the timeline is scrolled up.
func (model *Model) reportDistance() {
	distance := model.timeline.TotalLineCount() - model.timeline.Height - model.timeline.YOffset
	model.presenter.SetDistanceFromBottom(max(distance, 0))
}

func (model Model) bodyHeight() int {
	return model.height - chromeLines
}

func (model Model) timelineWidth() int {
	// Sidebar, divider, and the scrollbar column.
	return model.width - sidebarWidth - 2
}

func (model *Model) layout() {
	model.timeline.Width = max(model.timelineWidth(), 1)
	model.timeline.Height = max(model.bodyHeight(), 1)
	model.composer.Width = max(model.width-len(model.composer.Prompt)-1, 1)
	model.clampSidebar()
}

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "Loading..."
	}
	now := model.clock.Now()

	sections := []string{model.renderHeader()}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		model.renderSidebar(now),
		model.renderDivider(),
		model.timeline.View(),
		renderScrollbar(model.theme, model.timeline.Height,
			model.timeline.TotalLineCount(), model.timeline.Height, model.timeline.YOffset),
	)
	sections = append(sections, body)

	typing := typingLine(model.frame.Typing, model.frame.Active, model.senderNames())
	sections = append(sections, lipgloss.NewStyle().Foreground(model.theme.FaintText).Italic(true).Render(" "+typing))
	sections = append(sections, model.composer.View())
	sections = append(sections, model.renderStatus())
	return strings.Join(sections, "\n")
}

func (model Model) renderHeader() string {
	title := "chatsync"
	if !model.frame.Active.IsZero() {
		title = model.frame.Active.String()
		for _, summary := range model.frame.Sidebar {
			if summary.Ref == model.frame.Active {
				title = conversationName(summary)
				break
			}
		}
	}
	status := stateLabel(model.frame.State)
	if status == "" {
		status = model.frame.PeerStatus
	}
	return headerLine(model.theme, title, status, model.width)
}

func (model Model) renderSidebar(now time.Time) string {
	height := max(model.bodyHeight(), 1)
	rows := make([]string, 0, height)
	for index := model.sidebarOffset; index < len(model.frame.Sidebar) && len(rows) < height; index++ {
		summary := model.frame.Sidebar[index]
		online := model.frame.Online[summary.Ref.Peer()]
		selected := model.focus == focusSidebar && index == model.cursor
		rows = append(rows, renderSidebarRow(model.theme, summary, online, selected,
			model.heat.Heat(summary.Ref, now), sidebarWidth, now))
	}
	for len(rows) < height {
		rows = append(rows, strings.Repeat(" ", sidebarWidth))
	}
	return strings.Join(rows, "\n")
}

func (model Model) renderDivider() string {
	height := max(model.bodyHeight(), 1)
	style := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	return style.Render(strings.TrimSuffix(strings.Repeat("│\n", height), "\n"))
}

func (model Model) renderStatus() string {
	if model.notice.Text != "" {
		return lipgloss.NewStyle().Foreground(model.theme.NoticeColor(model.notice.Level)).
			Render(" " + model.notice.Text)
	}

	focus := "COMPOSE"
	if model.focus == focusSidebar {
		focus = "SIDEBAR"
	}
	help := fmt.Sprintf(" [%s] %s  %s  %s  %s",
		focus,
		helpEntry(model.keys.FocusToggle),
		helpEntry(model.keys.PageUp),
		helpEntry(model.keys.Refresh),
		helpEntry(model.keys.Quit))

	total := 0
	for _, summary := range model.frame.Sidebar {
		total += summary.Unread
	}
	if badges := badgeSummary(total, model.frame.Invites); badges != "" {
		help += "  " + badges
	}
	return lipgloss.NewStyle().Foreground(model.theme.HelpText).Render(help)
}

func helpEntry(binding key.Binding) string {
	help := binding.Help()
	return help.Key + " " + help.Desc
}

// senderNames maps user IDs to display names seen in the timeline.
func (model Model) senderNames() map[chat.UserID]string {
	names := make(map[chat.UserID]string)
	for _, msg := range model.frame.Timeline {
		if msg.SenderName != "" {
			names[msg.SenderID] = msg.SenderName
		}
	}
	return names
}
