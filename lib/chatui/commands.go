// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatui

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CommandKind names a composer command.
type CommandKind string

const (
	// CommandSend is plain text: send it as a message.
	CommandSend CommandKind = "send"

	CommandEdit      CommandKind = "edit"
	CommandDelete    CommandKind = "delete"
	CommandHide      CommandKind = "hide"
	CommandStar      CommandKind = "star"
	CommandPin       CommandKind = "pin"
	CommandUnpin     CommandKind = "unpin"
	CommandArchive   CommandKind = "archive"
	CommandUnarchive CommandKind = "unarchive"
	CommandMute      CommandKind = "mute"
	CommandUnmute    CommandKind = "unmute"
	CommandRefresh   CommandKind = "refresh"
	CommandSeen      CommandKind = "seen"
	CommandHelp      CommandKind = "help"
)

// CommandHelpText is the one-line summary shown for /help.
const CommandHelpText = "/edit <text>  /delete  /hide  /star  /pin [rank]  /unpin  /archive  /unarchive  /mute <duration>  /unmute  /refresh  /seen"

// Command is one parsed line of composer input.
type Command struct {
	Kind CommandKind

	// Text is the message body for send and edit.
	Text string

	// Rank is the pin rank for pin.
	Rank int

	// Duration is the mute length for mute.
	Duration time.Duration
}

// ParseCommand interprets composer input. Lines not starting with "/"
// are messages; "//" escapes a leading slash. Recognized commands:
//
//	/edit <text>      edit your latest message
//	/delete           delete your latest message for everyone
//	/hide             delete the latest message for you only
//	/star             star or unstar the latest message
//	/pin [rank]       pin the conversation (rank defaults to 0)
//	/unpin
//	/archive, /unarchive
//	/mute <duration>  for example "/mute 8h"
//	/unmute
//	/refresh          pull the conversation again
//	/seen             show the peer's last-seen time
//	/help             list the commands
func ParseCommand(input string) (Command, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Command{}, fmt.Errorf("nothing to send")
	}
	if strings.HasPrefix(trimmed, "//") {
		return Command{Kind: CommandSend, Text: trimmed[1:]}, nil
	}
	if !strings.HasPrefix(trimmed, "/") {
		return Command{Kind: CommandSend, Text: trimmed}, nil
	}

	name, argument, _ := strings.Cut(trimmed[1:], " ")
	argument = strings.TrimSpace(argument)
	kind := CommandKind(strings.ToLower(name))

	switch kind {
	case CommandEdit:
		if argument == "" {
			return Command{}, fmt.Errorf("/edit needs the new text")
		}
		return Command{Kind: kind, Text: argument}, nil

	case CommandPin:
		if argument == "" {
			return Command{Kind: kind}, nil
		}
		rank, err := strconv.Atoi(argument)
		if err != nil || rank < 0 {
			return Command{}, fmt.Errorf("/pin rank must be a non-negative integer, got %q", argument)
		}
		return Command{Kind: kind, Rank: rank}, nil

	case CommandMute:
		if argument == "" {
			return Command{}, fmt.Errorf("/mute needs a duration, for example /mute 8h")
		}
		duration, err := time.ParseDuration(argument)
		if err != nil || duration <= 0 {
			return Command{}, fmt.Errorf("/mute duration must be positive, got %q", argument)
		}
		return Command{Kind: kind, Duration: duration}, nil

	case CommandDelete, CommandHide, CommandStar, CommandUnpin,
		CommandArchive, CommandUnarchive, CommandUnmute,
		CommandRefresh, CommandSeen, CommandHelp:
		if argument != "" {
			return Command{}, fmt.Errorf("/%s takes no arguments", kind)
		}
		return Command{Kind: kind}, nil
	}
	return Command{}, fmt.Errorf("unknown command /%s", name)
}
