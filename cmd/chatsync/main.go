// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// chatsync is a terminal client for the chat server. "chatsync run"
// connects, restores the saved session, and opens the UI; "chatsync
// replay" feeds a recorded push trace through an offline session.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/bureau-foundation/chatsync/lib/version"
)

func main() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stdout io.Writer) error {
	// Handled before dispatch to match the other entry points.
	if len(args) > 0 && (args[0] == "--version" || args[0] == "version") {
		fmt.Fprintf(stdout, "chatsync %s\n", version.Full())
		return nil
	}
	return rootCommand(stdout).execute(args)
}

func rootCommand(stdout io.Writer) *command {
	return &command{
		name:    "chatsync",
		summary: "Terminal client for the chat server",
		description: `chatsync keeps a local view of your conversations in step with the
chat server: it pulls history, follows the push stream, and shows
delivery, typing, and presence as they change.`,
		subcommands: []*command{
			runCommand(),
			replayCommand(stdout),
		},
	}
}
