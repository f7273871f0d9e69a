// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/codec"
	"github.com/bureau-foundation/chatsync/lib/notify"
	"github.com/bureau-foundation/chatsync/lib/presence"
	"github.com/bureau-foundation/chatsync/lib/ranking"
	"github.com/bureau-foundation/chatsync/lib/snapshot"
	"github.com/bureau-foundation/chatsync/orchestrator"
	"github.com/bureau-foundation/chatsync/transport"
)

type replayParams struct {
	user        string
	dump        bool
	snapshotOut string
	logLevel    string
}

func replayCommand(stdout io.Writer) *command {
	var params replayParams
	return &command{
		name:    "replay",
		summary: "Feed a recorded push trace through a fresh session",
		description: `Replay a trace written by "chatsync run --record" into an offline
session and print the resulting sidebar. No server is contacted; pulls
and badge refreshes fail and are logged.

With --dump the trace is printed entry by entry in CBOR diagnostic
notation instead.`,
		usage: "chatsync replay [flags] <trace>",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("replay", pflag.ContinueOnError)
			flagSet.StringVar(&params.user, "user", "", "signed-in user the trace was recorded as (required unless --dump)")
			flagSet.BoolVar(&params.dump, "dump", false, "print entries in CBOR diagnostic notation")
			flagSet.StringVar(&params.snapshotOut, "snapshot", "", "write the resulting session snapshot here")
			flagSet.StringVar(&params.logLevel, "log-level", "warn", "log level for replay diagnostics")
			return flagSet
		},
		examples: []example{
			{
				description: "Show what a trace leaves in the sidebar",
				command:     "chatsync replay --user 42 /tmp/push.trace",
			},
			{
				description: "Inspect the raw entries",
				command:     "chatsync replay --dump /tmp/push.trace",
			},
		},
		run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("expected exactly one trace file")
			}
			if params.dump {
				return dumpTrace(stdout, args[0])
			}
			if params.user == "" {
				return fmt.Errorf("--user is required")
			}
			logger, err := newLogger(os.Stderr, params.logLevel, "auto")
			if err != nil {
				return err
			}
			return replayTrace(context.Background(), stdout, args[0], params, logger)
		},
	}
}

// dumpTrace prints each entry of the trace at path on its own line.
func dumpTrace(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for index := 0; len(data) > 0; index++ {
		notation, rest, err := codec.DiagnoseFirst(data)
		if err != nil {
			return fmt.Errorf("entry %d: %w", index, err)
		}
		fmt.Fprintf(w, "%d\t%s\n", index, notation)
		data = rest
	}
	return nil
}

func replayTrace(ctx context.Context, w io.Writer, path string, params replayParams, logger *slog.Logger) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	local := chat.UserID(params.user)
	orch, err := orchestrator.New(orchestrator.Config{
		LocalUser: local,
		Backend:   offlineBackend{},
		Presenter: logPresenter{logger: logger},
		Notifier:  notify.LogNotifier{Logger: logger},
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()
	orch.SetVisible(ctx, false)

	stats, err := transport.Replay(ctx, file, local, orch, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "delivered %d, skipped %d, malformed %d\n", stats.Delivered, stats.Skipped, stats.Malformed)
	printSidebar(w, orch.Sidebar())

	if params.snapshotOut != "" {
		return snapshot.WriteFile(params.snapshotOut, orch.ExportState(), snapshot.Options{
			Compression: snapshot.CompressionZstd,
		})
	}
	return nil
}

func printSidebar(w io.Writer, summaries []ranking.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no conversations")
		return
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "CONVERSATION\tNAME\tUNREAD\tLAST ACTIVITY\n")
	for _, summary := range summaries {
		activity := "-"
		if summary.LastActivityMs > 0 {
			activity = humanize.Time(time.UnixMilli(summary.LastActivityMs))
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", summary.Ref, summary.Name, summary.Unread, activity)
	}
	tw.Flush()
}

// offlineBackend fails every call with a network error.
type offlineBackend struct{}

var _ orchestrator.Backend = offlineBackend{}

var errOffline = fmt.Errorf("%w: replay is offline", chat.ErrNetworkFailure)

func (offlineBackend) LastSeen(context.Context, chat.UserID) (presence.Status, error) {
	return presence.Status{}, errOffline
}

func (offlineBackend) FetchMessages(context.Context, chat.FetchRequest) ([]chat.Message, error) {
	return nil, errOffline
}

func (offlineBackend) SendMessage(context.Context, chat.ConversationRef, chat.Draft) (chat.Message, error) {
	return chat.Message{}, errOffline
}

func (offlineBackend) EditMessage(context.Context, chat.ConversationRef, chat.Identity, string) error {
	return errOffline
}

func (offlineBackend) DeleteForEveryone(context.Context, chat.ConversationRef, chat.Identity) error {
	return errOffline
}

func (offlineBackend) DeleteForMe(context.Context, chat.ConversationRef, chat.Identity) error {
	return errOffline
}

func (offlineBackend) StarMessage(context.Context, chat.ConversationRef, chat.Identity, bool) error {
	return errOffline
}

func (offlineBackend) UnreadCounts(context.Context) (ranking.UnreadCounts, error) {
	return ranking.UnreadCounts{}, errOffline
}

func (offlineBackend) UpdateSettings(context.Context, chat.ConversationRef, chat.SettingsChange) error {
	return errOffline
}
