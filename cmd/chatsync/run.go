// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
	"golang.org/x/text/language"

	"github.com/bureau-foundation/chatsync/lib/chat"
	"github.com/bureau-foundation/chatsync/lib/chatui"
	"github.com/bureau-foundation/chatsync/lib/config"
	"github.com/bureau-foundation/chatsync/lib/netutil"
	"github.com/bureau-foundation/chatsync/lib/notify"
	"github.com/bureau-foundation/chatsync/messaging"
	"github.com/bureau-foundation/chatsync/orchestrator"
	"github.com/bureau-foundation/chatsync/transport"
)

// stickToBottomLines is how close to the end of the timeline, in
// lines, the reader must be for a new message to keep it pinned there.
const stickToBottomLines = 3

const dialTimeout = 10 * time.Second

type runParams struct {
	configPath string
	serverURL  string
	user       string
	logLevel   string
	logFormat  string
	logFile    string
	record     string
	open       string
	headless   bool
}

func runCommand() *command {
	var params runParams
	return &command{
		name:    "run",
		summary: "Connect and open the chat UI",
		description: `Connect to the chat server, restore the saved session, and open the
terminal UI. On exit the session is saved again.

The config file is named by --config or the CHATSYNC_CONFIG environment
variable. The access token comes from server.token_file, or from
CHATSYNC_TOKEN when no file is configured.`,
		usage: "chatsync run [flags]",
		flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.StringVar(&params.configPath, "config", "", "config file (default: $CHATSYNC_CONFIG)")
			flagSet.StringVar(&params.serverURL, "server", "", "override server.url")
			flagSet.StringVar(&params.user, "user", "", "override server.user")
			flagSet.StringVar(&params.logLevel, "log-level", "", "override logging.level")
			flagSet.StringVar(&params.logFormat, "log-format", "", "override logging.format (text, json, auto)")
			flagSet.StringVar(&params.logFile, "log-file", "", "append logs here while the UI is open (default: discard)")
			flagSet.StringVar(&params.record, "record", "", "append every push event to this trace file")
			flagSet.StringVar(&params.open, "open", "", "conversation to open, e.g. dm:42 or group:7")
			flagSet.BoolVar(&params.headless, "no-tui", false, "run without the UI, logging to stderr")
			return flagSet
		},
		examples: []example{
			{
				description: "Open the UI with the config from CHATSYNC_CONFIG",
				command:     "chatsync run",
			},
			{
				description: "Record push events while chatting",
				command:     "chatsync run --record /tmp/push.trace --log-file /tmp/chatsync.log",
			},
			{
				description: "Follow one conversation without the UI",
				command:     "chatsync run --no-tui --open group:7 --log-level debug",
			},
		},
		run: func(args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unexpected argument: %s", args[0])
			}
			cfg, err := loadConfig(params)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, cfg, params)
		},
	}
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(params runParams) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if params.configPath != "" {
		cfg, err = config.LoadFile(params.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if params.serverURL != "" {
		cfg.Server.URL = params.serverURL
	}
	if params.user != "" {
		cfg.Server.User = params.user
	}
	if params.logLevel != "" {
		cfg.Logging.Level = params.logLevel
	}
	if params.logFormat != "" {
		cfg.Logging.Format = params.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runSession(ctx context.Context, cfg *config.Config, params runParams) error {
	var open chat.ConversationRef
	if params.open != "" {
		ref, err := chat.ParseConversationRef(params.open)
		if err != nil {
			return fmt.Errorf("--open: %w", err)
		}
		open = ref
	}

	var logOutput io.Writer = os.Stderr
	if !params.headless {
		output, closeLog, err := openLogFile(params.logFile)
		if err != nil {
			return err
		}
		defer closeLog()
		logOutput = output
	}
	logger, err := newLogger(logOutput, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	localUser := chat.UserID(cfg.Server.User)
	logger = logger.With("user", localUser)

	token, err := readToken(cfg)
	if err != nil {
		return err
	}

	// The client owns the token; the stream borrows it and is stopped
	// before the client is closed.
	client, err := messaging.NewClient(messaging.ClientConfig{
		ServerURL:  cfg.Server.URL,
		LocalUser:  localUser,
		Token:      token,
		HTTPClient: netutil.NewHTTPClient(cfg.RequestTimeoutDuration(), dialTimeout),
		Logger:     logger.With("component", "messaging"),
	})
	if err != nil {
		if token != nil {
			token.Close()
		}
		return err
	}
	defer client.Close()

	registry := newRegistry()

	var recorder transport.Recorder
	if params.record != "" {
		traceFile, err := os.OpenFile(params.record, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("opening trace: %w", err)
		}
		defer traceFile.Close()
		recorder = transport.NewTraceWriter(traceFile)
	}

	stream, err := transport.New(transport.Config{
		ServerURL:   cfg.Server.URL,
		LocalUser:   localUser,
		Token:       token,
		HTTPClient:  netutil.NewHTTPClient(0, dialTimeout),
		PollTimeout: cfg.PollTimeoutDuration(),
		Logger:      logger.With("component", "transport"),
		Registerer:  registry,
		Recorder:    recorder,
	})
	if err != nil {
		return err
	}

	var presenter orchestrator.Presenter = logPresenter{logger: logger}
	var uiPresenter *chatui.Presenter
	// The log presenter has no viewport to follow.
	stickToBottom := -1
	if !params.headless {
		uiPresenter = chatui.NewPresenter(os.Stdout)
		presenter = uiPresenter
		stickToBottom = stickToBottomLines
	}

	orch, err := orchestrator.New(orchestrator.Config{
		LocalUser:     localUser,
		Backend:       client,
		Intents:       stream,
		Presenter:     presenter,
		Notifier:      notify.LogNotifier{Logger: logger.With("component", "notify")},
		Logger:        logger.With("component", "orchestrator"),
		Locale:        language.Make(cfg.Sync.Locale),
		PageLimit:     cfg.Sync.PageSize,
		StickToBottom: stickToBottom,
		Registerer:    registry,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Listen != "" {
		listener, err := netutil.NewHTTPListener(cfg.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		defer listener.Close()
		go serveMetrics(ctx, listener, registry, logger)
	}

	orch.Start(ctx, stream)
	streamDone := make(chan error, 1)
	go func() { streamDone <- stream.Run(ctx) }()

	restoreSession(ctx, orch, cfg, logger)
	if !open.IsZero() {
		if err := orch.Switch(ctx, open); err != nil {
			logger.Warn("opening conversation failed", "conversation", open.String(), "error", err)
		}
	}

	var runErr error
	if params.headless {
		logger.Info("running without UI", "server", cfg.Server.URL)
		<-ctx.Done()
	} else {
		runErr = runUI(ctx, orch, uiPresenter, localUser)
	}

	cancel()
	if err := <-streamDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("push stream stopped", "error", err)
	}
	orch.Close()
	if uiPresenter != nil {
		uiPresenter.Close()
	}

	if err := saveSession(orch, cfg); err != nil {
		logger.Error("saving session failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("saving session: %w", err)
		}
	}
	return runErr
}

func runUI(ctx context.Context, orch *orchestrator.Orchestrator, presenter *chatui.Presenter, localUser chat.UserID) error {
	lipgloss.SetColorProfile(termenv.NewOutput(os.Stdout).EnvColorProfile())

	model, err := chatui.NewModel(ctx, chatui.Config{
		Controller: orch,
		Presenter:  presenter,
		LocalUser:  localUser,
	})
	if err != nil {
		return err
	}
	program := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
