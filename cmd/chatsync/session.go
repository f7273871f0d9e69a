// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/bureau-foundation/chatsync/lib/config"
	"github.com/bureau-foundation/chatsync/lib/secret"
	"github.com/bureau-foundation/chatsync/lib/snapshot"
	"github.com/bureau-foundation/chatsync/orchestrator"
)

// tokenEnvVar is read when server.token_file is empty.
const tokenEnvVar = "CHATSYNC_TOKEN"

// readToken loads the access token. A nil buffer with a nil error
// means no token is configured.
func readToken(cfg *config.Config) (*secret.Buffer, error) {
	if cfg.Server.TokenFile != "" {
		token, err := secret.ReadFromPath(cfg.Server.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("reading server.token_file: %w", err)
		}
		return token, nil
	}
	return secret.ReadFromEnv(tokenEnvVar)
}

// readIdentities returns the age identities in path, one per line.
// Blank lines and # comments are skipped.
func readIdentities(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	buffer, err := secret.ReadFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("reading session.identity_file: %w", err)
	}
	defer buffer.Close()

	var identities []string
	for _, line := range strings.Split(buffer.String(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		identities = append(identities, line)
	}
	return identities, nil
}

// restoreSession loads the saved snapshot into orch. A missing, sealed,
// or damaged snapshot is logged and otherwise ignored: startup goes on
// with an empty sidebar.
func restoreSession(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, logger *slog.Logger) {
	path := cfg.Session.SnapshotPath
	if path == "" {
		return
	}
	identities, err := readIdentities(cfg.Session.IdentityFile)
	if err != nil {
		logger.Warn("not restoring session", "error", err)
		return
	}

	state, err := snapshot.ReadFile(path, identities...)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Debug("no saved session", "path", path)
		return
	case err != nil:
		logger.Warn("saved session unreadable", "path", path, "error", err)
		return
	}
	if err := orch.RestoreState(ctx, state); err != nil {
		logger.Warn("restoring session failed", "path", path, "error", err)
	}
}

// saveSession writes orch's state to the configured snapshot path.
func saveSession(orch *orchestrator.Orchestrator, cfg *config.Config) error {
	path := cfg.Session.SnapshotPath
	if path == "" {
		return nil
	}
	compression, err := snapshot.ParseCompression(cfg.Session.Compression)
	if err != nil {
		return err
	}
	return snapshot.WriteFile(path, orch.ExportState(), snapshot.Options{
		Compression: compression,
		Recipients:  cfg.Session.Recipients,
	})
}
