// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the chatsync
// client.
//
// Configuration is loaded from a single file specified by either the
// CHATSYNC_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search. Files ending in
// .json or .jsonc are JSON with comments and trailing commas; all
// others are YAML. Unknown keys are rejected.
//
// The file may contain environment-specific sections (development,
// staging, production) that override base values when
// [Config].Environment matches. Production without an explicit section
// logs at info level as JSON.
//
// After loading, ${VAR} and ${VAR:-default} patterns are expanded in
// string fields. ${CHATSYNC_STATE} names the client's state directory
// ($XDG_STATE_HOME/chatsync, or ~/.local/state/chatsync).
//
// [Config.Validate] reports every problem at once, joined with
// errors.Join.
package config
