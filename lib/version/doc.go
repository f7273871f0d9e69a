// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the chatsync
// binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/bureau-foundation/chatsync/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without them, [Current] reads the commit and time from the VCS stamp
// in debug.ReadBuildInfo, and reports "unknown" in test binaries that
// carry none. [Full] formats --version output. [UserAgent] is the
// header the HTTP clients identify themselves with.
package version
