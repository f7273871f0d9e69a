// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func withBuildInfo(t *testing.T, version, commit, dirty, built string) {
	t.Helper()
	savedVersion, savedCommit, savedDirty, savedTime := Version, GitCommit, GitDirty, BuildTime
	Version, GitCommit, GitDirty, BuildTime = version, commit, dirty, built
	t.Cleanup(func() {
		Version, GitCommit, GitDirty, BuildTime = savedVersion, savedCommit, savedDirty, savedTime
	})
}

func TestCurrentFromLdflags(t *testing.T) {
	withBuildInfo(t, "1.2.3", "abc1234", "true", "2026-01-02T15:04:05Z")

	build := Current()
	if build.Version != "1.2.3" || build.Commit != "abc1234" || !build.Dirty || build.Time != "2026-01-02T15:04:05Z" {
		t.Errorf("Current() = %+v", build)
	}
	if got, want := build.String(), "1.2.3 (abc1234-dirty, 2026-01-02T15:04:05Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if Info() != build.String() {
		t.Errorf("Info() = %q, want %q", Info(), build.String())
	}
}

func TestCurrentWithoutLdflags(t *testing.T) {
	withBuildInfo(t, "1.2.3", "", "", "")

	build := Current()
	if build.Commit == "" || build.Time == "" {
		t.Errorf("Current() left fields empty: %+v", build)
	}
	if len(build.Commit) > 7 && build.Commit != "unknown" {
		t.Errorf("Commit = %q, want a short revision", build.Commit)
	}
}

func TestShortRevision(t *testing.T) {
	if got := shortRevision("0123456789abcdef"); got != "0123456" {
		t.Errorf("shortRevision = %q", got)
	}
	if got := shortRevision("abc"); got != "abc" {
		t.Errorf("shortRevision = %q", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, runtime.Version()) {
		t.Errorf("Full() missing Go version: %q", full)
	}
	if !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() missing platform: %q", full)
	}
}

func TestUserAgent(t *testing.T) {
	withBuildInfo(t, "2.0.0", "deadbee", "false", "")
	if got, want := UserAgent(), "chatsync/2.0.0 (deadbee)"; got != want {
		t.Errorf("UserAgent() = %q, want %q", got, want)
	}
}
