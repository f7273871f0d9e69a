// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Release builds set these with -ldflags "-X". When GitCommit is left
// empty, Current falls back to the VCS stamp the go command embeds.
var (
	Version   = "0.1.0-dev"
	GitCommit = ""
	GitDirty  = ""
	BuildTime = ""
)

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	Dirty     bool
	Time      string
	GoVersion string
	Platform  string
}

// Current returns the build description. Commit and Time are "unknown"
// when neither ldflags nor the embedded VCS stamp provide them.
func Current() Build {
	build := Build{
		Version:   Version,
		Commit:    GitCommit,
		Dirty:     GitDirty == "true",
		Time:      BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if build.Commit == "" {
		if info, ok := debug.ReadBuildInfo(); ok {
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs.revision":
					build.Commit = shortRevision(setting.Value)
				case "vcs.modified":
					build.Dirty = setting.Value == "true"
				case "vcs.time":
					if build.Time == "" {
						build.Time = setting.Value
					}
				}
			}
		}
	}
	if build.Commit == "" {
		build.Commit = "unknown"
	}
	if build.Time == "" {
		build.Time = "unknown"
	}
	return build
}

func shortRevision(revision string) string {
	if len(revision) > 7 {
		return revision[:7]
	}
	return revision
}

// String is the one-line form: "0.1.0 (abc1234-dirty, 2026-01-02T15:04:05Z)".
func (b Build) String() string {
	commit := b.Commit
	if b.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", b.Version, commit, b.Time)
}

// Info returns Current().String().
func Info() string { return Current().String() }

// Full adds the Go toolchain and platform to Info, for --version.
func Full() string {
	build := Current()
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s", build, build.GoVersion, build.Platform)
}

// UserAgent is the User-Agent header sent on every request to the chat
// server: "chatsync/<version> (<commit>)".
func UserAgent() string {
	build := Current()
	return fmt.Sprintf("chatsync/%s (%s)", build.Version, build.Commit)
}
