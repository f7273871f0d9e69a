// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for chatsync packages.
//
// [RequireReceive] and [RequireClosed] wrap the select with a
// wall-clock fallback so a hung goroutine fails the test instead of
// stalling it. [RequireEventually] polls state that has no channel to
// wait on. These are the only real timeouts in the test suite;
// everything else runs on a fake clock.
//
// [UniqueID] returns monotonically increasing identifiers for message
// bodies and tokens that must be told apart within one test.
//
// All helpers call t.Fatalf on failure.
package testutil
