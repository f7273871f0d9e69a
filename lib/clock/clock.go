// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every timer in the sync core:
// typing expiry, the post-switch settle window, badge polling, the
// outbound typing idle stop, and push reconnect backoff.
//
// Production code is handed Real(). Tests hand in Fake() and drive
// those timers with Advance, so expiry and backoff behaviour is checked
// without sleeping.
package clock

import "time"

// Clock abstracts the operations the sync core needs from package time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If
	// d <= 0 the channel is ready immediately.
	After(d time.Duration) <-chan time.Time

	// AfterFunc calls f once d has elapsed. The returned Timer cancels
	// or re-arms the call. A real clock runs f on its own goroutine; a
	// fake clock runs it synchronously inside Advance.
	AfterFunc(d time.Duration, f func()) *Timer
}

// Timer is a pending AfterFunc call.
type Timer struct {
	stopFunc  func() bool
	resetFunc func(time.Duration) bool
}

// Stop cancels the pending call. It reports whether the call was still
// pending.
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	return t.stopFunc()
}

// Reset re-arms the timer to fire d from now. It reports whether the
// timer was pending before the reset.
func (t *Timer) Reset(d time.Duration) bool { return t.resetFunc(d) }

// UnixMilli returns the clock's current time in Unix milliseconds, the
// unit every server timestamp uses.
func UnixMilli(c Clock) int64 { return c.Now().UnixMilli() }

// Real returns the wall clock.
func Real() Clock { return wallClock{} }

type wallClock struct{}

func (wallClock) Now() time.Time                         { return time.Now() }
func (wallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func (wallClock) AfterFunc(d time.Duration, f func()) *Timer {
	pending := time.AfterFunc(d, f)
	return &Timer{stopFunc: pending.Stop, resetFunc: pending.Reset}
}
