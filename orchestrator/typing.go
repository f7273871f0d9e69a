// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

// InputChanged tells the orchestrator the user edited the compose
// field. The first keystroke announces typing to the peer; the
// announcement is withdrawn after OutboundTypingIdle without another
// keystroke.
func (o *Orchestrator) InputChanged() {
	o.mu.Lock()
	defer o.mu.Unlock()
	session := o.session
	if o.closed || session.Active.IsZero() {
		return
	}
	if !session.typingSent {
		session.typingSent = true
		o.intents.SendTyping(session.Active, true)
	}
	if session.typingTimer != nil {
		session.typingTimer.Reset(o.outboundTypingIdle)
		return
	}
	session.typingTimer = o.clock.AfterFunc(o.outboundTypingIdle, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if o.session != session {
			return
		}
		session.typingTimer = nil
		o.stopTypingLocked(session)
	})
}

// InputStopped withdraws the typing announcement at once, for example
// when the compose field is cleared or loses focus.
func (o *Orchestrator) InputStopped() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopTypingLocked(o.session)
}

func (o *Orchestrator) stopTypingLocked(session *SyncSession) {
	session.typingTimer.Stop()
	session.typingTimer = nil
	if !session.typingSent {
		return
	}
	session.typingSent = false
	o.intents.SendTyping(session.Active, false)
}
