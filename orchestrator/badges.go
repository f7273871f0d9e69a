// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/bureau-foundation/chatsync/lib/clock"
)

// SetVisible records whether the client is in the foreground. Hidden
// clients stop badge polling and raise OS notifications instead of
// drawing; becoming visible again restarts polling and catches up the
// active conversation.
func (o *Orchestrator) SetVisible(ctx context.Context, visible bool) {
	o.mu.Lock()
	if o.closed || o.visible == visible {
		o.mu.Unlock()
		return
	}
	o.visible = visible
	o.badgeTimer.Stop()
	o.badgeTimer = nil
	if visible {
		o.scheduleBadgePollLocked(o.badgePollDelay)
	}
	o.mu.Unlock()

	o.logger.Debug("visibility changed", "visible", visible)
	if visible {
		if err := o.Refresh(ctx); err != nil {
			o.logger.Warn("refresh after becoming visible failed", "error", err)
		}
	}
}

// scheduleBadgePollLocked arms the next badge poll d from now. Each
// poll re-arms itself at the steady interval while the client stays
// visible.
func (o *Orchestrator) scheduleBadgePollLocked(d time.Duration) {
	o.badgeTimer.Stop()
	var timer *clock.Timer
	timer = o.clock.AfterFunc(d, func() {
		o.mu.Lock()
		if o.closed || !o.visible || o.badgeTimer != timer {
			o.mu.Unlock()
			return
		}
		ctx := o.baseContext
		o.scheduleBadgePollLocked(o.badgePollInterval)
		o.mu.Unlock()

		if err := o.RefreshBadges(ctx); err != nil {
			o.logger.Debug("badge poll failed", "error", err)
		}
	})
	o.badgeTimer = timer
}

// RefreshBadges fetches unread counts and applies them to the sidebar.
// The open conversation always shows zero.
func (o *Orchestrator) RefreshBadges(ctx context.Context) error {
	counts, err := o.backend.UnreadCounts(ctx)
	if err != nil {
		o.metrics.BadgeRefreshes.WithLabelValues("error").Inc()
		return fmt.Errorf("orchestrator: fetching unread counts: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.board.ApplyCounts(counts, o.session.Active)
	o.renderSidebarLocked()
	o.metrics.BadgeRefreshes.WithLabelValues("ok").Inc()
	return nil
}

// refreshBadgesLimited refreshes badges on a push hint, at most once
// per BadgeRefreshInterval. Polling catches whatever is skipped.
func (o *Orchestrator) refreshBadgesLimited(ctx context.Context) {
	if !o.badgeLimiter.AllowN(o.clock.Now(), 1) {
		o.metrics.BadgeRefreshes.WithLabelValues("throttled").Inc()
		return
	}
	if err := o.RefreshBadges(ctx); err != nil {
		o.logger.Debug("badge refresh failed", "error", err)
	}
}
