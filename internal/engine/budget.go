// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package engine

import (
	"context"
	"time"
)

// Budget bounds a single execution. Zero values mean unlimited. The budget is
// checked at every breadth-first layer boundary and between pipeline stages;
// running out stops the execution with a partial result.
type Budget struct {
	MaxSteps int       `json:"maxSteps,omitempty"`
	Deadline time.Time `json:"deadline,omitzero"`
}

// Stop reasons reported in Stats.StopReason.
const (
	StopSteps    = "max_steps"
	StopDeadline = "deadline"
	StopCanceled = "canceled"
)

// tracker counts node expansions against a Budget.
type tracker struct {
	ctx     context.Context
	budget  Budget
	now     func() time.Time
	started time.Time
	steps   int
	reason  string
}

func newTracker(ctx context.Context, b Budget, now func() time.Time) *tracker {
	return &tracker{ctx: ctx, budget: b, now: now, started: now()}
}

func (t *tracker) spend(n int) { t.steps += n }

// exhausted reports whether execution must stop. Once true it stays true.
func (t *tracker) exhausted() bool {
	if t.reason != "" {
		return true
	}
	switch {
	case t.ctx.Err() != nil:
		t.reason = StopCanceled
	case t.budget.MaxSteps > 0 && t.steps >= t.budget.MaxSteps:
		t.reason = StopSteps
	case !t.budget.Deadline.IsZero() && !t.now().Before(t.budget.Deadline):
		t.reason = StopDeadline
	}
	return t.reason != ""
}
