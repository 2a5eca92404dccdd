// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jasonblum/crowdvote-sub000/models"
)

// EventKind enumerates every event that can demand a recalculation.
// Keeping the trigger surface in one place makes it auditable: nothing
// else in the system is allowed to start a calculation.
type EventKind string

const (
	VoteChanged       EventKind = "vote_changed"
	FollowingChanged  EventKind = "following_changed"
	MembershipChanged EventKind = "membership_changed"
	DecisionClosed    EventKind = "decision_closed"
	ManualRecalc      EventKind = "manual_recalc"
)

// Event is one recalculation demand for one decision.
type Event struct {
	Kind       EventKind
	DecisionID string
}

// Runner runs one full calculation (snapshot claim, capture, resolve,
// tally) for a decision.
type Runner interface {
	Calculate(ctx context.Context, decisionID string) (string, error)
}

// Scheduler is the bounded work queue between trigger sites and the
// snapshot coordinator. Duplicate pending triggers for one decision
// collapse into a single queued run; the pending mark clears when a
// worker picks the decision up, so a trigger arriving mid-run enqueues
// exactly one follow-up run.
type Scheduler struct {
	runner  Runner
	workers int

	mu      sync.Mutex
	pending map[string]bool
	closed  bool

	queue  chan string
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewScheduler builds a scheduler with the given worker count and queue
// capacity.
func NewScheduler(runner Runner, workers, queueSize int) *Scheduler {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Scheduler{
		runner:  runner,
		workers: workers,
		pending: make(map[string]bool),
		queue:   make(chan string, queueSize),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		s.group.Go(func() error { return s.work(ctx) })
	}
}

// Trigger enqueues a recalculation for the event's decision. A decision
// already queued is a no-op. A full queue drops the trigger with a
// warning; the decision's needs-recalculation flag remains set in
// storage, so a later trigger catches up.
func (s *Scheduler) Trigger(ev Event) {
	// The send happens under the same lock as the closed check: Stop
	// closes the queue only after taking this lock, so a trigger racing
	// a shutdown can never send on a closed channel.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pending[ev.DecisionID] {
		return
	}

	select {
	case s.queue <- ev.DecisionID:
		s.pending[ev.DecisionID] = true
		slog.Info("recalculation queued", "decision_id", ev.DecisionID, "event", ev.Kind)
	default:
		slog.Warn("recalculation queue full, dropping trigger",
			"decision_id", ev.DecisionID, "event", ev.Kind)
	}
}

// Stop drains nothing: queued runs still execute, then workers exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.queue)
	err := s.group.Wait()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

func (s *Scheduler) work(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case decisionID, ok := <-s.queue:
			if !ok {
				return nil
			}
			// Clear before running: triggers during the run must queue a
			// follow-up rather than be swallowed.
			s.clearPending(decisionID)
			s.run(ctx, decisionID)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, decisionID string) {
	snapshotID, err := s.runner.Calculate(ctx, decisionID)
	switch {
	case err == nil:
		slog.Info("recalculation completed", "decision_id", decisionID, "snapshot_id", snapshotID)
	case errors.Is(err, models.ErrSnapshotActive):
		// Another snapshot is mid-flight; its run reflects state at its
		// own capture time and this trigger is a legal no-op.
		slog.Info("recalculation skipped, snapshot active", "decision_id", decisionID)
	case errors.Is(err, models.ErrNotFound):
		slog.Warn("recalculation for missing decision", "decision_id", decisionID)
	default:
		slog.Error("recalculation failed", "decision_id", decisionID,
			"snapshot_id", snapshotID, "error", err)
	}
}

func (s *Scheduler) clearPending(decisionID string) {
	s.mu.Lock()
	delete(s.pending, decisionID)
	s.mu.Unlock()
}
