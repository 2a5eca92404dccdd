// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jasonblum/crowdvote-sub000/models"
)

// recordingRunner counts Calculate calls per decision and can block
// until released, to hold a worker busy mid-run.
type recordingRunner struct {
	mu    sync.Mutex
	calls map[string]int
	block chan struct{}
	err   error
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{calls: make(map[string]int)}
}

func (r *recordingRunner) Calculate(ctx context.Context, decisionID string) (string, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.calls[decisionID]++
	r.mu.Unlock()
	return "snap-" + decisionID, r.err
}

func (r *recordingRunner) count(decisionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[decisionID]
}

func TestSchedulerRunsTrigger(t *testing.T) {
	runner := newRecordingRunner()
	s := NewScheduler(runner, 2, 8)
	s.Start(context.Background())

	s.Trigger(Event{Kind: VoteChanged, DecisionID: "dec-1"})

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := runner.count("dec-1"); got != 1 {
		t.Errorf("expected 1 calculation, got %d", got)
	}
}

func TestSchedulerCoalescesPendingTriggers(t *testing.T) {
	runner := newRecordingRunner()
	runner.block = make(chan struct{})

	// One worker: the first trigger occupies it, so the next triggers
	// for the same decision sit queued and must collapse to one run.
	s := NewScheduler(runner, 1, 8)
	s.Start(context.Background())

	s.Trigger(Event{Kind: VoteChanged, DecisionID: "busy"})
	// Give the worker time to pick it up and park in Calculate.
	time.Sleep(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		s.Trigger(Event{Kind: FollowingChanged, DecisionID: "dec-1"})
	}

	close(runner.block)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := runner.count("dec-1"); got != 1 {
		t.Errorf("expected coalescing to 1 run, got %d", got)
	}
	if got := runner.count("busy"); got != 1 {
		t.Errorf("expected 1 run for busy decision, got %d", got)
	}
}

func TestSchedulerTriggerDuringRunQueuesFollowUp(t *testing.T) {
	runner := newRecordingRunner()
	runner.block = make(chan struct{})

	s := NewScheduler(runner, 1, 8)
	s.Start(context.Background())

	s.Trigger(Event{Kind: VoteChanged, DecisionID: "dec-1"})
	time.Sleep(50 * time.Millisecond)

	// Worker cleared the pending mark before calling Calculate, so this
	// must enqueue a second run rather than be swallowed.
	s.Trigger(Event{Kind: VoteChanged, DecisionID: "dec-1"})

	close(runner.block)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := runner.count("dec-1"); got != 2 {
		t.Errorf("expected a follow-up run, got %d runs", got)
	}
}

func TestSchedulerDropsWhenQueueFull(t *testing.T) {
	runner := newRecordingRunner()
	runner.block = make(chan struct{})

	s := NewScheduler(runner, 1, 1)
	s.Start(context.Background())

	s.Trigger(Event{Kind: VoteChanged, DecisionID: "running"})
	time.Sleep(50 * time.Millisecond)
	s.Trigger(Event{Kind: VoteChanged, DecisionID: "queued"})
	s.Trigger(Event{Kind: VoteChanged, DecisionID: "dropped"})

	close(runner.block)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := runner.count("queued"); got != 1 {
		t.Errorf("queued decision should run once, got %d", got)
	}
	if got := runner.count("dropped"); got != 0 {
		t.Errorf("overflow trigger should drop, got %d runs", got)
	}
}

func TestSchedulerSnapshotActiveIsNoOp(t *testing.T) {
	runner := newRecordingRunner()
	runner.err = models.ErrSnapshotActive

	s := NewScheduler(runner, 2, 8)
	s.Start(context.Background())
	s.Trigger(Event{Kind: DecisionClosed, DecisionID: "dec-1"})

	// A busy snapshot is not a worker failure; Stop must return clean.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestSchedulerTriggerRacingStop(t *testing.T) {
	// Triggers firing concurrently with Stop must never send on the
	// closed queue. Repeated rounds widen the shutdown window.
	for i := 0; i < 200; i++ {
		runner := newRecordingRunner()
		s := NewScheduler(runner, 1, 4)
		s.Start(context.Background())

		var wg sync.WaitGroup
		for j := 0; j < 4; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				for k := 0; k < 10; k++ {
					s.Trigger(Event{Kind: VoteChanged, DecisionID: id})
				}
			}("dec-" + string(rune('a'+j)))
		}

		if err := s.Stop(); err != nil {
			t.Fatalf("Stop: %v", err)
		}
		wg.Wait()
	}
}

func TestSchedulerTriggerAfterStop(t *testing.T) {
	runner := newRecordingRunner()
	s := NewScheduler(runner, 1, 4)
	s.Start(context.Background())
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Must not panic on the closed queue.
	s.Trigger(Event{Kind: VoteChanged, DecisionID: "late"})
	if got := runner.count("late"); got != 0 {
		t.Errorf("trigger after stop should not run, got %d", got)
	}
}
