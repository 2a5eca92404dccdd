// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"sync"
	"testing"

	"github.com/jasonblum/crowdvote-sub000/dispatch"
)

// fakeDispatcher records triggers instead of running calculations.
type fakeDispatcher struct {
	mu     sync.Mutex
	events []dispatch.Event
}

func (f *fakeDispatcher) Trigger(ev dispatch.Event) {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
}

func (f *fakeDispatcher) eventsFor(decisionID string) []dispatch.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kinds []dispatch.EventKind
	for _, ev := range f.events {
		if ev.DecisionID == decisionID {
			kinds = append(kinds, ev.Kind)
		}
	}
	return kinds
}

func assertTriggered(t *testing.T, f *fakeDispatcher, decisionID string, kind dispatch.EventKind) {
	t.Helper()
	for _, k := range f.eventsFor(decisionID) {
		if k == kind {
			return
		}
	}
	t.Errorf("Expected %s trigger for decision %s, got %v", kind, decisionID, f.eventsFor(decisionID))
}
