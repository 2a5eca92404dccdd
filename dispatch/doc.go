// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package dispatch queues and coalesces recalculation triggers.
//
// Every event that can change a decision's outcome (a vote, a following
// edit, a membership change, a decision closing) funnels through one
// Scheduler. Duplicate triggers for the same decision collapse while
// queued, a fixed worker pool runs calculations, and a full queue drops
// triggers rather than blocking request handlers.
package dispatch
