// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

// Error taxonomy shared by the store, the calculation engines, and the
// HTTP layer. Handlers map these to status codes with errors.Is.
var (
	// ErrNotFound means a referenced decision, membership, or snapshot
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidGraph means a local data-integrity fault: a follow edge
	// crossing community boundaries, or a vote referencing a choice
	// outside its ballot's decision.
	ErrInvalidGraph = errors.New("invalid delegation graph")

	// ErrInvalidState means an operation was attempted on a snapshot in
	// the wrong lifecycle state.
	ErrInvalidState = errors.New("invalid snapshot state")

	// ErrSnapshotActive means a calculation was requested for a decision
	// that already has a snapshot in a non-terminal state.
	ErrSnapshotActive = errors.New("snapshot already active for decision")

	// ErrInternal means an unexpected fault during capture, resolution,
	// or tally.
	ErrInternal = errors.New("internal fault")
)
