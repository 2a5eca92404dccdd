// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API,
plus the shared error taxonomy and the frozen snapshot payload types.

# Domain Types

  - Member: a person, referenced by id
  - Community: a named group of memberships
  - Membership: a member's role in one community (voter/lobbyist/manager)
  - Following: a directed, tag-scoped delegation edge between memberships
  - Decision: a question put to a community, with a close time
  - Choice: one option on a decision
  - Ballot: one per (decision, membership); manual or calculated
  - Vote: (ballot, choice) -> stars in [0, 5]
  - Snapshot: a calculation record with its lifecycle state

# Frozen Payload

FrozenGraph is the point-in-time copy of everything a calculation reads:
memberships, follow edges, manual ballots, choices. It is captured in one
transaction and serialized onto the snapshot row; the resolver and tally
engine never read live storage.

# Resolution Output

ResolvedBallot, DelegationTree, TallyResult, and SnapshotResult are the
outputs of a calculation run. All tree slices are sorted so the same
frozen input always serializes to identical bytes.

# Error Taxonomy

	ErrNotFound       -> 404
	ErrInvalidState   -> 409
	ErrSnapshotActive -> 409
	ErrInvalidGraph   -> 422
	ErrInternal       -> 500

# Constants

Snapshot lifecycle:

	creating -> ready -> staging -> tallying -> completed
	(any non-terminal state) -> failed_snapshot | failed_staging |
	                            failed_tallying | corrupted

Ballot kinds:

	BallotManual     = "manual"
	BallotCalculated = "calculated"
*/
package models
