// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package snapshot orchestrates calculation runs: point-in-time capture,
delegation resolution, STAR tally, and the state machine that keeps
concurrent triggers from double-running.

# Lifecycle

	creating -> ready -> staging -> tallying -> completed
	(any non-terminal) -> failed_snapshot | failed_staging |
	                      failed_tallying | corrupted

CreateSnapshot inserts the snapshot row first; the schema's partial
unique index on non-terminal snapshots makes that insert the atomic
claim (a concurrent second trigger gets ErrSnapshotActive). It then
captures the frozen graph in one transaction and stores it as the
snapshot payload.

RunSnapshot advances a ready snapshot: staging resolves every voter
against the frozen payload only - never re-reading live storage - and
materializes the calculated ballots; tallying runs the STAR engine and
persists the tally plus the full delegation tree. A fault at any stage
lands in the matching terminal failed_* state with the message recorded;
failed snapshots are never retried - a new snapshot starts from scratch.

A snapshot is marked final only when its decision's close time has
passed at completion and no final snapshot exists yet; the schema allows
one final snapshot per decision, ever.

# Reads

GetTallyResult returns the latest completed snapshot's tally and
delegation tree, or nil if no calculation has completed.
*/
package snapshot
