// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store is the storage adapter between the calculation core and
database/sql.

# Graph Reader

CaptureFrozenGraph is the delegation graph reader: it loads a decision's
choices, community memberships, follow edges, and manual ballots into a
models.FrozenGraph. Run it inside a transaction so the capture is one
atomic read:

	tx, _ := db.Begin()
	frozen, err := store.CaptureFrozenGraph(tx, decisionID)

# Snapshot Persistence

InsertSnapshot doubles as the concurrency claim: the schema's partial
unique index on non-terminal snapshots rejects a second active snapshot
for the same decision at insert time, surfaced as ErrSnapshotActive.
State changes go through TransitionSnapshot (compare-and-set on the
current state), SetSnapshotPayload, CompleteSnapshot, and FailSnapshot.

# Ballot Materialization

ReplaceCalculatedBallot writes resolver output back to the ballot and
vote tables. Calculated votes are fully replaced each run; a manual
ballot found in the way is left untouched.

All functions accept the DBTX interface, satisfied by *sql.DB and
*sql.Tx.
*/
package store
