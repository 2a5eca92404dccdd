// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema initializes all required tables:

	if err := db.CreateSchema(conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - uses IF NOT EXISTS for all tables and
indexes. The SQL is portable between PostgreSQL and SQLite; the server
picks the driver from DATABASE_TYPE.

# Tables

  - member: people, referenced by id
  - community: named groups
  - membership: a member's role and voting token in one community
  - following: tag-scoped delegation edges between memberships
  - decision: questions with a close time
  - choice: options per decision, with post-tally score caches
  - ballot: one per (decision, membership), manual or calculated
  - vote: per-choice star scores (0-5, fractional for calculated)
  - calc_snapshot: append-only calculation records

# Relationships

	community 1──* membership
	community 1──* following (membership -> membership)
	community 1──* decision
	decision 1──* choice
	decision 1──* ballot
	ballot 1──* vote
	decision 1──* calc_snapshot

All foreign keys use ON DELETE CASCADE.

# Concurrency Invariants in Schema

Two partial unique indexes carry invariants the coordinator relies on:

  - idx_calc_snapshot_active: at most one non-terminal snapshot per
    decision; inserting the snapshot row is the atomic claim.
  - idx_calc_snapshot_final: at most one final snapshot per decision,
    ever.
*/
package db
