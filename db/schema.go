// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// The SQL is deliberately portable: the same text runs on PostgreSQL
// (lib/pq) and SQLite (modernc.org/sqlite). Timestamps are unix seconds
// in INTEGER columns and booleans are INTEGER 0/1 so both drivers scan
// identically.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Members
CREATE TABLE IF NOT EXISTS member (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
);

-- Communities
CREATE TABLE IF NOT EXISTS community (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Memberships: the delegation node identity. Follow edges connect
-- memberships, scoped to one community.
CREATE TABLE IF NOT EXISTS membership (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    member_id TEXT NOT NULL REFERENCES member(id) ON DELETE CASCADE,
    member_token TEXT NOT NULL,
    is_voter INTEGER NOT NULL DEFAULT 1,
    is_lobbyist INTEGER NOT NULL DEFAULT 0,
    is_manager INTEGER NOT NULL DEFAULT 0,
    is_anonymous INTEGER NOT NULL DEFAULT 0,
    UNIQUE (community_id, member_id)
);

CREATE INDEX IF NOT EXISTS idx_membership_community ON membership(community_id);
CREATE INDEX IF NOT EXISTS idx_membership_token ON membership(community_id, member_token);

-- Followings: directed, tag-scoped delegation edges. Duplicate
-- (follower, followee) pairs are legal input; the resolver deduplicates.
CREATE TABLE IF NOT EXISTS following (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    follower_id TEXT NOT NULL REFERENCES membership(id) ON DELETE CASCADE,
    followee_id TEXT NOT NULL REFERENCES membership(id) ON DELETE CASCADE,
    tags TEXT NOT NULL DEFAULT '',
    ord INTEGER NOT NULL DEFAULT 0,
    CHECK (follower_id <> followee_id)
);

CREATE INDEX IF NOT EXISTS idx_following_follower ON following(follower_id);
CREATE INDEX IF NOT EXISTS idx_following_community ON following(community_id);

-- Decisions
CREATE TABLE IF NOT EXISTS decision (
    id TEXT PRIMARY KEY,
    community_id TEXT NOT NULL REFERENCES community(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    closes_at INTEGER NOT NULL,
    needs_recalc INTEGER NOT NULL DEFAULT 0,
    final_snapshot_id TEXT,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decision_community ON decision(community_id);

-- Choices: ord preserves creation order for tally tie-breaks. score and
-- runoff_score are post-tally caches.
CREATE TABLE IF NOT EXISTS choice (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL REFERENCES decision(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    ord INTEGER NOT NULL,
    score REAL NOT NULL DEFAULT 0,
    runoff_score REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_choice_decision ON choice(decision_id);

-- Ballots: one per (decision, membership). Calculated ballots are owned
-- by the resolver and fully replaced on every recalculation.
CREATE TABLE IF NOT EXISTS ballot (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL REFERENCES decision(id) ON DELETE CASCADE,
    membership_id TEXT NOT NULL REFERENCES membership(id) ON DELETE CASCADE,
    is_calculated INTEGER NOT NULL DEFAULT 0,
    tags TEXT NOT NULL DEFAULT '',
    updated_at INTEGER NOT NULL,
    UNIQUE (decision_id, membership_id)
);

CREATE INDEX IF NOT EXISTS idx_ballot_decision ON ballot(decision_id);

-- Votes
CREATE TABLE IF NOT EXISTS vote (
    ballot_id TEXT NOT NULL REFERENCES ballot(id) ON DELETE CASCADE,
    choice_id TEXT NOT NULL REFERENCES choice(id) ON DELETE CASCADE,
    stars REAL NOT NULL CHECK (stars >= 0 AND stars <= 5),
    PRIMARY KEY (ballot_id, choice_id)
);

CREATE INDEX IF NOT EXISTS idx_vote_choice ON vote(choice_id);

-- Calculation snapshots: append-only. payload holds the frozen graph
-- JSON; result holds the tally + delegation tree JSON once completed.
CREATE TABLE IF NOT EXISTS calc_snapshot (
    id TEXT PRIMARY KEY,
    decision_id TEXT NOT NULL REFERENCES decision(id) ON DELETE CASCADE,
    state TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    payload TEXT,
    result TEXT,
    is_final INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calc_snapshot_decision ON calc_snapshot(decision_id);

-- At most one snapshot per decision may be in a non-terminal state: the
-- insert itself is the atomic claim.
CREATE UNIQUE INDEX IF NOT EXISTS idx_calc_snapshot_active ON calc_snapshot(decision_id)
    WHERE state NOT IN ('completed', 'failed_snapshot', 'failed_staging', 'failed_tallying', 'corrupted');

-- Only one final snapshot may ever exist per decision.
CREATE UNIQUE INDEX IF NOT EXISTS idx_calc_snapshot_final ON calc_snapshot(decision_id)
    WHERE is_final = 1;
`
