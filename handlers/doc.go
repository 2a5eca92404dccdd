// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the CrowdVote API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - CommunityHandler: Community creation and membership
  - FollowingHandler: Delegation edge creation and removal
  - DecisionHandler: Decision lifecycle (create, add choices, close, recalculate)
  - BallotHandler: Manual ballot casting
  - ResultsHandler: Decision info, tally results, delegation tree

Handlers are created via constructor functions that accept *sql.DB,
Config, and where relevant the snapshot coordinator and dispatcher:

	communityHandler := handlers.NewCommunityHandler(db, cfg, scheduler)

# Community Flow

	POST /communities               → CreateCommunity (returns manager_key)
	POST /communities/{id}/members  → AddMember (returns member_token)

Manager operations require the X-Manager-Key header.

# Delegation Flow

Members manage their own follow edges via their token:

	POST   /communities/{id}/followings       → CreateFollowing
	DELETE /communities/{id}/followings/{fid} → DeleteFollowing

Member operations require the X-Member-Token header.

# Decision Lifecycle

	POST /communities/{id}/decisions  → CreateDecision (closes_at in the future)
	POST /decisions/{id}/choices      → AddChoice (open decisions only)
	POST /decisions/{id}/ballots      → CastBallot (integer stars 0-5, upsert)
	POST /decisions/{id}/close        → CloseDecision (runs the final calculation)
	POST /decisions/{id}/recalculate  → Recalculate (manual trigger)

# Results

	GET /decisions/{id}          → decision + choices
	GET /decisions/{id}/results  → latest completed tally (404 before first run)
	GET /decisions/{id}/tree     → delegation tree of the latest snapshot

# Recalculation Triggers

Every mutation that can change an outcome (ballot cast, follow edge
change, membership change, close) flags the affected decisions and
enqueues them on the dispatch scheduler. Graph-shaped changes fan out to
every open decision in the community.
*/
package handlers
