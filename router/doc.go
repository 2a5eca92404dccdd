// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the CrowdVote API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(db, cfg, coord, scheduler)

# Endpoints

Health:

	GET /health

Community management (manager, requires X-Manager-Key):

	POST /communities                - Create community
	POST /communities/{id}/members   - Add member
	POST /communities/{id}/decisions - Create decision

Delegation (member, requires X-Member-Token):

	POST   /communities/{id}/followings       - Create follow edge
	DELETE /communities/{id}/followings/{fid} - Remove follow edge

Decision lifecycle (manager):

	POST /decisions/{id}/choices     - Add choice
	POST /decisions/{id}/close       - Close and run final calculation
	POST /decisions/{id}/recalculate - Manual recalculation

Voting (member):

	POST /decisions/{id}/ballots - Cast/update manual ballot

Results (public):

	GET /decisions/{id}         - Decision info and choices
	GET /decisions/{id}/results - Latest completed tally
	GET /decisions/{id}/tree    - Delegation tree

# Handler Initialization

The router creates handler instances with dependency injection:

	communityHandler := handlers.NewCommunityHandler(db, cfg, disp)
	decisionHandler := handlers.NewDecisionHandler(db, cfg, coord, disp)

Handlers receive the database connection, configuration, and where they
mutate state, the snapshot coordinator and dispatch scheduler.
*/
package router
