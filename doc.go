// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the CrowdVote API server.

CrowdVote is a delegative democracy service: community members either
score decision choices directly (0-5 stars) or follow other members on
tagged topics and inherit their votes transitively. Outcomes are
computed with STAR voting (Score Then Automatic Runoff) over frozen
snapshots of the delegation graph.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=postgres://... DATABASE_TYPE=postgres go run main.go

Or with flags:

	go run main.go -p 3420 -d "postgres://..." -t postgres

# Configuration

Required settings:

  - DATABASE_URL (-d): Connection string (PostgreSQL DSN or SQLite path)
  - MANAGER_KEY_SALT (--manager-salt): Secret for manager key HMAC

Optional settings:

  - PORT (-p): Server port (default: 3420)
  - DATABASE_TYPE (-t): "postgres" or "sqlite" (default: sqlite)
  - CALC_WORKERS (-workers): Calculation worker count (default: 4)
  - CALC_QUEUE_SIZE (-queue): Trigger queue capacity (default: 256)

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (communities, followings, decisions, voting, results)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers
  - models: Request/response and domain types
  - auth: Key and token generation and validation
  - db: Schema creation
  - cliparse: Configuration parsing
  - tags: Tag normalization and matching
  - delegation: Vote inheritance resolver over the frozen graph
  - star: STAR tally engine
  - snapshot: Calculation state machine (capture, stage, tally)
  - dispatch: Recalculation trigger queue and worker pool
  - store: Shared SQL read/write helpers

See package documentation for each component.
*/
package main
