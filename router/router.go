// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"

	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/handlers"
	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/snapshot"
)

func NewRouter(db *sql.DB, cfg cliparse.Config, coord *snapshot.Coordinator, disp handlers.Dispatcher) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	communityHandler := handlers.NewCommunityHandler(db, cfg, disp)
	followingHandler := handlers.NewFollowingHandler(db, cfg, disp)
	decisionHandler := handlers.NewDecisionHandler(db, cfg, coord, disp)
	ballotHandler := handlers.NewBallotHandler(db, cfg, disp)
	resultsHandler := handlers.NewResultsHandler(db, coord)

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Community management (manager operations)
	mux.HandleFunc("POST /communities", middleware.WithLogging(communityHandler.CreateCommunity))
	mux.HandleFunc("POST /communities/{id}/members", middleware.WithLogging(communityHandler.AddMember))
	mux.HandleFunc("POST /communities/{id}/decisions", middleware.WithLogging(decisionHandler.CreateDecision))

	// Delegation edges (member operations)
	mux.HandleFunc("POST /communities/{id}/followings", middleware.WithLogging(followingHandler.CreateFollowing))
	mux.HandleFunc("DELETE /communities/{id}/followings/{fid}", middleware.WithLogging(followingHandler.DeleteFollowing))

	// Decision lifecycle
	mux.HandleFunc("POST /decisions/{id}/choices", middleware.WithLogging(decisionHandler.AddChoice))
	mux.HandleFunc("POST /decisions/{id}/close", middleware.WithLogging(decisionHandler.CloseDecision))
	mux.HandleFunc("POST /decisions/{id}/recalculate", middleware.WithLogging(decisionHandler.Recalculate))

	// Voting
	mux.HandleFunc("POST /decisions/{id}/ballots", middleware.WithLogging(ballotHandler.CastBallot))

	// Results retrieval (public)
	mux.HandleFunc("GET /decisions/{id}", middleware.WithLogging(resultsHandler.GetDecision))
	mux.HandleFunc("GET /decisions/{id}/results", middleware.WithLogging(resultsHandler.GetResults))
	mux.HandleFunc("GET /decisions/{id}/tree", middleware.WithLogging(resultsHandler.GetTree))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("crowdvote API v1"))
	})

	return mux
}
