// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"net/http"

	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/snapshot"
	"github.com/jasonblum/crowdvote-sub000/store"
)

type ResultsHandler struct {
	db    *sql.DB
	coord *snapshot.Coordinator
}

func NewResultsHandler(db *sql.DB, coord *snapshot.Coordinator) *ResultsHandler {
	return &ResultsHandler{db: db, coord: coord}
}

// GetDecision handles GET /decisions/{id}
func (h *ResultsHandler) GetDecision(w http.ResponseWriter, r *http.Request) {
	decisionID := r.PathValue("id")
	if decisionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "decision_id is required")
		return
	}

	d, err := store.GetDecision(h.db, decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	choices, err := store.GetChoices(h.db, decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.DecisionWithChoices{
		Decision: d,
		Choices:  choices,
	})
}

// GetResults handles GET /decisions/{id}/results
func (h *ResultsHandler) GetResults(w http.ResponseWriter, r *http.Request) {
	decisionID := r.PathValue("id")
	if decisionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "decision_id is required")
		return
	}

	d, err := store.GetDecision(h.db, decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	readout, err := h.coord.GetTallyResult(r.Context(), decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	if readout == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No completed calculation yet")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.ResultsResponse{
		Decision:    d,
		SnapshotID:  readout.SnapshotID,
		ComputedAt:  readout.ComputedAt,
		BallotCount: readout.Tally.BallotCount,
		Tally:       readout.Tally,
	})
}

// GetTree handles GET /decisions/{id}/tree
//
// The tree comes straight from the completed snapshot, so it shows the
// graph as it was at capture time, with anonymous members already
// masked by the resolver.
func (h *ResultsHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	decisionID := r.PathValue("id")
	if decisionID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "decision_id is required")
		return
	}

	if _, err := store.GetDecision(h.db, decisionID); err != nil {
		middleware.DomainError(w, err)
		return
	}

	readout, err := h.coord.GetTallyResult(r.Context(), decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	if readout == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No completed calculation yet")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.TreeResponse{
		SnapshotID: readout.SnapshotID,
		ComputedAt: readout.ComputedAt,
		Tree:       readout.Tree,
	})
}
