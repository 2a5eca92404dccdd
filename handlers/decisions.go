// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/snapshot"
	"github.com/jasonblum/crowdvote-sub000/store"
)

type DecisionHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	coord *snapshot.Coordinator
	disp  Dispatcher
}

func NewDecisionHandler(db *sql.DB, cfg cliparse.Config, coord *snapshot.Coordinator, disp Dispatcher) *DecisionHandler {
	return &DecisionHandler{db: db, cfg: cfg, coord: coord, disp: disp}
}

// CreateDecision handles POST /communities/{id}/decisions
func (h *DecisionHandler) CreateDecision(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")
	if communityID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "community_id is required")
		return
	}

	managerKey := r.Header.Get("X-Manager-Key")
	if err := auth.ValidateManagerKey(communityID, managerKey, h.cfg.ManagerKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid manager key")
		return
	}

	var req models.CreateDecisionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}
	if !req.ClosesAt.After(time.Now()) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "closes_at must be in the future")
		return
	}

	var exists int
	err := h.db.QueryRow("SELECT 1 FROM community WHERE id = $1", communityID).Scan(&exists)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Community not found")
		return
	}
	if err != nil {
		slog.Error("failed to query community", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	decisionID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate decision ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create decision")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO decision (id, community_id, title, closes_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, decisionID, communityID, req.Title, req.ClosesAt.Unix(), time.Now().Unix())

	if err != nil {
		slog.Error("failed to insert decision", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create decision")
		return
	}

	slog.Info("decision created", "decision_id", decisionID,
		"community_id", communityID, "closes_at", req.ClosesAt)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateDecisionResponse{
		DecisionID: decisionID,
	})
}

// AddChoice handles POST /decisions/{id}/choices
func (h *DecisionHandler) AddChoice(w http.ResponseWriter, r *http.Request) {
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

	managerKey := r.Header.Get("X-Manager-Key")
	if err := auth.ValidateManagerKey(d.CommunityID, managerKey, h.cfg.ManagerKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid manager key")
		return
	}

	if d.ClosedAt(time.Now()) {
		middleware.ErrorResponse(w, http.StatusConflict, "Decision is closed")
		return
	}

	var req models.AddChoiceRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Title == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "title is required")
		return
	}

	choiceID, err := auth.GenerateID(12)
	if err != nil {
		slog.Error("failed to generate choice ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create choice")
		return
	}

	// ord records creation order; the tally uses it as the last-resort
	// tie-break.
	_, err = h.db.Exec(`
		INSERT INTO choice (id, decision_id, title, ord)
		VALUES ($1, $2, $3, COALESCE((SELECT MAX(ord) + 1 FROM choice WHERE decision_id = $2), 0))
	`, choiceID, decisionID, req.Title)

	if err != nil {
		slog.Error("failed to insert choice", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create choice")
		return
	}

	slog.Info("choice added", "decision_id", decisionID, "choice_id", choiceID)

	middleware.JSONResponse(w, http.StatusCreated, models.AddChoiceResponse{
		ChoiceID: choiceID,
	})
}

// CloseDecision handles POST /decisions/{id}/close
func (h *DecisionHandler) CloseDecision(w http.ResponseWriter, r *http.Request) {
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

	managerKey := r.Header.Get("X-Manager-Key")
	if err := auth.ValidateManagerKey(d.CommunityID, managerKey, h.cfg.ManagerKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid manager key")
		return
	}

	now := time.Now()
	if d.ClosedAt(now) {
		middleware.ErrorResponse(w, http.StatusConflict, "Decision is already closed")
		return
	}

	_, err = h.db.Exec(`UPDATE decision SET closes_at = $1 WHERE id = $2`, now.Unix(), decisionID)
	if err != nil {
		slog.Error("failed to close decision", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to close decision")
		return
	}

	slog.Info("decision closed", "decision_id", decisionID)

	// Run the final calculation inline so the caller gets the snapshot
	// id. A snapshot already mid-flight isn't final (it predates the
	// close), so queue a follow-up instead.
	resp := models.CloseDecisionResponse{ClosedAt: now}
	snapshotID, err := h.coord.Calculate(r.Context(), decisionID)
	switch {
	case err == nil:
		resp.SnapshotID = snapshotID
	case errors.Is(err, models.ErrSnapshotActive):
		triggerDecision(h.db, h.disp, decisionID, dispatch.DecisionClosed)
	default:
		slog.Error("final calculation failed", "decision_id", decisionID, "error", err)
		middleware.DomainError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, resp)
}

// Recalculate handles POST /decisions/{id}/recalculate
func (h *DecisionHandler) Recalculate(w http.ResponseWriter, r *http.Request) {
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

	managerKey := r.Header.Get("X-Manager-Key")
	if err := auth.ValidateManagerKey(d.CommunityID, managerKey, h.cfg.ManagerKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid manager key")
		return
	}

	snapshotID, err := h.coord.Calculate(r.Context(), decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}

	slog.Info("manual recalculation completed", "decision_id", decisionID, "snapshot_id", snapshotID)

	middleware.JSONResponse(w, http.StatusOK, models.RecalculateResponse{
		SnapshotID: snapshotID,
	})
}
