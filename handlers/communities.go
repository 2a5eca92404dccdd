// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/models"
)

type CommunityHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	disp Dispatcher
}

func NewCommunityHandler(db *sql.DB, cfg cliparse.Config, disp Dispatcher) *CommunityHandler {
	return &CommunityHandler{db: db, cfg: cfg, disp: disp}
}

// CreateCommunity handles POST /communities
func (h *CommunityHandler) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCommunityRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate input
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	communityID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate community ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	managerKey := auth.GenerateManagerKey(communityID, h.cfg.ManagerKeySalt)

	_, err = h.db.Exec(`
		INSERT INTO community (id, name, created_at)
		VALUES ($1, $2, $3)
	`, communityID, req.Name, time.Now().Unix())

	if err != nil {
		slog.Error("failed to insert community", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create community")
		return
	}

	slog.Info("community created", "community_id", communityID, "name", req.Name)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateCommunityResponse{
		CommunityID: communityID,
		ManagerKey:  managerKey,
	})
}

// AddMember handles POST /communities/{id}/members
func (h *CommunityHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")
	if communityID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "community_id is required")
		return
	}

	// Validate manager key
	managerKey := r.Header.Get("X-Manager-Key")
	if err := auth.ValidateManagerKey(communityID, managerKey, h.cfg.ManagerKeySalt); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid manager key")
		return
	}

	var req models.AddMemberRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.IsVoter && req.IsLobbyist {
		middleware.ErrorResponse(w, http.StatusBadRequest, "a membership is a voter or a lobbyist, not both")
		return
	}

	// Check community exists
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

	memberID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate member ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	membershipID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate membership ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}
	memberToken, err := auth.GenerateMemberToken()
	if err != nil {
		slog.Error("failed to generate member token", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO member (id, name)
		VALUES ($1, $2)
	`, memberID, req.Name)
	if err != nil {
		slog.Error("failed to insert member", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}

	isVoter := 0
	if req.IsVoter {
		isVoter = 1
	}
	_, err = tx.Exec(`
		INSERT INTO membership (id, community_id, member_id, member_token, is_voter, is_lobbyist, is_manager, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, membershipID, communityID, memberID, memberToken,
		isVoter, boolToInt(req.IsLobbyist), boolToInt(req.IsManager), boolToInt(req.IsAnonymous))
	if err != nil {
		slog.Error("failed to insert membership", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to add member")
		return
	}

	slog.Info("member added", "community_id", communityID,
		"membership_id", membershipID, "is_voter", req.IsVoter)

	// A new membership changes the graph every open decision resolves
	// against.
	triggerCommunity(h.db, h.disp, communityID, dispatch.MembershipChanged)

	middleware.JSONResponse(w, http.StatusCreated, models.AddMemberResponse{
		MemberID:     memberID,
		MembershipID: membershipID,
		MemberToken:  memberToken,
	})
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
