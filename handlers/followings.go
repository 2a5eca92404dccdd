// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

type FollowingHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	disp Dispatcher
}

func NewFollowingHandler(db *sql.DB, cfg cliparse.Config, disp Dispatcher) *FollowingHandler {
	return &FollowingHandler{db: db, cfg: cfg, disp: disp}
}

// CreateFollowing handles POST /communities/{id}/followings
func (h *FollowingHandler) CreateFollowing(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")
	if communityID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "community_id is required")
		return
	}

	// The member token identifies the follower; nobody can create edges
	// on someone else's behalf.
	follower, err := lookupMembership(h.db, communityID, r.Header.Get("X-Member-Token"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
			return
		}
		slog.Error("failed to look up membership", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var req models.CreateFollowingRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.FolloweeID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "followee_id is required")
		return
	}
	if req.FolloweeID == follower.ID {
		middleware.ErrorResponse(w, http.StatusBadRequest, "cannot follow yourself")
		return
	}

	// Followee must be a membership in the same community.
	var followeeCommunity string
	err = h.db.QueryRow("SELECT community_id FROM membership WHERE id = $1", req.FolloweeID).Scan(&followeeCommunity)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Followee not found")
		return
	}
	if err != nil {
		slog.Error("failed to query followee", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if followeeCommunity != communityID {
		middleware.ErrorResponse(w, http.StatusUnprocessableEntity, "Followee belongs to a different community")
		return
	}

	followingID, err := auth.GenerateID(16)
	if err != nil {
		slog.Error("failed to generate following ID", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create following")
		return
	}

	_, err = h.db.Exec(`
		INSERT INTO following (id, community_id, follower_id, followee_id, tags, ord)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, followingID, communityID, follower.ID, req.FolloweeID,
		tags.Join(tags.Normalize(req.Tags)), req.Order)

	if err != nil {
		slog.Error("failed to insert following", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create following")
		return
	}

	slog.Info("following created", "community_id", communityID,
		"follower_id", follower.ID, "followee_id", req.FolloweeID)

	triggerCommunity(h.db, h.disp, communityID, dispatch.FollowingChanged)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateFollowingResponse{
		FollowingID: followingID,
	})
}

// DeleteFollowing handles DELETE /communities/{id}/followings/{fid}
func (h *FollowingHandler) DeleteFollowing(w http.ResponseWriter, r *http.Request) {
	communityID := r.PathValue("id")
	followingID := r.PathValue("fid")
	if communityID == "" || followingID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "community_id and following_id are required")
		return
	}

	follower, err := lookupMembership(h.db, communityID, r.Header.Get("X-Member-Token"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
			return
		}
		slog.Error("failed to look up membership", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	// Only the edge's own follower may remove it.
	res, err := h.db.Exec(`
		DELETE FROM following
		WHERE id = $1 AND community_id = $2 AND follower_id = $3
	`, followingID, communityID, follower.ID)
	if err != nil {
		slog.Error("failed to delete following", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete following")
		return
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read rows affected", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete following")
		return
	}
	if affected == 0 {
		middleware.ErrorResponse(w, http.StatusNotFound, "Following not found")
		return
	}

	slog.Info("following deleted", "community_id", communityID,
		"following_id", followingID, "follower_id", follower.ID)

	triggerCommunity(h.db, h.disp, communityID, dispatch.FollowingChanged)

	w.WriteHeader(http.StatusNoContent)
}
