// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/middleware"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/store"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

type BallotHandler struct {
	db   *sql.DB
	cfg  cliparse.Config
	disp Dispatcher
}

func NewBallotHandler(db *sql.DB, cfg cliparse.Config, disp Dispatcher) *BallotHandler {
	return &BallotHandler{db: db, cfg: cfg, disp: disp}
}

// CastBallot handles POST /decisions/{id}/ballots
//
// Casting is an upsert: a member's manual ballot fully replaces their
// previous one (manual or calculated). Manual ballots carry integer
// stars; fractional scores only ever come out of the resolver.
func (h *BallotHandler) CastBallot(w http.ResponseWriter, r *http.Request) {
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

	member, err := lookupMembership(h.db, d.CommunityID, r.Header.Get("X-Member-Token"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid member token")
			return
		}
		slog.Error("failed to look up membership", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	now := time.Now()
	if d.ClosedAt(now) {
		middleware.ErrorResponse(w, http.StatusConflict, "Decision is closed")
		return
	}

	var req models.CastBallotRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Stars) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "stars are required")
		return
	}
	for choiceID, value := range req.Stars {
		if value < 0 || value > models.MaxStars {
			middleware.ErrorResponse(w, http.StatusBadRequest,
				"stars must be between 0 and 5 for choice "+choiceID)
			return
		}
	}

	// Every scored choice must belong to this decision.
	choices, err := store.GetChoices(h.db, decisionID)
	if err != nil {
		middleware.DomainError(w, err)
		return
	}
	valid := make(map[string]bool, len(choices))
	for _, c := range choices {
		valid[c.ID] = true
	}
	for choiceID := range req.Stars {
		if !valid[choiceID] {
			middleware.ErrorResponse(w, http.StatusUnprocessableEntity,
				"choice "+choiceID+" does not belong to this decision")
			return
		}
	}

	ballotTags := tags.Join(tags.Normalize(req.Tags))

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// Replace any existing ballot for this member, calculated or manual.
	var ballotID string
	err = tx.QueryRow(`
		SELECT id FROM ballot
		WHERE decision_id = $1 AND membership_id = $2
	`, decisionID, member.ID).Scan(&ballotID)

	switch {
	case err == sql.ErrNoRows:
		ballotID, err = auth.GenerateID(16)
		if err != nil {
			slog.Error("failed to generate ballot ID", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
			return
		}
		_, err = tx.Exec(`
			INSERT INTO ballot (id, decision_id, membership_id, is_calculated, tags, updated_at)
			VALUES ($1, $2, $3, 0, $4, $5)
		`, ballotID, decisionID, member.ID, ballotTags, now.Unix())
		if err != nil {
			slog.Error("failed to insert ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
			return
		}
	case err != nil:
		slog.Error("failed to query ballot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	default:
		_, err = tx.Exec(`
			UPDATE ballot SET is_calculated = 0, tags = $1, updated_at = $2 WHERE id = $3
		`, ballotTags, now.Unix(), ballotID)
		if err != nil {
			slog.Error("failed to update ballot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
			return
		}
		_, err = tx.Exec(`DELETE FROM vote WHERE ballot_id = $1`, ballotID)
		if err != nil {
			slog.Error("failed to clear votes", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
			return
		}
	}

	choiceIDs := make([]string, 0, len(req.Stars))
	for id := range req.Stars {
		choiceIDs = append(choiceIDs, id)
	}
	sort.Strings(choiceIDs)

	for _, choiceID := range choiceIDs {
		_, err = tx.Exec(`
			INSERT INTO vote (ballot_id, choice_id, stars)
			VALUES ($1, $2, $3)
		`, ballotID, choiceID, req.Stars[choiceID])
		if err != nil {
			slog.Error("failed to insert vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
			return
		}
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to cast ballot")
		return
	}

	slog.Info("ballot cast", "decision_id", decisionID,
		"membership_id", member.ID, "choices", len(req.Stars))

	triggerDecision(h.db, h.disp, decisionID, dispatch.VoteChanged)

	middleware.JSONResponse(w, http.StatusOK, models.CastBallotResponse{
		BallotID: ballotID,
		Message:  "Ballot recorded",
	})
}
