// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/store"
)

// Dispatcher is the scheduler surface the handlers need: fire a
// recalculation trigger and move on.
type Dispatcher interface {
	Trigger(ev dispatch.Event)
}

// lookupMembership resolves a member token to its membership within one
// community. Wrong or missing tokens come back as ErrNotFound.
func lookupMembership(db *sql.DB, communityID, memberToken string) (models.Membership, error) {
	var ms models.Membership
	var isVoter, isLobbyist, isManager, isAnonymous int64

	err := db.QueryRow(`
		SELECT id, community_id, member_id, is_voter, is_lobbyist, is_manager, is_anonymous
		FROM membership
		WHERE community_id = $1 AND member_token = $2
	`, communityID, memberToken).Scan(
		&ms.ID, &ms.CommunityID, &ms.MemberID,
		&isVoter, &isLobbyist, &isManager, &isAnonymous,
	)
	if err == sql.ErrNoRows {
		return models.Membership{}, fmt.Errorf("membership: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.Membership{}, fmt.Errorf("failed to query membership: %w", err)
	}

	ms.IsVoter = isVoter != 0
	ms.IsLobbyist = isLobbyist != 0
	ms.IsManager = isManager != 0
	ms.IsAnonymous = isAnonymous != 0
	return ms, nil
}

// triggerDecision marks one decision for recalculation and enqueues it.
func triggerDecision(db *sql.DB, disp Dispatcher, decisionID string, kind dispatch.EventKind) {
	if err := store.SetNeedsRecalc(db, decisionID, true); err != nil {
		slog.Error("failed to flag decision for recalculation",
			"decision_id", decisionID, "error", err)
	}
	if disp != nil {
		disp.Trigger(dispatch.Event{Kind: kind, DecisionID: decisionID})
	}
}

// triggerCommunity fans a graph-shaped change (follow edge, membership)
// out to every open decision in the community: each one's calculated
// ballots may now be stale.
func triggerCommunity(db *sql.DB, disp Dispatcher, communityID string, kind dispatch.EventKind) {
	rows, err := db.Query(`
		SELECT id FROM decision
		WHERE community_id = $1 AND closes_at > $2
	`, communityID, time.Now().Unix())
	if err != nil {
		slog.Error("failed to query open decisions",
			"community_id", communityID, "error", err)
		return
	}
	defer rows.Close()

	var decisionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			slog.Error("failed to scan decision id", "error", err)
			return
		}
		decisionIDs = append(decisionIDs, id)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read open decisions", "error", err)
		return
	}

	for _, id := range decisionIDs {
		triggerDecision(db, disp, id, kind)
	}
}
