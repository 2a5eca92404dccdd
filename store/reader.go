// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

// GetDecision loads one decision row.
func GetDecision(q DBTX, decisionID string) (models.Decision, error) {
	var d models.Decision
	var closesAt, createdAt, needsRecalc int64
	var finalSnapshot sql.NullString

	err := q.QueryRow(`
		SELECT id, community_id, title, closes_at, needs_recalc, final_snapshot_id, created_at
		FROM decision
		WHERE id = $1
	`, decisionID).Scan(&d.ID, &d.CommunityID, &d.Title, &closesAt, &needsRecalc, &finalSnapshot, &createdAt)

	if err == sql.ErrNoRows {
		return models.Decision{}, fmt.Errorf("decision %s: %w", decisionID, models.ErrNotFound)
	}
	if err != nil {
		return models.Decision{}, fmt.Errorf("failed to query decision: %w", err)
	}

	d.ClosesAt = time.Unix(closesAt, 0).UTC()
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	d.NeedsRecalc = needsRecalc != 0
	if finalSnapshot.Valid {
		d.FinalSnapshotID = &finalSnapshot.String
	}
	return d, nil
}

// GetChoices loads a decision's choices in creation order.
func GetChoices(q DBTX, decisionID string) ([]models.Choice, error) {
	rows, err := q.Query(`
		SELECT id, decision_id, title, ord, score, runoff_score
		FROM choice
		WHERE decision_id = $1
		ORDER BY ord, id
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	choices := []models.Choice{}
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.DecisionID, &c.Title, &c.Order, &c.Score, &c.RunoffScore); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, c)
	}
	return choices, rows.Err()
}

// CaptureFrozenGraph reads everything one calculation needs - decision,
// choices, memberships, follow edges, and manual ballots with their
// votes - into a FrozenGraph. The caller is expected to pass a *sql.Tx
// so the whole capture is one atomic read.
func CaptureFrozenGraph(q DBTX, decisionID string) (*models.FrozenGraph, error) {
	d, err := GetDecision(q, decisionID)
	if err != nil {
		return nil, err
	}

	g := &models.FrozenGraph{
		DecisionID:  d.ID,
		CommunityID: d.CommunityID,
		Title:       d.Title,
		ClosesAt:    d.ClosesAt.Unix(),
		Followings:  make(map[string][]models.FrozenFollowing),
		Ballots:     make(map[string]models.FrozenBallot),
	}

	choices, err := GetChoices(q, decisionID)
	if err != nil {
		return nil, err
	}
	for _, c := range choices {
		g.Choices = append(g.Choices, models.FrozenChoice{ID: c.ID, Title: c.Title, Order: c.Order})
	}

	if err := captureMemberships(q, g); err != nil {
		return nil, err
	}
	if err := captureFollowings(q, g); err != nil {
		return nil, err
	}
	if err := captureManualBallots(q, g); err != nil {
		return nil, err
	}

	return g, nil
}

func captureMemberships(q DBTX, g *models.FrozenGraph) error {
	rows, err := q.Query(`
		SELECT ms.id, ms.member_id, m.name, ms.is_voter, ms.is_lobbyist, ms.is_anonymous
		FROM membership ms
		JOIN member m ON ms.member_id = m.id
		WHERE ms.community_id = $1
		ORDER BY ms.id
	`, g.CommunityID)
	if err != nil {
		return fmt.Errorf("failed to query memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m models.FrozenMembership
		var isVoter, isLobbyist, isAnonymous int64
		if err := rows.Scan(&m.ID, &m.MemberID, &m.MemberName, &isVoter, &isLobbyist, &isAnonymous); err != nil {
			return fmt.Errorf("failed to scan membership: %w", err)
		}
		m.IsVoter = isVoter != 0
		m.IsLobbyist = isLobbyist != 0
		m.IsAnonymous = isAnonymous != 0
		g.Memberships = append(g.Memberships, m)
	}
	return rows.Err()
}

func captureFollowings(q DBTX, g *models.FrozenGraph) error {
	rows, err := q.Query(`
		SELECT id, community_id, follower_id, followee_id, tags, ord
		FROM following
		WHERE community_id = $1
		ORDER BY follower_id, ord, id
	`, g.CommunityID)
	if err != nil {
		return fmt.Errorf("failed to query followings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var followerID, tagStr string
		var f models.FrozenFollowing
		if err := rows.Scan(&f.ID, &f.CommunityID, &followerID, &f.FolloweeID, &tagStr, &f.Order); err != nil {
			return fmt.Errorf("failed to scan following: %w", err)
		}
		f.Tags = tags.Parse(tagStr)
		g.Followings[followerID] = append(g.Followings[followerID], f)
	}
	return rows.Err()
}

// captureManualBallots freezes the manually cast ballots only.
// Calculated ballots are resolver output, rebuilt on every run; freezing
// them would feed a previous run's results into this one.
func captureManualBallots(q DBTX, g *models.FrozenGraph) error {
	rows, err := q.Query(`
		SELECT id, membership_id, tags
		FROM ballot
		WHERE decision_id = $1 AND is_calculated = 0
		ORDER BY id
	`, g.DecisionID)
	if err != nil {
		return fmt.Errorf("failed to query ballots: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.FrozenBallot)
	for rows.Next() {
		var id, membershipID, tagStr string
		if err := rows.Scan(&id, &membershipID, &tagStr); err != nil {
			return fmt.Errorf("failed to scan ballot: %w", err)
		}
		byID[id] = &models.FrozenBallot{
			ID:           id,
			MembershipID: membershipID,
			Tags:         tags.Parse(tagStr),
			Stars:        make(map[string]float64),
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	voteRows, err := q.Query(`
		SELECT v.ballot_id, v.choice_id, v.stars
		FROM vote v
		JOIN ballot b ON v.ballot_id = b.id
		WHERE b.decision_id = $1 AND b.is_calculated = 0
		ORDER BY v.ballot_id, v.choice_id
	`, g.DecisionID)
	if err != nil {
		return fmt.Errorf("failed to query votes: %w", err)
	}
	defer voteRows.Close()

	for voteRows.Next() {
		var ballotID, choiceID string
		var stars float64
		if err := voteRows.Scan(&ballotID, &choiceID, &stars); err != nil {
			return fmt.Errorf("failed to scan vote: %w", err)
		}
		if b, ok := byID[ballotID]; ok {
			b.Stars[choiceID] = stars
		}
	}
	if err := voteRows.Err(); err != nil {
		return err
	}

	for _, b := range byID {
		g.Ballots[b.MembershipID] = *b
	}
	return nil
}
