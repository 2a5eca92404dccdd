// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

// ReplaceCalculatedBallot materializes one resolver-calculated ballot:
// the ballot row is upserted with is_calculated = 1 and its votes are
// fully replaced, never merged. A manual ballot for the same voter is
// left untouched - manual ballots are not this function's to overwrite.
func ReplaceCalculatedBallot(q DBTX, decisionID, membershipID, ballotID string, ballotTags []string, stars map[string]float64, now time.Time) error {
	var existingID string
	var isCalculated int64
	err := q.QueryRow(`
		SELECT id, is_calculated FROM ballot
		WHERE decision_id = $1 AND membership_id = $2
	`, decisionID, membershipID).Scan(&existingID, &isCalculated)

	switch {
	case err == sql.ErrNoRows:
		_, err = q.Exec(`
			INSERT INTO ballot (id, decision_id, membership_id, is_calculated, tags, updated_at)
			VALUES ($1, $2, $3, 1, $4, $5)
		`, ballotID, decisionID, membershipID, tags.Join(ballotTags), now.Unix())
		if err != nil {
			return fmt.Errorf("failed to insert calculated ballot: %w", err)
		}
	case err != nil:
		return fmt.Errorf("failed to query ballot: %w", err)
	case isCalculated == 0:
		// Manual ballot: authoritative, never recomputed.
		return nil
	default:
		ballotID = existingID
		_, err = q.Exec(`
			UPDATE ballot SET tags = $1, updated_at = $2 WHERE id = $3
		`, tags.Join(ballotTags), now.Unix(), ballotID)
		if err != nil {
			return fmt.Errorf("failed to update calculated ballot: %w", err)
		}
		_, err = q.Exec(`DELETE FROM vote WHERE ballot_id = $1`, ballotID)
		if err != nil {
			return fmt.Errorf("failed to clear calculated votes: %w", err)
		}
	}

	choiceIDs := make([]string, 0, len(stars))
	for id := range stars {
		choiceIDs = append(choiceIDs, id)
	}
	sort.Strings(choiceIDs)

	for _, choiceID := range choiceIDs {
		_, err = q.Exec(`
			INSERT INTO vote (ballot_id, choice_id, stars)
			VALUES ($1, $2, $3)
		`, ballotID, choiceID, stars[choiceID])
		if err != nil {
			return fmt.Errorf("failed to insert calculated vote: %w", err)
		}
	}
	return nil
}

// CacheChoiceScores writes the post-tally score and runoff preference
// count onto each choice row for cheap display reads.
func CacheChoiceScores(q DBTX, tally models.TallyResult) error {
	for _, s := range tally.Scores {
		runoffScore := 0.0
		if tally.Runoff != nil {
			switch s.ChoiceID {
			case tally.Runoff.ChoiceAID:
				runoffScore = float64(tally.Runoff.PrefersA)
			case tally.Runoff.ChoiceBID:
				runoffScore = float64(tally.Runoff.PrefersB)
			}
		}
		_, err := q.Exec(`
			UPDATE choice SET score = $1, runoff_score = $2 WHERE id = $3
		`, s.Average, runoffScore, s.ChoiceID)
		if err != nil {
			return fmt.Errorf("failed to cache choice score: %w", err)
		}
	}
	return nil
}

// SetNeedsRecalc flips the decision's needs-recalculation flag.
func SetNeedsRecalc(q DBTX, decisionID string, needed bool) error {
	v := 0
	if needed {
		v = 1
	}
	_, err := q.Exec(`UPDATE decision SET needs_recalc = $1 WHERE id = $2`, v, decisionID)
	if err != nil {
		return fmt.Errorf("failed to set needs_recalc: %w", err)
	}
	return nil
}

// SetFinalSnapshot records the decision's one final snapshot id.
func SetFinalSnapshot(q DBTX, decisionID, snapshotID string) error {
	_, err := q.Exec(`UPDATE decision SET final_snapshot_id = $1 WHERE id = $2`, snapshotID, decisionID)
	if err != nil {
		return fmt.Errorf("failed to set final snapshot: %w", err)
	}
	return nil
}
