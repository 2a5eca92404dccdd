// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jasonblum/crowdvote-sub000/models"
)

// SnapshotRow is a snapshot record plus its raw JSON payloads.
type SnapshotRow struct {
	models.Snapshot
	Payload string
	Result  string
}

// InsertSnapshot inserts a new snapshot row in the given state. The
// partial unique index on active snapshots makes this the atomic claim:
// if the decision already has a non-terminal snapshot the insert fails
// and ErrSnapshotActive is returned.
func InsertSnapshot(q DBTX, id, decisionID, state string, now time.Time) error {
	_, err := q.Exec(`
		INSERT INTO calc_snapshot (id, decision_id, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, decisionID, state, now.Unix(), now.Unix())

	if isUniqueViolation(err) {
		return fmt.Errorf("decision %s: %w", decisionID, models.ErrSnapshotActive)
	}
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// GetSnapshot loads one snapshot with its payloads.
func GetSnapshot(q DBTX, snapshotID string) (SnapshotRow, error) {
	var row SnapshotRow
	var payload, result sql.NullString
	var isFinal, createdAt, updatedAt int64

	err := q.QueryRow(`
		SELECT id, decision_id, state, error, payload, result, is_final, created_at, updated_at
		FROM calc_snapshot
		WHERE id = $1
	`, snapshotID).Scan(&row.ID, &row.DecisionID, &row.State, &row.Error,
		&payload, &result, &isFinal, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return SnapshotRow{}, fmt.Errorf("snapshot %s: %w", snapshotID, models.ErrNotFound)
	}
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("failed to query snapshot: %w", err)
	}

	row.Payload = payload.String
	row.Result = result.String
	row.IsFinal = isFinal != 0
	row.CreatedAt = time.Unix(createdAt, 0).UTC()
	row.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return row, nil
}

// TransitionSnapshot moves a snapshot from one state to another. The
// transition is a compare-and-set on the current state so a snapshot
// already moved on (or failed) is never silently re-staged; a stale
// transition returns ErrInvalidState.
func TransitionSnapshot(q DBTX, snapshotID, fromState, toState string, now time.Time) error {
	res, err := q.Exec(`
		UPDATE calc_snapshot
		SET state = $1, updated_at = $2
		WHERE id = $3 AND state = $4
	`, toState, now.Unix(), snapshotID, fromState)
	if err != nil {
		return fmt.Errorf("failed to transition snapshot: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check transition: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s is not %s: %w", snapshotID, fromState, models.ErrInvalidState)
	}
	return nil
}

// SetSnapshotPayload stores the frozen graph JSON and advances the
// snapshot to the ready state.
func SetSnapshotPayload(q DBTX, snapshotID, payload string, now time.Time) error {
	res, err := q.Exec(`
		UPDATE calc_snapshot
		SET payload = $1, state = $2, updated_at = $3
		WHERE id = $4 AND state = $5
	`, payload, models.SnapshotReady, now.Unix(), snapshotID, models.SnapshotCreating)
	if err != nil {
		return fmt.Errorf("failed to store snapshot payload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check payload store: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s is not %s: %w", snapshotID, models.SnapshotCreating, models.ErrInvalidState)
	}
	return nil
}

// FailSnapshot moves a snapshot to a terminal failed state and records
// the fault message. Already-terminal snapshots are left untouched.
func FailSnapshot(q DBTX, snapshotID, failedState, message string, now time.Time) error {
	_, err := q.Exec(`
		UPDATE calc_snapshot
		SET state = $1, error = $2, updated_at = $3
		WHERE id = $4 AND state NOT IN ($5, $6, $7, $8, $9)
	`, failedState, message, now.Unix(), snapshotID,
		models.SnapshotCompleted, models.SnapshotFailedSnapshot,
		models.SnapshotFailedStaging, models.SnapshotFailedTallying,
		models.SnapshotCorrupted)
	if err != nil {
		return fmt.Errorf("failed to fail snapshot: %w", err)
	}
	return nil
}

// CompleteSnapshot stores the result JSON and moves tallying->completed,
// optionally marking the snapshot final. Finality is guarded by the
// partial unique index, so a racing second final snapshot fails loudly.
func CompleteSnapshot(q DBTX, snapshotID, result string, final bool, now time.Time) error {
	finalInt := 0
	if final {
		finalInt = 1
	}
	res, err := q.Exec(`
		UPDATE calc_snapshot
		SET result = $1, state = $2, is_final = $3, updated_at = $4
		WHERE id = $5 AND state = $6
	`, result, models.SnapshotCompleted, finalInt, now.Unix(), snapshotID, models.SnapshotTallying)
	if err != nil {
		return fmt.Errorf("failed to complete snapshot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("snapshot %s is not %s: %w", snapshotID, models.SnapshotTallying, models.ErrInvalidState)
	}
	return nil
}

// HasFinalSnapshot reports whether the decision already has its one
// final snapshot.
func HasFinalSnapshot(q DBTX, decisionID string) (bool, error) {
	var count int
	err := q.QueryRow(`
		SELECT COUNT(*) FROM calc_snapshot WHERE decision_id = $1 AND is_final = 1
	`, decisionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count final snapshots: %w", err)
	}
	return count > 0, nil
}

// LatestCompletedSnapshot returns the newest completed snapshot for a
// decision, or ErrNotFound if none has completed yet.
func LatestCompletedSnapshot(q DBTX, decisionID string) (SnapshotRow, error) {
	var id string
	err := q.QueryRow(`
		SELECT id FROM calc_snapshot
		WHERE decision_id = $1 AND state = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, decisionID, models.SnapshotCompleted).Scan(&id)

	if err == sql.ErrNoRows {
		return SnapshotRow{}, fmt.Errorf("no completed snapshot for decision %s: %w", decisionID, models.ErrNotFound)
	}
	if err != nil {
		return SnapshotRow{}, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return GetSnapshot(q, id)
}
