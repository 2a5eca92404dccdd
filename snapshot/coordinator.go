// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jasonblum/crowdvote-sub000/delegation"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/star"
	"github.com/jasonblum/crowdvote-sub000/store"
)

// Coordinator drives the calculation state machine for decisions:
// capture a frozen copy of the delegation graph, resolve every voter's
// ballot against it, tally with STAR, and record the result - with
// every step's progress visible on the snapshot row.
type Coordinator struct {
	db *sql.DB
}

// TallyReadout is a completed snapshot's result plus its provenance.
type TallyReadout struct {
	SnapshotID string
	ComputedAt time.Time
	Tally      models.TallyResult
	Tree       models.DelegationTree
}

func NewCoordinator(db *sql.DB) *Coordinator {
	return &Coordinator{db: db}
}

// CreateSnapshot claims a calculation slot for the decision and captures
// the frozen graph, leaving the snapshot in the ready state.
//
// The claim is the row insert itself: the schema allows at most one
// non-terminal snapshot per decision, so two concurrent triggers cannot
// both start a run - the loser gets ErrSnapshotActive. A capture fault
// moves the snapshot to failed_snapshot; it is never retried in place.
func (c *Coordinator) CreateSnapshot(ctx context.Context, decisionID string) (string, error) {
	if _, err := store.GetDecision(c.db, decisionID); err != nil {
		return "", err
	}

	id := uuid.NewString()
	now := time.Now()
	if err := store.InsertSnapshot(c.db, id, decisionID, models.SnapshotCreating, now); err != nil {
		return "", err
	}

	frozen, err := c.capture(ctx, decisionID)
	if err != nil {
		c.fail(id, models.SnapshotFailedSnapshot, err)
		return id, fmt.Errorf("snapshot capture: %w", err)
	}

	payload, err := json.Marshal(frozen)
	if err != nil {
		c.fail(id, models.SnapshotFailedSnapshot, err)
		return id, fmt.Errorf("snapshot payload encode: %w", err)
	}

	if err := store.SetSnapshotPayload(c.db, id, string(payload), time.Now()); err != nil {
		c.fail(id, models.SnapshotFailedSnapshot, err)
		return id, err
	}

	slog.Info("snapshot captured", "snapshot_id", id, "decision_id", decisionID,
		"memberships", len(frozen.Memberships), "manual_ballots", len(frozen.Ballots))
	return id, nil
}

// capture performs the point-in-time read inside one transaction.
func (c *Coordinator) capture(ctx context.Context, decisionID string) (*models.FrozenGraph, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin capture transaction: %w", err)
	}
	defer tx.Rollback()

	frozen, err := store.CaptureFrozenGraph(tx, decisionID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit capture: %w", err)
	}
	return frozen, nil
}

// RunSnapshot advances a ready snapshot through staging and tallying to
// completed. Any fault lands the snapshot in the matching failed_* state
// with the message recorded; it never stays in a non-terminal limbo.
func (c *Coordinator) RunSnapshot(ctx context.Context, snapshotID string) error {
	row, err := store.GetSnapshot(c.db, snapshotID)
	if err != nil {
		return err
	}
	if row.State != models.SnapshotReady {
		return fmt.Errorf("snapshot %s is %s, not %s: %w",
			snapshotID, row.State, models.SnapshotReady, models.ErrInvalidState)
	}

	var frozen models.FrozenGraph
	if err := json.Unmarshal([]byte(row.Payload), &frozen); err != nil {
		// The snapshot's own payload is unreadable: nothing downstream
		// can be trusted.
		c.fail(snapshotID, models.SnapshotCorrupted, err)
		return fmt.Errorf("snapshot payload decode: %w", models.ErrInternal)
	}

	if err := c.advance(snapshotID, models.SnapshotReady, models.SnapshotStaging, models.SnapshotFailedStaging); err != nil {
		return err
	}

	result, err := c.stage(ctx, &frozen)
	if err != nil {
		c.fail(snapshotID, models.SnapshotFailedStaging, err)
		return fmt.Errorf("snapshot staging: %w", err)
	}

	if err := c.advance(snapshotID, models.SnapshotStaging, models.SnapshotTallying, models.SnapshotFailedTallying); err != nil {
		return err
	}

	if err := c.tally(ctx, snapshotID, &frozen, result); err != nil {
		c.fail(snapshotID, models.SnapshotFailedTallying, err)
		return fmt.Errorf("snapshot tallying: %w", err)
	}

	return nil
}

// advance moves a snapshot one state forward. A CAS loss means another
// actor owns the snapshot now and its state is left alone; any other
// fault moves the snapshot to the given failed state so it never sits
// in a non-terminal limbo.
func (c *Coordinator) advance(snapshotID, from, to, failedState string) error {
	err := store.TransitionSnapshot(c.db, snapshotID, from, to, time.Now())
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrInvalidState) {
		return err
	}
	c.fail(snapshotID, failedState, err)
	return fmt.Errorf("snapshot transition %s to %s: %w", from, to, err)
}

// stage resolves every voter against the frozen payload only and
// materializes the calculated ballots in one transaction.
func (c *Coordinator) stage(ctx context.Context, frozen *models.FrozenGraph) (*delegation.Result, error) {
	result, err := delegation.NewResolver(frozen).ResolveAll()
	if err != nil {
		return nil, err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin staging transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range sortedBallotIDs(result.Ballots) {
		b := result.Ballots[id]
		if b.Kind != models.BallotCalculated {
			continue
		}
		if err := store.ReplaceCalculatedBallot(tx, frozen.DecisionID, id, uuid.NewString(), b.Tags, b.Stars, time.Now()); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit staging: %w", err)
	}
	return result, nil
}

// tally runs the STAR engine over the resolved voter ballots, persists
// the result, and completes the snapshot - marking it final when the
// decision has closed and no final snapshot exists yet.
func (c *Coordinator) tally(ctx context.Context, snapshotID string, frozen *models.FrozenGraph, resolved *delegation.Result) error {
	voters := make(map[string]bool, len(frozen.Memberships))
	for _, m := range frozen.Memberships {
		if m.IsVoter {
			voters[m.ID] = true
		}
	}

	var ballots []*models.ResolvedBallot
	for _, id := range sortedBallotIDs(resolved.Ballots) {
		if voters[id] {
			ballots = append(ballots, resolved.Ballots[id])
		}
	}

	tallyResult := star.Tally(frozen.Choices, ballots)

	resultJSON, err := json.Marshal(models.SnapshotResult{Tally: tallyResult, Tree: resolved.Tree})
	if err != nil {
		return fmt.Errorf("failed to encode snapshot result: %w", err)
	}

	now := time.Now()
	final := frozen.ClosesAt <= now.Unix()
	if final {
		hasFinal, err := store.HasFinalSnapshot(c.db, frozen.DecisionID)
		if err != nil {
			return err
		}
		final = !hasFinal
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tally transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.CacheChoiceScores(tx, tallyResult); err != nil {
		return err
	}
	if err := store.CompleteSnapshot(tx, snapshotID, string(resultJSON), final, now); err != nil {
		return err
	}
	if final {
		if err := store.SetFinalSnapshot(tx, frozen.DecisionID, snapshotID); err != nil {
			return err
		}
	}
	if err := store.SetNeedsRecalc(tx, frozen.DecisionID, false); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tally: %w", err)
	}

	slog.Info("snapshot completed", "snapshot_id", snapshotID,
		"decision_id", frozen.DecisionID, "winner_id", tallyResult.WinnerID,
		"ballots", tallyResult.BallotCount, "final", final)
	return nil
}

// Calculate is the one-shot trigger entry point: claim, capture, run.
func (c *Coordinator) Calculate(ctx context.Context, decisionID string) (string, error) {
	id, err := c.CreateSnapshot(ctx, decisionID)
	if err != nil {
		return id, err
	}
	return id, c.RunSnapshot(ctx, id)
}

// GetTallyResult reads the latest completed snapshot's tally and tree
// for a decision. Returns nil when no calculation has completed yet.
func (c *Coordinator) GetTallyResult(ctx context.Context, decisionID string) (*TallyReadout, error) {
	if _, err := store.GetDecision(c.db, decisionID); err != nil {
		return nil, err
	}

	row, err := store.LatestCompletedSnapshot(c.db, decisionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var result models.SnapshotResult
	if err := json.Unmarshal([]byte(row.Result), &result); err != nil {
		return nil, fmt.Errorf("snapshot result decode: %w", models.ErrInternal)
	}

	return &TallyReadout{
		SnapshotID: row.ID,
		ComputedAt: row.UpdatedAt,
		Tally:      result.Tally,
		Tree:       result.Tree,
	}, nil
}

// fail moves a snapshot to a terminal failed state, logging rather than
// propagating bookkeeping errors so the original fault stays primary.
func (c *Coordinator) fail(snapshotID, failedState string, cause error) {
	if err := store.FailSnapshot(c.db, snapshotID, failedState, cause.Error(), time.Now()); err != nil {
		slog.Error("failed to record snapshot failure",
			"snapshot_id", snapshotID, "state", failedState, "error", err)
	}
	slog.Error("snapshot failed", "snapshot_id", snapshotID, "state", failedState, "error", cause)
}

func sortedBallotIDs(ballots map[string]*models.ResolvedBallot) []string {
	ids := make([]string, 0, len(ballots))
	for id := range ballots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
