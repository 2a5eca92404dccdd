// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/snapshot"
	"github.com/jasonblum/crowdvote-sub000/testutil"
)

func TestCreateDecision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDecisionHandler(db, cfg, snapshot.NewCoordinator(db), &fakeDispatcher{})

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")

	tests := []struct {
		name           string
		managerKey     string
		body           models.CreateDecisionRequest
		expectedStatus int
	}{
		{
			name:           "valid decision",
			managerKey:     managerKey,
			body:           models.CreateDecisionRequest{Title: "Annual budget", ClosesAt: time.Now().Add(24 * time.Hour)},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "close time in the past",
			managerKey:     managerKey,
			body:           models.CreateDecisionRequest{Title: "Too late", ClosesAt: time.Now().Add(-time.Hour)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing title",
			managerKey:     managerKey,
			body:           models.CreateDecisionRequest{ClosesAt: time.Now().Add(time.Hour)},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid manager key",
			managerKey:     "wrong",
			body:           models.CreateDecisionRequest{Title: "Nope", ClosesAt: time.Now().Add(time.Hour)},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/communities/"+communityID+"/decisions",
				tt.body, map[string]string{"X-Manager-Key": tt.managerKey})
			req.SetPathValue("id", communityID)
			w := httptest.NewRecorder()

			handler.CreateDecision(w, req)
			testutil.AssertStatus(t, w, tt.expectedStatus)
		})
	}
}

func TestAddChoice(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewDecisionHandler(db, cfg, snapshot.NewCoordinator(db), &fakeDispatcher{})

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")
	openID := testutil.CreateTestDecision(t, db, communityID, "Open", time.Now().Add(time.Hour))
	closedID := testutil.CreateTestDecision(t, db, communityID, "Closed", time.Now().Add(-time.Hour))

	addChoice := func(decisionID, title, key string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/decisions/"+decisionID+"/choices",
			models.AddChoiceRequest{Title: title}, map[string]string{"X-Manager-Key": key})
		req.SetPathValue("id", decisionID)
		w := httptest.NewRecorder()
		handler.AddChoice(w, req)
		return w
	}

	t.Run("choices get increasing creation order", func(t *testing.T) {
		first := addChoice(openID, "Library", managerKey)
		testutil.AssertStatus(t, first, http.StatusCreated)
		second := addChoice(openID, "Stadium", managerKey)
		testutil.AssertStatus(t, second, http.StatusCreated)

		var firstResp, secondResp models.AddChoiceResponse
		testutil.AssertJSON(t, first, &firstResp)
		testutil.AssertJSON(t, second, &secondResp)

		var ordFirst, ordSecond int
		if err := db.QueryRow("SELECT ord FROM choice WHERE id = $1", firstResp.ChoiceID).Scan(&ordFirst); err != nil {
			t.Fatalf("Failed to query choice: %v", err)
		}
		if err := db.QueryRow("SELECT ord FROM choice WHERE id = $1", secondResp.ChoiceID).Scan(&ordSecond); err != nil {
			t.Fatalf("Failed to query choice: %v", err)
		}
		if ordSecond <= ordFirst {
			t.Errorf("Expected increasing ord, got %d then %d", ordFirst, ordSecond)
		}
	})

	t.Run("closed decision rejects choices", func(t *testing.T) {
		w := addChoice(closedID, "Too late", managerKey)
		testutil.AssertStatus(t, w, http.StatusConflict)
	})

	t.Run("invalid manager key", func(t *testing.T) {
		w := addChoice(openID, "Nope", "wrong")
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	})

	t.Run("decision not found", func(t *testing.T) {
		w := addChoice("missing", "Ghost", managerKey)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestCloseDecision(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	coord := snapshot.NewCoordinator(db)
	handler := NewDecisionHandler(db, cfg, coord, &fakeDispatcher{})

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")
	decisionID := testutil.CreateTestDecision(t, db, communityID, "Budget", time.Now().Add(time.Hour))
	choiceA := testutil.AddTestChoice(t, db, decisionID, "Library", 0)
	choiceB := testutil.AddTestChoice(t, db, decisionID, "Stadium", 1)

	voterID, _ := testutil.AddTestMember(t, db, communityID, "Alice", true, false, false)
	testutil.CastTestBallot(t, db, decisionID, voterID, map[string]int{choiceA: 5, choiceB: 2}, nil)

	close := func(key string) *httptest.ResponseRecorder {
		req := testutil.MakeRequest("POST", "/decisions/"+decisionID+"/close", nil,
			map[string]string{"X-Manager-Key": key})
		req.SetPathValue("id", decisionID)
		w := httptest.NewRecorder()
		handler.CloseDecision(w, req)
		return w
	}

	t.Run("close runs the final calculation", func(t *testing.T) {
		w := close(managerKey)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.CloseDecisionResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.SnapshotID == "" {
			t.Fatal("Expected snapshot_id in close response")
		}

		// The snapshot must be completed and final, and recorded on the
		// decision.
		var state string
		var isFinal int
		err := db.QueryRow("SELECT state, is_final FROM calc_snapshot WHERE id = $1", resp.SnapshotID).
			Scan(&state, &isFinal)
		if err != nil {
			t.Fatalf("Failed to query snapshot: %v", err)
		}
		if state != models.SnapshotCompleted {
			t.Errorf("Expected completed snapshot, got %s", state)
		}
		if isFinal != 1 {
			t.Error("Expected snapshot to be final")
		}

		var finalID string
		if err := db.QueryRow("SELECT final_snapshot_id FROM decision WHERE id = $1", decisionID).Scan(&finalID); err != nil {
			t.Fatalf("Failed to query decision: %v", err)
		}
		if finalID != resp.SnapshotID {
			t.Errorf("Expected decision final snapshot %s, got %s", resp.SnapshotID, finalID)
		}
	})

	t.Run("second close rejected", func(t *testing.T) {
		w := close(managerKey)
		testutil.AssertStatus(t, w, http.StatusConflict)
	})
}

func TestRecalculate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	coord := snapshot.NewCoordinator(db)
	handler := NewDecisionHandler(db, cfg, coord, &fakeDispatcher{})

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")
	decisionID := testutil.CreateTestDecision(t, db, communityID, "Budget", time.Now().Add(time.Hour))
	choiceA := testutil.AddTestChoice(t, db, decisionID, "Library", 0)
	testutil.AddTestChoice(t, db, decisionID, "Stadium", 1)

	voterID, _ := testutil.AddTestMember(t, db, communityID, "Alice", true, false, false)
	testutil.CastTestBallot(t, db, decisionID, voterID, map[string]int{choiceA: 4}, nil)

	t.Run("manual trigger returns snapshot", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/decisions/"+decisionID+"/recalculate", nil,
			map[string]string{"X-Manager-Key": managerKey})
		req.SetPathValue("id", decisionID)
		w := httptest.NewRecorder()

		handler.Recalculate(w, req)
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.RecalculateResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.SnapshotID == "" {
			t.Error("Expected snapshot_id")
		}

		// An open decision's snapshot is never final.
		var isFinal int
		if err := db.QueryRow("SELECT is_final FROM calc_snapshot WHERE id = $1", resp.SnapshotID).Scan(&isFinal); err != nil {
			t.Fatalf("Failed to query snapshot: %v", err)
		}
		if isFinal != 0 {
			t.Error("Open decision snapshot must not be final")
		}
	})

	t.Run("decision not found", func(t *testing.T) {
		req := testutil.MakeRequest("POST", "/decisions/missing/recalculate", nil,
			map[string]string{"X-Manager-Key": managerKey})
		req.SetPathValue("id", "missing")
		w := httptest.NewRecorder()

		handler.Recalculate(w, req)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}
