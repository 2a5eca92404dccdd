// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/dispatch"
	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/testutil"
)

func TestCreateCommunity(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewCommunityHandler(db, cfg, &fakeDispatcher{})

	tests := []struct {
		name           string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "valid community",
			body:           models.CreateCommunityRequest{Name: "Springfield"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "missing name",
			body:           models.CreateCommunityRequest{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/communities", tt.body, nil)
			w := httptest.NewRecorder()

			handler.CreateCommunity(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusCreated {
				var resp models.CreateCommunityResponse
				testutil.AssertJSON(t, w, &resp)

				if resp.CommunityID == "" {
					t.Error("Expected non-empty community_id")
				}
				// The returned key must validate against the new community.
				if err := auth.ValidateManagerKey(resp.CommunityID, resp.ManagerKey, cfg.ManagerKeySalt); err != nil {
					t.Errorf("Manager key does not validate: %v", err)
				}

				var name string
				err := db.QueryRow("SELECT name FROM community WHERE id = $1", resp.CommunityID).Scan(&name)
				if err != nil {
					t.Fatalf("Failed to query community: %v", err)
				}
				if name != "Springfield" {
					t.Errorf("Expected name 'Springfield', got '%s'", name)
				}
			}
		})
	}
}

func TestAddMember(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	handler := NewCommunityHandler(db, cfg, &fakeDispatcher{})

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")

	tests := []struct {
		name           string
		communityID    string
		managerKey     string
		body           interface{}
		expectedStatus int
	}{
		{
			name:           "valid voter",
			communityID:    communityID,
			managerKey:     managerKey,
			body:           models.AddMemberRequest{Name: "Alice", IsVoter: true},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "valid lobbyist",
			communityID:    communityID,
			managerKey:     managerKey,
			body:           models.AddMemberRequest{Name: "Lisa", IsLobbyist: true},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "anonymous voter",
			communityID:    communityID,
			managerKey:     managerKey,
			body:           models.AddMemberRequest{Name: "Bob", IsVoter: true, IsAnonymous: true},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "voter and lobbyist rejected",
			communityID:    communityID,
			managerKey:     managerKey,
			body:           models.AddMemberRequest{Name: "Carl", IsVoter: true, IsLobbyist: true},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "missing name",
			communityID:    communityID,
			managerKey:     managerKey,
			body:           models.AddMemberRequest{IsVoter: true},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid manager key",
			communityID:    communityID,
			managerKey:     "wrong-key",
			body:           models.AddMemberRequest{Name: "Mallory", IsVoter: true},
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "community not found",
			communityID:    "missing-community",
			managerKey:     auth.GenerateManagerKey("missing-community", cfg.ManagerKeySalt),
			body:           models.AddMemberRequest{Name: "Ghost", IsVoter: true},
			expectedStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.MakeRequest("POST", "/communities/"+tt.communityID+"/members",
				tt.body, map[string]string{"X-Manager-Key": tt.managerKey})
			req.SetPathValue("id", tt.communityID)
			w := httptest.NewRecorder()

			handler.AddMember(w, req)

			testutil.AssertStatus(t, w, tt.expectedStatus)

			if tt.expectedStatus == http.StatusCreated {
				var resp models.AddMemberResponse
				testutil.AssertJSON(t, w, &resp)

				if resp.MemberToken == "" {
					t.Error("Expected non-empty member_token")
				}

				// Token must resolve back to the membership.
				ms, err := lookupMembership(db, tt.communityID, resp.MemberToken)
				if err != nil {
					t.Fatalf("Member token does not resolve: %v", err)
				}
				if ms.ID != resp.MembershipID {
					t.Errorf("Expected membership %s, got %s", resp.MembershipID, ms.ID)
				}
			}
		})
	}
}

func TestAddMemberTriggersOpenDecisions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	disp := &fakeDispatcher{}
	handler := NewCommunityHandler(db, cfg, disp)

	communityID, managerKey := testutil.CreateTestCommunity(t, db, cfg, "Springfield")
	openID := testutil.CreateTestDecision(t, db, communityID, "Open", time.Now().Add(time.Hour))
	closedID := testutil.CreateTestDecision(t, db, communityID, "Closed", time.Now().Add(-time.Hour))

	req := testutil.MakeRequest("POST", "/communities/"+communityID+"/members",
		models.AddMemberRequest{Name: "Alice", IsVoter: true},
		map[string]string{"X-Manager-Key": managerKey})
	req.SetPathValue("id", communityID)
	w := httptest.NewRecorder()

	handler.AddMember(w, req)
	testutil.AssertStatus(t, w, http.StatusCreated)

	assertTriggered(t, disp, openID, dispatch.MembershipChanged)
	if len(disp.eventsFor(closedID)) != 0 {
		t.Error("Closed decision should not be triggered")
	}

	var needsRecalc int
	if err := db.QueryRow("SELECT needs_recalc FROM decision WHERE id = $1", openID).Scan(&needsRecalc); err != nil {
		t.Fatalf("Failed to query decision: %v", err)
	}
	if needsRecalc != 1 {
		t.Error("Expected open decision to be flagged for recalculation")
	}
}
