// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jasonblum/crowdvote-sub000/auth"
	"github.com/jasonblum/crowdvote-sub000/cliparse"
	"github.com/jasonblum/crowdvote-sub000/db"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

var dbCounter atomic.Int64

// SetupTestDB creates a fresh in-memory SQLite database with the full
// schema. Each call gets its own database; the shared cache keeps it
// alive across the connections in the pool.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:crowdvote_test_%d?mode=memory&cache=shared", dbCounter.Add(1))
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}
	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:           3420,
		DatabaseURL:    ":memory:",
		DatabaseType:   "sqlite",
		ManagerKeySalt: "test-manager-salt",
		CalcWorkers:    2,
		CalcQueueSize:  16,
	}
}

// CreateTestCommunity creates a community and returns its ID and
// manager key.
func CreateTestCommunity(t *testing.T, conn *sql.DB, cfg cliparse.Config, name string) (communityID, managerKey string) {
	t.Helper()

	communityID, _ = auth.GenerateID(16)
	managerKey = auth.GenerateManagerKey(communityID, cfg.ManagerKeySalt)

	_, err := conn.Exec(`
		INSERT INTO community (id, name, created_at)
		VALUES ($1, $2, $3)
	`, communityID, name, time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to create test community: %v", err)
	}

	return communityID, managerKey
}

// AddTestMember creates a member plus their membership in the community
// and returns the membership ID and member token. Roles default to a
// plain voter; flip the booleans for lobbyists, managers, or anonymous
// members.
func AddTestMember(t *testing.T, conn *sql.DB, communityID, name string, isVoter, isLobbyist, isAnonymous bool) (membershipID, memberToken string) {
	t.Helper()

	memberID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO member (id, name)
		VALUES ($1, $2)
	`, memberID, name)
	if err != nil {
		t.Fatalf("Failed to create test member: %v", err)
	}

	membershipID, _ = auth.GenerateID(16)
	memberToken, err = auth.GenerateMemberToken()
	if err != nil {
		t.Fatalf("Failed to generate member token: %v", err)
	}
	_, err = conn.Exec(`
		INSERT INTO membership (id, community_id, member_id, member_token, is_voter, is_lobbyist, is_manager, is_anonymous)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
	`, membershipID, communityID, memberID, memberToken, boolInt(isVoter), boolInt(isLobbyist), boolInt(isAnonymous))
	if err != nil {
		t.Fatalf("Failed to create test membership: %v", err)
	}

	return membershipID, memberToken
}

// AddTestFollowing creates a delegation edge and returns its ID.
func AddTestFollowing(t *testing.T, conn *sql.DB, communityID, followerID, followeeID string, filterTags []string, order int) string {
	t.Helper()

	followingID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO following (id, community_id, follower_id, followee_id, tags, ord)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, followingID, communityID, followerID, followeeID, tags.Join(tags.Normalize(filterTags)), order)
	if err != nil {
		t.Fatalf("Failed to create test following: %v", err)
	}

	return followingID
}

// CreateTestDecision creates a decision and returns its ID. closesAt in
// the past means the decision is already closed.
func CreateTestDecision(t *testing.T, conn *sql.DB, communityID, title string, closesAt time.Time) string {
	t.Helper()

	decisionID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO decision (id, community_id, title, closes_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, decisionID, communityID, title, closesAt.Unix(), time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to create test decision: %v", err)
	}

	return decisionID
}

// AddTestChoice adds a choice to a decision and returns the choice ID.
func AddTestChoice(t *testing.T, conn *sql.DB, decisionID, title string, order int) string {
	t.Helper()

	choiceID, _ := auth.GenerateID(12)
	_, err := conn.Exec(`
		INSERT INTO choice (id, decision_id, title, ord)
		VALUES ($1, $2, $3, $4)
	`, choiceID, decisionID, title, order)
	if err != nil {
		t.Fatalf("Failed to create test choice: %v", err)
	}

	return choiceID
}

// CastTestBallot writes a manual ballot with integer star votes and
// returns the ballot ID.
func CastTestBallot(t *testing.T, conn *sql.DB, decisionID, membershipID string, stars map[string]int, ballotTags []string) string {
	t.Helper()

	ballotID, _ := auth.GenerateID(16)
	_, err := conn.Exec(`
		INSERT INTO ballot (id, decision_id, membership_id, is_calculated, tags, updated_at)
		VALUES ($1, $2, $3, 0, $4, $5)
	`, ballotID, decisionID, membershipID, tags.Join(tags.Normalize(ballotTags)), time.Now().Unix())
	if err != nil {
		t.Fatalf("Failed to create test ballot: %v", err)
	}

	for choiceID, value := range stars {
		_, err := conn.Exec(`
			INSERT INTO vote (ballot_id, choice_id, stars)
			VALUES ($1, $2, $3)
		`, ballotID, choiceID, value)
		if err != nil {
			t.Fatalf("Failed to create test vote: %v", err)
		}
	}

	return ballotID
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
