// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Tally method constants
const (
	MethodSTAR = "star"
)

// MaxStars is the upper bound of the score range. Manual ballots carry
// integer stars 0..5; calculated ballots may carry any real value in range.
const MaxStars = 5

// Ballot kind constants
const (
	BallotManual     = "manual"
	BallotCalculated = "calculated"
)

// Request types

type CreateCommunityRequest struct {
	Name string `json:"name"`
}

type AddMemberRequest struct {
	Name        string `json:"name"`
	IsVoter     bool   `json:"is_voter"`
	IsLobbyist  bool   `json:"is_lobbyist"`
	IsManager   bool   `json:"is_manager"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type CreateFollowingRequest struct {
	FolloweeID string   `json:"followee_id"`
	Tags       []string `json:"tags"`
	Order      int      `json:"order"`
}

type CreateDecisionRequest struct {
	Title    string    `json:"title"`
	ClosesAt time.Time `json:"closes_at"`
}

type AddChoiceRequest struct {
	Title string `json:"title"`
}

// choice_id -> integer stars (0 to 5)
type CastBallotRequest struct {
	Stars map[string]int `json:"stars"`
	Tags  []string       `json:"tags"`
}

// Response types

type CreateCommunityResponse struct {
	CommunityID string `json:"community_id"`
	ManagerKey  string `json:"manager_key"`
}

type AddMemberResponse struct {
	MemberID     string `json:"member_id"`
	MembershipID string `json:"membership_id"`
	MemberToken  string `json:"member_token"`
}

type CreateFollowingResponse struct {
	FollowingID string `json:"following_id"`
}

type CreateDecisionResponse struct {
	DecisionID string `json:"decision_id"`
}

type AddChoiceResponse struct {
	ChoiceID string `json:"choice_id"`
}

type CastBallotResponse struct {
	BallotID string `json:"ballot_id"`
	Message  string `json:"message"`
}

type CloseDecisionResponse struct {
	ClosedAt   time.Time `json:"closed_at"`
	SnapshotID string    `json:"snapshot_id,omitempty"`
}

type RecalculateResponse struct {
	SnapshotID string `json:"snapshot_id"`
}

type ResultsResponse struct {
	Decision    Decision    `json:"decision"`
	SnapshotID  string      `json:"snapshot_id"`
	ComputedAt  time.Time   `json:"computed_at"`
	BallotCount int         `json:"ballot_count"`
	Tally       TallyResult `json:"tally"`
}

type TreeResponse struct {
	SnapshotID string         `json:"snapshot_id"`
	ComputedAt time.Time      `json:"computed_at"`
	Tree       DelegationTree `json:"tree"`
}

type DecisionWithChoices struct {
	Decision Decision `json:"decision"`
	Choices  []Choice `json:"choices"`
}

// Domain types

type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Community struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership is the delegation node identity: follow edges connect
// memberships, never members, so the same person in two communities
// delegates independently in each.
type Membership struct {
	ID          string `json:"id"`
	CommunityID string `json:"community_id"`
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name,omitempty"`
	IsVoter     bool   `json:"is_voter"`
	IsLobbyist  bool   `json:"is_lobbyist"`
	IsManager   bool   `json:"is_manager"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// Following is a directed, tag-scoped delegation edge. Tags are stored
// normalized (trimmed, lowercase); an empty tag set means "all topics".
// Order is display/tie-break metadata only and never weights scores.
type Following struct {
	ID          string   `json:"id"`
	CommunityID string   `json:"community_id"`
	FollowerID  string   `json:"follower_id"`
	FolloweeID  string   `json:"followee_id"`
	Tags        []string `json:"tags"`
	Order       int      `json:"order"`
}

type Decision struct {
	ID              string    `json:"id"`
	CommunityID     string    `json:"community_id"`
	Title           string    `json:"title"`
	ClosesAt        time.Time `json:"closes_at"`
	NeedsRecalc     bool      `json:"needs_recalc"`
	FinalSnapshotID *string   `json:"final_snapshot_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ClosedAt reports whether the decision is closed at the given instant.
func (d Decision) ClosedAt(now time.Time) bool {
	return !d.ClosesAt.After(now)
}

type Choice struct {
	ID          string  `json:"id"`
	DecisionID  string  `json:"decision_id"`
	Title       string  `json:"title"`
	Order       int     `json:"order"`
	Score       float64 `json:"score"`
	RunoffScore float64 `json:"runoff_score"`
}

type Ballot struct {
	ID           string    `json:"id"`
	DecisionID   string    `json:"decision_id"`
	MembershipID string    `json:"membership_id"`
	Calculated   bool      `json:"calculated"`
	Tags         []string  `json:"tags"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Vote struct {
	BallotID string  `json:"ballot_id"`
	ChoiceID string  `json:"choice_id"`
	Stars    float64 `json:"stars"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
