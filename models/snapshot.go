// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "time"

// Snapshot state constants. A snapshot advances
// creating -> ready -> staging -> tallying -> completed; any non-terminal
// state may fall into one of the failed_* states. Terminal snapshots are
// never mutated again.
const (
	SnapshotCreating  = "creating"
	SnapshotReady     = "ready"
	SnapshotStaging   = "staging"
	SnapshotTallying  = "tallying"
	SnapshotCompleted = "completed"

	SnapshotFailedSnapshot = "failed_snapshot"
	SnapshotFailedStaging  = "failed_staging"
	SnapshotFailedTallying = "failed_tallying"
	SnapshotCorrupted      = "corrupted"
)

// TerminalSnapshotStates lists every state a snapshot can never leave.
var TerminalSnapshotStates = []string{
	SnapshotCompleted,
	SnapshotFailedSnapshot,
	SnapshotFailedStaging,
	SnapshotFailedTallying,
	SnapshotCorrupted,
}

// IsTerminalSnapshotState reports whether state is terminal.
func IsTerminalSnapshotState(state string) bool {
	for _, s := range TerminalSnapshotStates {
		if s == state {
			return true
		}
	}
	return false
}

// Snapshot is the persisted calculation record for one decision at one
// point in time.
type Snapshot struct {
	ID         string    `json:"id"`
	DecisionID string    `json:"decision_id"`
	State      string    `json:"state"`
	Error      string    `json:"error,omitempty"`
	IsFinal    bool      `json:"is_final"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Frozen graph payload. Captured once inside a single transaction and
// never refreshed: the resolver and the tally engine read only this copy.

type FrozenGraph struct {
	DecisionID  string                       `json:"decision_id"`
	CommunityID string                       `json:"community_id"`
	Title       string                       `json:"title"`
	ClosesAt    int64                        `json:"closes_at"` // unix seconds
	Choices     []FrozenChoice               `json:"choices"`   // creation order
	Memberships []FrozenMembership           `json:"memberships"`
	Followings  map[string][]FrozenFollowing `json:"followings"` // follower -> edges
	Ballots     map[string]FrozenBallot      `json:"ballots"`    // membership -> manual ballot
}

type FrozenChoice struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

type FrozenMembership struct {
	ID          string `json:"id"`
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name"`
	IsVoter     bool   `json:"is_voter"`
	IsLobbyist  bool   `json:"is_lobbyist"`
	IsAnonymous bool   `json:"is_anonymous"`
}

type FrozenFollowing struct {
	ID          string   `json:"id"`
	CommunityID string   `json:"community_id"`
	FolloweeID  string   `json:"followee_id"`
	Tags        []string `json:"tags"`
	Order       int      `json:"order"`
}

// FrozenBallot is a manually cast ballot as captured. Calculated ballots
// are not frozen: they are owned by the resolver and rebuilt every run.
type FrozenBallot struct {
	ID           string             `json:"id"`
	MembershipID string             `json:"membership_id"`
	Tags         []string           `json:"tags"`
	Stars        map[string]float64 `json:"stars"` // choice id -> stars
}

// Resolver output.

// ResolvedBallot is one voter's ballot after delegation resolution.
// Kind is BallotManual or BallotCalculated; manual ballots pass through
// the resolver byte-for-byte untouched.
type ResolvedBallot struct {
	MembershipID string             `json:"membership_id"`
	Kind         string             `json:"kind"`
	Tags         []string           `json:"tags"`
	Stars        map[string]float64 `json:"stars"`
}

// DelegationTree is the audit record of a resolution run. All slices are
// sorted so the tree is byte-for-byte reproducible from the same frozen
// input.
type DelegationTree struct {
	Nodes  []TreeNode         `json:"nodes"`
	Edges  []TreeEdge         `json:"edges"`
	Chains []InheritanceChain `json:"chains"`
}

type TreeNode struct {
	MembershipID string             `json:"membership_id"`
	DisplayName  string             `json:"display_name"`
	Kind         string             `json:"kind"`
	Tags         []string           `json:"tags"`
	Stars        map[string]float64 `json:"stars"`
}

// TreeEdge is a traversed follow relationship. Active means the edge's
// tag filter overlapped the followee ballot's tags for this decision.
type TreeEdge struct {
	FollowerID  string   `json:"follower_id"`
	FolloweeID  string   `json:"followee_id"`
	FilterTags  []string `json:"filter_tags"`
	MatchedTags []string `json:"matched_tags"`
	Active      bool     `json:"active"`
}

// InheritanceChain lists the source contributions actually averaged into
// one voter's calculated score for one choice.
type InheritanceChain struct {
	MembershipID string         `json:"membership_id"`
	ChoiceID     string         `json:"choice_id"`
	Sources      []Contribution `json:"sources"`
}

type Contribution struct {
	SourceID string  `json:"source_id"`
	Stars    float64 `json:"stars"`
}

// Tally output.

type ChoiceScore struct {
	ChoiceID  string  `json:"choice_id"`
	Title     string  `json:"title"`
	Average   float64 `json:"average"`
	VoteCount int     `json:"vote_count"`
	Rank      int     `json:"rank"` // 1-indexed, score-phase order
}

// RunoffDetail records the automatic runoff between the top two choices.
// ScoreTiebreak is set when equal preference counts were broken by the
// score-phase average.
type RunoffDetail struct {
	ChoiceAID     string `json:"choice_a_id"`
	ChoiceBID     string `json:"choice_b_id"`
	PrefersA      int    `json:"prefers_a"`
	PrefersB      int    `json:"prefers_b"`
	Ties          int    `json:"ties"`
	WinnerID      string `json:"winner_id"`
	Margin        int    `json:"margin"`
	ScoreTiebreak bool   `json:"score_tiebreak"`
}

type TallyResult struct {
	Method      string        `json:"method"`
	Scores      []ChoiceScore `json:"scores"`
	WinnerID    string        `json:"winner_id,omitempty"`
	RunnerUpID  string        `json:"runner_up_id,omitempty"`
	Runoff      *RunoffDetail `json:"runoff,omitempty"`
	BallotCount int           `json:"ballot_count"`
}

// SnapshotResult is the post-completion payload persisted on a snapshot:
// the tally plus the full delegation tree.
type SnapshotResult struct {
	Tally TallyResult    `json:"tally"`
	Tree  DelegationTree `json:"tree"`
}
