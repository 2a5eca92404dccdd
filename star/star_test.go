// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package star

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/jasonblum/crowdvote-sub000/models"
)

const epsilon = 1e-9

func twoChoices() []models.FrozenChoice {
	return []models.FrozenChoice{
		{ID: "A", Title: "Choice A", Order: 1},
		{ID: "B", Title: "Choice B", Order: 2},
	}
}

func ballot(stars map[string]float64) *models.ResolvedBallot {
	return &models.ResolvedBallot{Kind: models.BallotManual, Stars: stars}
}

func TestRunoffDeterminism(t *testing.T) {
	// Ballots [(A=5,B=3),(A=5,B=3),(A=2,B=5)]: score phase A=4.0 > B=11/3;
	// runoff: 2 prefer A, 1 prefers B -> A wins with margin 1.
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 5, "B": 3}),
		ballot(map[string]float64{"A": 5, "B": 3}),
		ballot(map[string]float64{"A": 2, "B": 5}),
	}

	res := Tally(twoChoices(), ballots)

	if res.WinnerID != "A" {
		t.Fatalf("expected A to win, got %s", res.WinnerID)
	}
	if res.RunnerUpID != "B" {
		t.Errorf("expected runner-up B, got %s", res.RunnerUpID)
	}
	if math.Abs(res.Scores[0].Average-4.0) > epsilon {
		t.Errorf("expected A average 4.0, got %v", res.Scores[0].Average)
	}
	if math.Abs(res.Scores[1].Average-11.0/3.0) > epsilon {
		t.Errorf("expected B average 11/3, got %v", res.Scores[1].Average)
	}
	if res.Runoff == nil {
		t.Fatal("expected runoff detail")
	}
	if res.Runoff.PrefersA != 2 || res.Runoff.PrefersB != 1 {
		t.Errorf("expected preferences 2/1, got %d/%d", res.Runoff.PrefersA, res.Runoff.PrefersB)
	}
	if res.Runoff.Margin != 1 {
		t.Errorf("expected margin 1, got %d", res.Runoff.Margin)
	}
	if res.Runoff.ScoreTiebreak {
		t.Error("no tiebreak should have been needed")
	}
}

func TestRunoffCanOverturnScoreOrder(t *testing.T) {
	// B has the higher average but more ballots prefer A head-to-head.
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 3, "B": 2}),
		ballot(map[string]float64{"A": 3, "B": 2}),
		ballot(map[string]float64{"A": 0, "B": 5}),
	}

	res := Tally(twoChoices(), ballots)

	// Score phase: A=2.0, B=3.0 -> B ranked first.
	if res.Scores[0].ChoiceID != "B" {
		t.Fatalf("expected B ranked first by score, got %s", res.Scores[0].ChoiceID)
	}
	// Runoff: 2 ballots prefer A, 1 prefers B -> A wins.
	if res.WinnerID != "A" {
		t.Errorf("expected runoff winner A, got %s", res.WinnerID)
	}
	if res.RunnerUpID != "B" {
		t.Errorf("expected runner-up B, got %s", res.RunnerUpID)
	}
}

func TestRunoffEqualPreferencesFallsBackToScore(t *testing.T) {
	// Head-to-head is 1-1; A's higher average breaks the tie.
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 5, "B": 1}),
		ballot(map[string]float64{"A": 3, "B": 4}),
	}

	res := Tally(twoChoices(), ballots)

	if res.Runoff == nil || !res.Runoff.ScoreTiebreak {
		t.Fatal("expected score-average tiebreak")
	}
	if res.WinnerID != "A" {
		t.Errorf("expected A by score fallback, got %s", res.WinnerID)
	}
}

func TestEqualAveragesBreakByCreationOrder(t *testing.T) {
	// Identical ballots for both choices: everything ties, and the
	// earlier-created choice wins.
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 3, "B": 3}),
		ballot(map[string]float64{"A": 3, "B": 3}),
	}

	res := Tally(twoChoices(), ballots)

	if res.Scores[0].ChoiceID != "A" {
		t.Errorf("stable sort must keep creation order, got %s first", res.Scores[0].ChoiceID)
	}
	if res.WinnerID != "A" {
		t.Errorf("expected A by creation order, got %s", res.WinnerID)
	}
}

func TestAbstentionsExcludedFromAverageButZeroInRunoff(t *testing.T) {
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 4}), // abstains on B
		ballot(map[string]float64{"A": 2, "B": 5}),
	}

	res := Tally(twoChoices(), ballots)

	var scoreA, scoreB models.ChoiceScore
	for _, s := range res.Scores {
		switch s.ChoiceID {
		case "A":
			scoreA = s
		case "B":
			scoreB = s
		}
	}

	// A: mean(4, 2) = 3 over 2 votes; B: mean(5) = 5 over 1 vote.
	if scoreA.VoteCount != 2 || math.Abs(scoreA.Average-3) > epsilon {
		t.Errorf("expected A avg 3 over 2 votes, got %v over %d", scoreA.Average, scoreA.VoteCount)
	}
	if scoreB.VoteCount != 1 || math.Abs(scoreB.Average-5) > epsilon {
		t.Errorf("expected B avg 5 over 1 vote, got %v over %d", scoreB.Average, scoreB.VoteCount)
	}

	// Runoff treats the first ballot's missing B as 0: it prefers A.
	if res.Runoff.PrefersA != 1 || res.Runoff.PrefersB != 1 {
		t.Errorf("expected 1/1 preferences, got %d/%d", res.Runoff.PrefersA, res.Runoff.PrefersB)
	}
}

func TestZeroChoices(t *testing.T) {
	res := Tally(nil, []*models.ResolvedBallot{ballot(map[string]float64{"A": 5})})
	if res.WinnerID != "" || res.Runoff != nil || len(res.Scores) != 0 {
		t.Errorf("zero choices must yield no winner, got %+v", res)
	}
}

func TestSingleChoiceWinsWithoutRunoff(t *testing.T) {
	choices := []models.FrozenChoice{{ID: "A", Title: "Only", Order: 1}}
	res := Tally(choices, []*models.ResolvedBallot{ballot(map[string]float64{"A": 1})})
	if res.WinnerID != "A" {
		t.Errorf("single choice must win, got %q", res.WinnerID)
	}
	if res.Runoff != nil {
		t.Error("single choice must not run a runoff")
	}
}

func TestZeroBallots(t *testing.T) {
	res := Tally(twoChoices(), nil)
	if res.BallotCount != 0 {
		t.Errorf("expected 0 ballots, got %d", res.BallotCount)
	}
	for _, s := range res.Scores {
		if s.Average != 0 || s.VoteCount != 0 {
			t.Errorf("expected zero stats for %s, got %+v", s.ChoiceID, s)
		}
	}
	if res.WinnerID != "" {
		t.Errorf("no ballots must declare no winner, got %q", res.WinnerID)
	}
	if res.RunnerUpID != "" {
		t.Errorf("no ballots must declare no runner-up, got %q", res.RunnerUpID)
	}
	if res.Runoff != nil {
		t.Errorf("no ballots must not run a runoff, got %+v", res.Runoff)
	}
	if len(res.Scores) != 2 {
		t.Errorf("scores must still be reported for every choice, got %d", len(res.Scores))
	}
}

func TestZeroBallotsSingleChoice(t *testing.T) {
	choices := []models.FrozenChoice{{ID: "A", Title: "Only", Order: 1}}
	res := Tally(choices, nil)
	if res.WinnerID != "" {
		t.Errorf("an unscored lone choice must not win, got %q", res.WinnerID)
	}
}

func TestTallyIsPure(t *testing.T) {
	ballots := []*models.ResolvedBallot{
		ballot(map[string]float64{"A": 5, "B": 3}),
		ballot(map[string]float64{"A": 1, "B": 4}),
		ballot(map[string]float64{"A": 3}),
	}

	first, err := json.Marshal(Tally(twoChoices(), ballots))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := json.Marshal(Tally(twoChoices(), ballots))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(first) != string(second) {
		t.Error("identical input produced different tally bytes")
	}
}
