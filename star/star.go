// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package star

import (
	"sort"

	"github.com/jasonblum/crowdvote-sub000/models"
)

// Tally runs STAR voting (Score Then Automatic Runoff) over a finite
// ballot set. It is a pure function: the same input always produces
// bit-identical output.
//
// Score phase: per choice, the average of all votes cast for it. Ballots
// with no vote for a choice are excluded from that choice's average, not
// counted as zero. Choices are ranked by (average desc, creation order
// asc); the creation-order tiebreak is display stability only.
//
// Runoff phase: the top two choices by score go to a pairwise preference
// count across every ballot, defaulting a missing vote to 0. Equal
// preference counts fall back to the score-phase average, so the
// two-choice case always resolves deterministically.
func Tally(choices []models.FrozenChoice, ballots []*models.ResolvedBallot) models.TallyResult {
	result := models.TallyResult{
		Method:      models.MethodSTAR,
		BallotCount: len(ballots),
	}

	if len(choices) == 0 {
		return result
	}

	ordered := append([]models.FrozenChoice(nil), choices...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})

	scores := make([]models.ChoiceScore, 0, len(ordered))
	for _, c := range ordered {
		sum := 0.0
		count := 0
		for _, b := range ballots {
			if stars, ok := b.Stars[c.ID]; ok {
				sum += stars
				count++
			}
		}
		cs := models.ChoiceScore{
			ChoiceID:  c.ID,
			Title:     c.Title,
			VoteCount: count,
		}
		if count > 0 {
			cs.Average = sum / float64(count)
		}
		scores = append(scores, cs)
	}

	// Stable sort keeps creation order for equal averages.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Average > scores[j].Average
	})
	for i := range scores {
		scores[i].Rank = i + 1
	}
	result.Scores = scores

	// No ballots means no expressed preference: scores stay at zero with
	// zero vote counts and no choice is declared the winner.
	if len(ballots) == 0 {
		return result
	}

	if len(scores) == 1 {
		// One choice wins by definition; no runoff is performed.
		result.WinnerID = scores[0].ChoiceID
		return result
	}

	result.RunnerUpID = scores[1].ChoiceID
	runoff := runoff(scores[0], scores[1], ballots)
	result.Runoff = &runoff
	result.WinnerID = runoff.WinnerID
	if result.WinnerID == scores[1].ChoiceID {
		result.RunnerUpID = scores[0].ChoiceID
	}

	return result
}

// runoff compares the top two choices ballot by ballot. A ballot prefers
// whichever choice it scored higher, with missing votes counted as 0.
func runoff(a, b models.ChoiceScore, ballots []*models.ResolvedBallot) models.RunoffDetail {
	detail := models.RunoffDetail{
		ChoiceAID: a.ChoiceID,
		ChoiceBID: b.ChoiceID,
	}

	for _, ballot := range ballots {
		scoreA := ballot.Stars[a.ChoiceID]
		scoreB := ballot.Stars[b.ChoiceID]
		switch {
		case scoreA > scoreB:
			detail.PrefersA++
		case scoreB > scoreA:
			detail.PrefersB++
		default:
			detail.Ties++
		}
	}

	switch {
	case detail.PrefersA > detail.PrefersB:
		detail.WinnerID = a.ChoiceID
		detail.Margin = detail.PrefersA - detail.PrefersB
	case detail.PrefersB > detail.PrefersA:
		detail.WinnerID = b.ChoiceID
		detail.Margin = detail.PrefersB - detail.PrefersA
	default:
		// Equal preference counts: the higher score-phase average wins.
		// a ranked above b, so a's average is >= b's; on exact average
		// ties a already won the stable sort by creation order.
		detail.WinnerID = a.ChoiceID
		detail.ScoreTiebreak = true
	}

	return detail
}
