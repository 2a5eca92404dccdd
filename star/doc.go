// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package star implements the STAR (Score Then Automatic Runoff) tally
engine.

	res := star.Tally(choices, ballots)

The engine is a pure function of its inputs and produces bit-identical
results on every invocation. The score phase averages the votes actually
cast per choice (abstentions are excluded, not zeroed); the automatic
runoff runs a pairwise preference count between the top two choices,
where an abstention does default to 0. Equal runoff preference counts
resolve by score-phase average, then by choice creation order, so a
two-choice runoff never ends unresolved.

Edge cases: zero choices -> no winner; one choice -> wins by definition
without a runoff; zero ballots -> all averages reported as zero with
zero vote counts.
*/
package star
