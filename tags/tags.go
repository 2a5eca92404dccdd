// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tags

import (
	"sort"
	"strings"
)

// Normalize trims, lowercases, deduplicates, and sorts a raw tag list.
// Empty strings are dropped. Every tag set in the system passes through
// here before comparison or storage.
func Normalize(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Parse splits a stored comma-separated tag string and normalizes it.
func Parse(s string) []string {
	if s == "" {
		return nil
	}
	return Normalize(strings.Split(s, ","))
}

// Join renders a normalized tag list back to its storage form.
func Join(ts []string) string {
	return strings.Join(Normalize(ts), ",")
}

// Match decides whether a follow edge's filter overlaps a candidate
// ballot's tags. An empty filter matches everything and inherits the
// candidate's full tag set; a non-empty filter matches iff the
// intersection is non-empty and inherits exactly the intersection.
// Both inputs are expected normalized; Match normalizes anyway so raw
// storage strings are safe to pass.
func Match(filter, candidate []string) (bool, []string) {
	filter = Normalize(filter)
	candidate = Normalize(candidate)

	if len(filter) == 0 {
		return true, candidate
	}

	inCandidate := make(map[string]bool, len(candidate))
	for _, t := range candidate {
		inCandidate[t] = true
	}

	var overlap []string
	for _, t := range filter {
		if inCandidate[t] {
			overlap = append(overlap, t)
		}
	}

	return len(overlap) > 0, overlap
}

// Union merges tag sets into one normalized set.
func Union(sets ...[]string) []string {
	var all []string
	for _, s := range sets {
		all = append(all, s...)
	}
	return Normalize(all)
}
