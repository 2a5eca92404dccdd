// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package delegation implements the delegation resolver: the engine that
computes calculated ballots for members who did not vote directly.

# Algorithm

For one decision, resolution works over a frozen graph only:

	r := delegation.NewResolver(frozen)
	result, err := r.ResolveAll()

Per voter:

 1. A manual ballot is returned untouched; the resolver never rewrites it.
 2. Otherwise the voter's outbound follow edges are deduplicated by
    followee and walked in (order, followee id) order.
 3. Each followee's ballot is resolved recursively; an edge whose tag
    filter overlaps the followee ballot's tags becomes an active source.
 4. Per choice, the calculated score is the arithmetic mean of all active
    sources' scores for that choice, kept fractional. Choices with no
    sources get no vote.
 5. The ballot's tags become the union of the matched (intersected) tag
    sets.

# Cycles and Fan-in

The visited set is path-local: it is copied down each recursive branch,
so the same voter can be reached legitimately via two non-overlapping
paths. A followee already on the current path is skipped silently —
cycles truncate a path, they never fail the run.

Completed resolutions are memoized for the whole run. When two paths
converge on the same ultimate source, each immediate source still counts
once in the follower's average; the root is not re-expanded and
double-counted.

# Audit Tree

ResolveAll also emits a delegation tree: every resolved ballot as a node,
every traversed edge annotated with whether it tag-matched, and the
per-choice inheritance chain of (source, score) contributions actually
averaged. The tree is fully sorted and reproducible byte-for-byte from
the same frozen input.

Missing ballots, missing edges, and cycles are valid "no opinion" states.
The only faults are structural: an edge crossing community boundaries or
pointing at an unknown membership is logged and skipped.
*/
package delegation
