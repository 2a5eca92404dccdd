// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package tags implements tag normalization and the tag matcher used to
scope delegation.

A follow edge carries a tag filter; a ballot carries the tags it applies
to. Match decides whether the edge inherits from the ballot:

	ok, overlap := tags.Match([]string{"budget"}, ballotTags)

Empty filter = all topics (inherits the ballot's full tag set). Non-empty
filter matches iff the intersection is non-empty, and inherits exactly
the intersection. All comparison is case-insensitive over normalized
(trimmed, lowercased) tags.
*/
package tags
