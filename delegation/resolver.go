// Copyright (c) 2025 Jason Blum.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package delegation

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/jasonblum/crowdvote-sub000/models"
	"github.com/jasonblum/crowdvote-sub000/tags"
)

// Resolver computes calculated ballots for one decision from a frozen
// graph. It never touches live storage: everything it reads was captured
// when the snapshot was created.
//
// A Resolver is single-use and not safe for concurrent use; each
// snapshot run builds its own.
type Resolver struct {
	frozen      *models.FrozenGraph
	memberships map[string]models.FrozenMembership

	// resolved memoizes fully resolved ballots for the whole run. This is
	// what gives multi-path fan-in a consistent view: once a voter's
	// ballot is computed, every later path that reaches them reuses it
	// rather than re-expanding their sources.
	resolved map[string]*models.ResolvedBallot

	edges  []models.TreeEdge
	chains []models.InheritanceChain
}

// Result is the output of one resolution run: every ballot materialized
// (keyed by membership ID) plus the audit tree.
type Result struct {
	Ballots map[string]*models.ResolvedBallot
	Tree    models.DelegationTree
}

// NewResolver builds a resolver over a frozen graph.
func NewResolver(frozen *models.FrozenGraph) *Resolver {
	members := make(map[string]models.FrozenMembership, len(frozen.Memberships))
	for _, m := range frozen.Memberships {
		members[m.ID] = m
	}
	return &Resolver{
		frozen:      frozen,
		memberships: members,
		resolved:    make(map[string]*models.ResolvedBallot),
	}
}

// ResolveAll resolves every voting-eligible membership in sorted order.
// Non-voters (lobbyists) are resolved lazily when a voter's delegation
// reaches them; their ballots appear in the tree but the caller is
// expected to exclude them from the tally.
func (r *Resolver) ResolveAll() (*Result, error) {
	if r.frozen == nil || r.frozen.DecisionID == "" {
		return nil, fmt.Errorf("%w: frozen graph missing decision", models.ErrInvalidGraph)
	}

	var voterIDs []string
	for _, m := range r.frozen.Memberships {
		if m.IsVoter {
			voterIDs = append(voterIDs, m.ID)
		}
	}
	sort.Strings(voterIDs)

	for _, id := range voterIDs {
		r.resolve(id, map[string]bool{})
	}

	return &Result{
		Ballots: r.resolved,
		Tree:    r.buildTree(),
	}, nil
}

// resolve computes one membership's ballot. visited holds every voter on
// the current recursion path; a followee already on the path is skipped,
// so cycles truncate silently instead of failing the run.
func (r *Resolver) resolve(membershipID string, visited map[string]bool) *models.ResolvedBallot {
	if b, ok := r.resolved[membershipID]; ok {
		return b
	}

	// Manual ballots are authoritative and never recomputed.
	if frozen, ok := r.frozen.Ballots[membershipID]; ok {
		b := &models.ResolvedBallot{
			MembershipID: membershipID,
			Kind:         models.BallotManual,
			Tags:         tags.Normalize(frozen.Tags),
			Stars:        copyStars(frozen.Stars),
		}
		r.resolved[membershipID] = b
		return b
	}

	ballot := &models.ResolvedBallot{
		MembershipID: membershipID,
		Kind:         models.BallotCalculated,
		Stars:        make(map[string]float64),
	}

	// contributions[choiceID] collects every matching source's score for
	// that choice, in edge iteration order.
	contributions := make(map[string][]models.Contribution)
	var inherited [][]string

	for _, edge := range r.followEdges(membershipID) {
		if err := r.checkEdge(membershipID, edge); err != nil {
			slog.Warn("skipping malformed follow edge",
				"decision_id", r.frozen.DecisionID,
				"follower_id", membershipID,
				"followee_id", edge.FolloweeID,
				"error", err,
			)
			continue
		}

		if visited[edge.FolloweeID] {
			// Cycle: this path contributes nothing.
			r.edges = append(r.edges, models.TreeEdge{
				FollowerID: membershipID,
				FolloweeID: edge.FolloweeID,
				FilterTags: tags.Normalize(edge.Tags),
				Active:     false,
			})
			continue
		}

		childVisited := copyVisited(visited)
		childVisited[membershipID] = true
		child := r.resolve(edge.FolloweeID, childVisited)

		matched, overlap := tags.Match(edge.Tags, child.Tags)
		r.edges = append(r.edges, models.TreeEdge{
			FollowerID:  membershipID,
			FolloweeID:  edge.FolloweeID,
			FilterTags:  tags.Normalize(edge.Tags),
			MatchedTags: overlap,
			Active:      matched,
		})
		if !matched {
			continue
		}

		inherited = append(inherited, overlap)
		for _, choice := range r.frozen.Choices {
			if stars, ok := child.Stars[choice.ID]; ok {
				contributions[choice.ID] = append(contributions[choice.ID], models.Contribution{
					SourceID: child.MembershipID,
					Stars:    stars,
				})
			}
		}
	}

	// Per choice: arithmetic mean of all contributing sources, kept
	// fractional. Choices nobody scored get no vote at all.
	for _, choice := range r.frozen.Choices {
		sources := contributions[choice.ID]
		if len(sources) == 0 {
			continue
		}
		sum := 0.0
		for _, c := range sources {
			sum += c.Stars
		}
		ballot.Stars[choice.ID] = sum / float64(len(sources))
		r.chains = append(r.chains, models.InheritanceChain{
			MembershipID: membershipID,
			ChoiceID:     choice.ID,
			Sources:      sources,
		})
	}

	ballot.Tags = tags.Union(inherited...)
	r.resolved[membershipID] = ballot
	return ballot
}

// followEdges returns a membership's outbound edges deduplicated by
// followee and ordered by (order, followee id). Ordering is for
// deterministic iteration and reporting only; it never weights scores.
func (r *Resolver) followEdges(membershipID string) []models.FrozenFollowing {
	edges := append([]models.FrozenFollowing(nil), r.frozen.Followings[membershipID]...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Order != edges[j].Order {
			return edges[i].Order < edges[j].Order
		}
		return edges[i].FolloweeID < edges[j].FolloweeID
	})

	seen := make(map[string]bool, len(edges))
	out := edges[:0]
	for _, e := range edges {
		if e.FolloweeID == membershipID || seen[e.FolloweeID] {
			continue
		}
		seen[e.FolloweeID] = true
		out = append(out, e)
	}
	return out
}

// checkEdge rejects structurally invalid edges: a followee outside this
// community, or one unknown to the frozen membership set.
func (r *Resolver) checkEdge(followerID string, edge models.FrozenFollowing) error {
	if edge.CommunityID != "" && edge.CommunityID != r.frozen.CommunityID {
		return fmt.Errorf("%w: edge %s -> %s crosses community boundary",
			models.ErrInvalidGraph, followerID, edge.FolloweeID)
	}
	if _, ok := r.memberships[edge.FolloweeID]; !ok {
		return fmt.Errorf("%w: followee %s is not a member of community %s",
			models.ErrInvalidGraph, edge.FolloweeID, r.frozen.CommunityID)
	}
	return nil
}

// buildTree assembles the audit tree in fully sorted order so identical
// frozen input always yields identical bytes.
func (r *Resolver) buildTree() models.DelegationTree {
	nodes := make([]models.TreeNode, 0, len(r.resolved))
	for id, b := range r.resolved {
		nodes = append(nodes, models.TreeNode{
			MembershipID: id,
			DisplayName:  r.displayName(id),
			Kind:         b.Kind,
			Tags:         b.Tags,
			Stars:        b.Stars,
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].MembershipID < nodes[j].MembershipID
	})

	edges := append([]models.TreeEdge(nil), r.edges...)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].FollowerID != edges[j].FollowerID {
			return edges[i].FollowerID < edges[j].FollowerID
		}
		return edges[i].FolloweeID < edges[j].FolloweeID
	})

	chains := append([]models.InheritanceChain(nil), r.chains...)
	sort.Slice(chains, func(i, j int) bool {
		if chains[i].MembershipID != chains[j].MembershipID {
			return chains[i].MembershipID < chains[j].MembershipID
		}
		return chains[i].ChoiceID < chains[j].ChoiceID
	})

	return models.DelegationTree{Nodes: nodes, Edges: edges, Chains: chains}
}

// displayName masks anonymous members in the audit output.
func (r *Resolver) displayName(membershipID string) string {
	m, ok := r.memberships[membershipID]
	if !ok {
		return membershipID
	}
	if m.IsAnonymous {
		return "Anonymous"
	}
	return m.MemberName
}

func copyStars(src map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyVisited(src map[string]bool) map[string]bool {
	out := make(map[string]bool, len(src)+1)
	for k, v := range src {
		out[k] = v
	}
	return out
}
