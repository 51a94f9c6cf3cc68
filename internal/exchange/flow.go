package exchange

// flowGraph is a small source -> requests -> bids -> sink network used to
// compute the max flow achievable within one tied-preference clique,
// respecting each request's and bid's remaining capacity (spec.md
// §4.8 phase 4's LP-refinement step).
type flowGraph struct {
	// node ids: 0 = source, 1..len(reqs) = requests, next len(bids) = bids,
	// last = sink.
	n      int
	source int
	sink   int

	reqIndex map[*reqNode]int
	bidIndex map[*bidNode]int

	cap  [][]float64
	arcOf map[[2]int]*arc // (reqNodeIdx, bidNodeIdx) -> originating arc
}

func newFlowGraph(reqs []*reqNode, bids []*bidNode, arcs []*arc) *flowGraph {
	n := 2 + len(reqs) + len(bids)
	g := &flowGraph{
		n:        n,
		source:   0,
		sink:     n - 1,
		reqIndex: make(map[*reqNode]int, len(reqs)),
		bidIndex: make(map[*bidNode]int, len(bids)),
		arcOf:    make(map[[2]int]*arc, len(arcs)),
	}
	g.cap = make([][]float64, n)
	for i := range g.cap {
		g.cap[i] = make([]float64, n)
	}

	for i, r := range reqs {
		idx := 1 + i
		g.reqIndex[r] = idx
		g.cap[g.source][idx] = r.remaining
	}
	for i, b := range bids {
		idx := 1 + len(reqs) + i
		g.bidIndex[b] = idx
		g.cap[idx][g.sink] = b.remaining
	}
	for _, a := range arcs {
		ri := g.reqIndex[a.req]
		bi := g.bidIndex[a.bid]
		g.cap[ri][bi] += capForArc(a)
		g.arcOf[[2]int{ri, bi}] = a
	}
	return g
}

// capForArc bounds a single arc's edge by the tightest constraint either
// endpoint carries, in addition to the node capacities already modeled
// as source/sink edges.
func capForArc(a *arc) float64 {
	cap := a.req.remaining
	if a.bid.remaining < cap {
		cap = a.bid.remaining
	}
	for _, c := range a.req.constraints {
		if w := c.weight(a.bid.bid.Exemplar); w > 0 {
			if bound := c.remaining / w; bound < cap {
				cap = bound
			}
		}
	}
	for _, c := range a.bid.constraints {
		if w := c.weight(a.bid.bid.Exemplar); w > 0 {
			if bound := c.remaining / w; bound < cap {
				cap = bound
			}
		}
	}
	if cap < 0 {
		return 0
	}
	return cap
}

// maxFlow runs Edmonds-Karp (BFS shortest augmenting path) to exhaustion.
func (g *flowGraph) maxFlow() float64 {
	var total float64
	for {
		path, bottleneck := g.bfsAugmentingPath()
		if path == nil {
			break
		}
		for i := 0; i < len(path)-1; i++ {
			u, v := path[i], path[i+1]
			g.cap[u][v] -= bottleneck
			g.cap[v][u] += bottleneck
		}
		total += bottleneck
	}
	return total
}

func (g *flowGraph) bfsAugmentingPath() ([]int, float64) {
	prev := make([]int, g.n)
	for i := range prev {
		prev[i] = -1
	}
	prev[g.source] = g.source
	queue := []int{g.source}
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u == g.sink {
			break
		}
		for v := 0; v < g.n; v++ {
			if g.cap[u][v] > flowTolerance && prev[v] == -1 {
				prev[v] = u
				queue = append(queue, v)
			}
		}
	}
	if prev[g.sink] == -1 {
		return nil, 0
	}
	var path []int
	bottleneck := float64(1<<62) * 2 // effectively +inf for our scale
	for v := g.sink; v != g.source; v = prev[v] {
		u := prev[v]
		if g.cap[u][v] < bottleneck {
			bottleneck = g.cap[u][v]
		}
		path = append([]int{v}, path...)
	}
	path = append([]int{g.source}, path...)
	return path, bottleneck
}

// flowOf returns the flow Edmonds-Karp assigned to the edge underlying a,
// recovered from how much of the original capacity was consumed.
func (g *flowGraph) flowOf(a *arc) float64 {
	ri, ok := g.reqIndex[a.req]
	if !ok {
		return 0
	}
	bi, ok := g.bidIndex[a.bid]
	if !ok {
		return 0
	}
	// The residual edge bid->req now holds exactly the flow pushed
	// req->bid (reverse residual capacity), since the edge started at 0.
	return g.cap[bi][ri]
}
