// Package exchange implements the Dynamic Resource Exchange (DRE): the
// per-timestep request/bid resolution that matches traders' portfolios
// into Trades, per spec.md §4.8 (C9).
package exchange

import (
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/trader"
)

// PreferenceFunc scores how much a requester wants a given bid's
// exemplar, before any AdjustMatlPrefs override (spec.md §4.8 phase 3).
type PreferenceFunc func(req trader.Request, bid trader.Bid) float64

// DefaultPreference implements spec.md's stated default: "higher U-235
// mass fraction preferred for uranium commodities", falling back to how
// completely a bid can satisfy a request's quantity when the exemplar
// carries no composition (e.g. Product commodities).
func DefaultPreference(mt nuclide.MassTable) PreferenceFunc {
	u235, err := nuclide.FromElemMass("U", 235)
	if err != nil {
		u235 = 0
	}
	return func(req trader.Request, bid trader.Bid) float64 {
		if mat, ok := bid.Exemplar.(*resource.Material); ok && u235 != 0 {
			return mat.Composition().MassFrac(u235)
		}
		if req.Qty <= 0 {
			return 0
		}
		if bid.Qty >= req.Qty {
			return 1
		}
		return bid.Qty / req.Qty
	}
}

// ErrorSink receives (agentID, phase, err) reports for failures the DRE
// isolates rather than propagating (spec.md §4.8's failure semantics): a
// misbehaving agent never stops the resolution for anyone else.
type ErrorSink func(agentID engid.ID, phase string, err error)

// participant pairs a registered Trader with the agent id the exchange
// records transactions and errors against.
type participant struct {
	id engid.ID
	t  trader.Trader
}

// Exchange resolves one resource family's trade graph every timestep it
// is asked to. One Exchange typically serves all commodities of a given
// Resource kind (Material or Product); commodities are partitioned
// automatically by the request/bid Commodity field. Exchange implements
// engine.Market.
type Exchange struct {
	participants []participant
	pref         PreferenceFunc
	rec          *record.Recorder
	txIDs        *engid.Counter
	onError      ErrorSink
	onTrade      func(trader.TradeResponse)
}

// New builds an Exchange. txIDs mints transaction ids for recorded
// Transactions rows; rec is where those rows are written.
func New(pref PreferenceFunc, rec *record.Recorder, txIDs *engid.Counter, onError ErrorSink) *Exchange {
	return &Exchange{pref: pref, rec: rec, txIDs: txIDs, onError: onError, onTrade: func(trader.TradeResponse) {}}
}

// WithTradeObserver registers a callback invoked once per Transactions
// row this Exchange records, for callers (the kernel's metrics wiring)
// that want a settled-trade count without reading back the recorder.
func (e *Exchange) WithTradeObserver(f func(trader.TradeResponse)) *Exchange {
	if f != nil {
		e.onTrade = f
	}
	return e
}

// Register adds a trader as a participant eligible to request and bid in
// every resolution.
func (e *Exchange) Register(id engid.ID, t trader.Trader) {
	e.participants = append(e.participants, participant{id: id, t: t})
}

type reqNode struct {
	id          int
	req         trader.Request
	constraints []*constraintNode
	requester   engid.ID
	remaining   float64
}

type bidNode struct {
	id          int
	bid         trader.Bid
	req         *reqNode
	constraints []*constraintNode
	bidder      engid.ID
	remaining   float64
	group       *groupState
}

type groupState struct {
	taken bool
}

type constraintNode struct {
	weightFn  func(resource.Resource) float64
	remaining float64
}

func (c *constraintNode) weight(r resource.Resource) float64 {
	if c.weightFn == nil {
		return 1
	}
	return c.weightFn(r)
}

type arc struct {
	req  *reqNode
	bid  *bidNode
	pref float64
}

// settledTrade is the DRE's realized match: Resolve emits these internally and
// drives execution from them; trader.Trade is the public shape handed to
// participants' GetMatlTrades/AcceptMatlTrades.
type settledTrade struct {
	req *reqNode
	bid *bidNode
	qty float64
}

// Resolve runs the four-phase DRE resolution described in spec.md §4.8
// for the current timestep.
func (e *Exchange) Resolve(t int64) error {
	reqNodes, reqsByCommod := e.collectRequests()
	bidNodes := e.collectBids(reqNodes, reqsByCommod)

	arcs := e.buildArcsAndAdjustPrefs(reqNodes, bidNodes)
	sortArcs(arcs)
	e.decideExclusiveGroups(arcs)

	settled := e.matchArcs(arcs)
	e.execute(t, settled)
	return nil
}

// collectRequests calls GetMatlRequests on every participant, isolating
// any that panics with a typed error (spec.md §4.8: "that agent's
// portfolio is dropped for this resolution... other agents are not
// affected").
func (e *Exchange) collectRequests() ([]*reqNode, map[string][]trader.Request) {
	var nodes []*reqNode
	byCommod := make(map[string][]trader.Request)
	nextID := 0
	for _, p := range e.participants {
		portfolios := e.safeRequests(p)
		for pi := range portfolios {
			pf := &portfolios[pi]
			cnodes := constraintNodes(pf.Constraints)
			for _, r := range pf.Requests {
				nextID++
				r.ID = nextID
				node := &reqNode{id: nextID, req: r, constraints: cnodes, requester: p.id, remaining: r.Qty}
				nodes = append(nodes, node)
				byCommod[r.Commodity] = append(byCommod[r.Commodity], r)
			}
		}
	}
	return nodes, byCommod
}

func (e *Exchange) safeRequests(p participant) (out []trader.RequestPortfolio) {
	defer func() {
		if r := recover(); r != nil {
			e.reportPanic(p.id, "request", r)
			out = nil
		}
	}()
	return p.t.GetMatlRequests()
}

// collectBids hands every participant the full commodity->requests map
// and calls GetMatlBids; a panicking bidder is isolated the same way as
// in collectRequests. Bids whose For.ID does not match a known request
// are dropped (a misbehaving or stale bidder).
func (e *Exchange) collectBids(reqNodes []*reqNode, reqsByCommod map[string][]trader.Request) []*bidNode {
	byReqID := make(map[int]*reqNode, len(reqNodes))
	for _, n := range reqNodes {
		byReqID[n.id] = n
	}

	var nodes []*bidNode
	nextID := 0
	for _, p := range e.participants {
		portfolios := e.safeBids(p, reqsByCommod)
		for pi := range portfolios {
			pf := &portfolios[pi]
			cnodes := constraintNodes(pf.Constraints)
			groups := make([]*groupState, len(pf.Exclusive))
			for gi := range pf.Exclusive {
				groups[gi] = &groupState{}
			}
			for bi := range pf.Bids {
				b := pf.Bids[bi]
				reqN, ok := byReqID[b.For.ID]
				if !ok {
					continue
				}
				nextID++
				b.ID = nextID
				node := &bidNode{id: nextID, bid: b, req: reqN, constraints: cnodes, bidder: p.id, remaining: b.Qty}
				for gi, grp := range pf.Exclusive {
					for _, idx := range grp {
						if idx == bi {
							node.group = groups[gi]
						}
					}
				}
				nodes = append(nodes, node)
			}
		}
	}
	return nodes
}

func (e *Exchange) safeBids(p participant, reqsByCommod map[string][]trader.Request) (out []trader.BidPortfolio) {
	defer func() {
		if r := recover(); r != nil {
			e.reportPanic(p.id, "bid", r)
			out = nil
		}
	}()
	return p.t.GetMatlBids(reqsByCommod)
}

func constraintNodes(cs []trader.Constraint) []*constraintNode {
	out := make([]*constraintNode, len(cs))
	for i, c := range cs {
		out[i] = &constraintNode{weightFn: c.Coeff, remaining: c.Bound}
	}
	return out
}

func (e *Exchange) reportPanic(id engid.ID, phase string, r interface{}) {
	if e.onError == nil {
		return
	}
	if err, ok := r.(error); ok {
		e.onError(id, phase, engineerr.WithAgent(err, int64(id), phase))
		return
	}
	e.onError(id, phase, engineerr.State("%s: recovered non-error panic: %v", phase, r))
}

// buildArcsAndAdjustPrefs builds one arc per (request, bid) pair, groups
// them by requester, calls AdjustMatlPrefs once per requester with the
// full preference map it can see, then returns the adjusted arcs
// (spec.md §4.8 phase 3).
func (e *Exchange) buildArcsAndAdjustPrefs(reqNodes []*reqNode, bidNodes []*bidNode) []*arc {
	byReq := make(map[int][]*bidNode, len(reqNodes))
	for _, b := range bidNodes {
		byReq[b.req.id] = append(byReq[b.req.id], b)
	}

	tradersByID := make(map[engid.ID]trader.Trader, len(e.participants))
	for _, p := range e.participants {
		tradersByID[p.id] = p.t
	}

	type group struct {
		requester engid.ID
		arcs      []*arc
	}
	groups := make(map[engid.ID]*group)

	for _, reqN := range reqNodes {
		for _, b := range byReq[reqN.id] {
			a := &arc{req: reqN, bid: b, pref: e.pref(reqN.req, b.bid)}
			g := groups[reqN.requester]
			if g == nil {
				g = &group{requester: reqN.requester}
				groups[reqN.requester] = g
			}
			g.arcs = append(g.arcs, a)
		}
	}

	var arcs []*arc
	for _, g := range groups {
		prefs := make(map[[2]int]float64, len(g.arcs))
		for _, a := range g.arcs {
			prefs[[2]int{a.req.id, a.bid.id}] = a.pref
		}
		if t := tradersByID[g.requester]; t != nil {
			e.safeAdjust(g.requester, t, prefs)
		}
		for _, a := range g.arcs {
			a.pref = prefs[[2]int{a.req.id, a.bid.id}]
			arcs = append(arcs, a)
		}
	}
	return arcs
}

func (e *Exchange) safeAdjust(id engid.ID, t trader.Trader, prefs map[[2]int]float64) {
	defer func() {
		if r := recover(); r != nil {
			e.reportPanic(id, "adjust", r)
		}
	}()
	t.AdjustMatlPrefs(prefs)
}
