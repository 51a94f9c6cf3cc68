package archetype

import (
	"math"

	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/configcodec"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/engineerr"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/resource/buffer"
	"github.com/cyclus/fuelsim/internal/trader"
)

// EnrichmentConfig configures an Enrichment facility (spec.md §8
// scenarios 2, 5, and 6): it requests natural-assay feed up to
// MaxFeedInventory, and bids enriched product against whatever assay a
// request's exemplar carries, constrained by TailsAssay and an optional
// SWUCapacity (<=0 means unconstrained). TailsCommodity, if set, offers
// the accumulated tails stream to any trader requesting that commodity
// (e.g. a Sink configured to collect "tails"), exactly as a second
// tradable output, mirroring original_source/cycamore's TradeTails path.
// A blank TailsCommodity leaves tails held in inventory forever, never
// offered on the exchange.
type EnrichmentConfig struct {
	FeedCommodity    string  `json:"feed_commodity"`
	ProductCommodity string  `json:"product_commodity"`
	TailsCommodity   string  `json:"tails_commodity"`
	TailsAssay       float64 `json:"tails_assay"`
	MaxFeedInventory float64 `json:"max_feed_inventory"`
	SWUCapacity      float64 `json:"swu_capacity"`
}

// Enrichment implements the separative-work-unit physics that is the
// reason this archetype exists at all: it turns a quantity of natural
// feed into a smaller quantity of higher-assay product plus a tails
// stream, at a SWU cost, per the standard feed/product/tails balance
// (original_source/cycamore; spec.md never spells out the formula but
// its scenarios 2 and 5 require it to reproduce the quoted numbers).
type Enrichment struct {
	agentID engid.ID
	cfg     EnrichmentConfig
	factory *resource.MaterialFactory
	mt      nuclide.MassTable
	u235    nuclide.ID
	u238    nuclide.ID

	feed  *buffer.Buffer
	tails *buffer.Buffer

	swuUsedThisStep float64
}

// NewEnrichment is this archetype's Factory.
func NewEnrichment(ctx *engine.Context, agentID engid.ID, configBlob []byte) (agent.Behavior, error) {
	cfg, err := configcodec.Unmarshal[EnrichmentConfig](configBlob)
	if err != nil {
		return nil, err
	}
	u235, err := nuclide.FromElemMass("U", 235)
	if err != nil {
		return nil, err
	}
	u238, err := nuclide.FromElemMass("U", 238)
	if err != nil {
		return nil, err
	}
	feedCap := cfg.MaxFeedInventory
	if feedCap <= 0 {
		feedCap = math.Inf(1)
	}
	return &Enrichment{
		agentID: agentID,
		cfg:     cfg,
		factory: &resource.MaterialFactory{Reg: ctx.Resources(), MT: ctx.MassTable(), Arena: ctx.Arena(), DecayIvl: ctx.DecayInterval(), Now: ctx.Now, Rec: ctx.Recorder()},
		mt:      ctx.MassTable(),
		u235:    u235,
		u238:    u238,
		feed:    buffer.New(feedCap),
		tails:   buffer.New(math.Inf(1)),
	}, nil
}

func (e *Enrichment) Prototype() string { return "enrichment" }
func (e *Enrichment) EnterNotify()      {}
func (e *Enrichment) Decommission()     {}

// Tick resets the per-step SWU budget (spec.md §8 scenario 2: SWU
// capacity constrains throughput per timestep, not cumulatively).
func (e *Enrichment) Tick(int64) {
	e.swuUsedThisStep = 0
}

// Tock does nothing; with Tick it makes Enrichment an engine.TimeListener,
// so the kernel registers it for the per-step broadcasts.
func (e *Enrichment) Tock(int64) {}

// GetMatlRequests asks for feed up to remaining tank space.
func (e *Enrichment) GetMatlRequests() []trader.RequestPortfolio {
	space := e.feed.Space()
	if space <= 0 {
		return nil
	}
	exemplar, err := resource.CreateUntracked(space, nil)
	if err != nil {
		return nil
	}
	return []trader.RequestPortfolio{{
		Requester: e.agentID,
		Requests: []trader.Request{{
			Requester: e.agentID, Commodity: e.cfg.FeedCommodity, Exemplar: exemplar, Qty: space, Preference: 1,
		}},
	}}
}

// swuValue is the separative work function V(x) = (2x-1)*ln(x/(1-x)).
func swuValue(x float64) float64 {
	return (2*x - 1) * math.Log(x/(1-x))
}

// feedAssay returns the mass-weighted U-235 fraction of held feed, or the
// natural-uranium default if no feed is held yet.
func (e *Enrichment) feedAssay() float64 {
	const natural = 0.00711
	if e.feed.Quantity() <= 0 {
		return natural
	}
	var massU235, total float64
	for _, it := range e.feed.Peek() {
		m, ok := it.(interface{ Composition() *composition.Composition })
		if !ok {
			continue
		}
		frac := m.Composition().MassFrac(e.u235)
		massU235 += frac * it.Quantity()
		total += it.Quantity()
	}
	if total <= 0 {
		return natural
	}
	return massU235 / total
}

// GetMatlBids offers product at whatever assay each request's exemplar
// carries (bounded by available feed and remaining SWU budget), plus
// whatever is held in the tails buffer against requests on
// TailsCommodity (spec.md §8 scenario 5's tails accounting).
func (e *Enrichment) GetMatlBids(commodReqs map[string][]trader.Request) []trader.BidPortfolio {
	var bids []trader.Bid
	bids = append(bids, e.productBids(commodReqs[e.cfg.ProductCommodity])...)
	if e.cfg.TailsCommodity != "" {
		bids = append(bids, e.tailsBids(commodReqs[e.cfg.TailsCommodity])...)
	}
	if len(bids) == 0 {
		return nil
	}
	return []trader.BidPortfolio{{Bidder: e.agentID, Bids: bids}}
}

// productBids is the enrichment-production offer: a fresh product
// Material synthesized from held feed at whatever assay the request
// wants, bounded by available feed and remaining SWU budget for the step.
func (e *Enrichment) productBids(reqs []trader.Request) []trader.Bid {
	if len(reqs) == 0 {
		return nil
	}
	xf := e.feedAssay()
	xt := e.cfg.TailsAssay
	var bids []trader.Bid
	for _, r := range reqs {
		xp := requestAssay(r, xf)
		if xp <= xf || xp <= xt || xt >= xf {
			continue // an infeasible or non-enriching request gets no offer
		}
		productQty := e.feasibleProduct(r.Qty, xf, xp, xt)
		if productQty <= 1e-9 {
			continue
		}
		exemplar, err := e.productExemplar(xp)
		if err != nil {
			continue
		}
		bids = append(bids, trader.Bid{Bidder: e.agentID, For: r, Exemplar: exemplar, Qty: productQty})
	}
	return bids
}

// tailsBids offers already-produced tails straight out of inventory,
// the same FIFO offer-against-held-stock pattern Source uses for its own
// inventory, since tails (unlike product) are not synthesized on demand.
func (e *Enrichment) tailsBids(reqs []trader.Request) []trader.Bid {
	if len(reqs) == 0 || e.tails.Quantity() <= 0 {
		return nil
	}
	head := e.tails.Peek()
	if len(head) == 0 {
		return nil
	}
	var bids []trader.Bid
	for _, r := range reqs {
		qty := r.Qty
		if qty > e.tails.Quantity() {
			qty = e.tails.Quantity()
		}
		if qty <= 0 {
			continue
		}
		bids = append(bids, trader.Bid{Bidder: e.agentID, For: r, Exemplar: head[0], Qty: qty})
	}
	return bids
}

// requestAssay reads the desired product assay off a request's exemplar,
// defaulting to a conservative low-enriched target when the exemplar
// carries no composition.
func requestAssay(r trader.Request, feedAssay float64) float64 {
	if mat, ok := r.Exemplar.(*resource.Material); ok && mat.Composition() != nil {
		x, err := nuclide.FromElemMass("U", 235)
		if err == nil {
			return mat.Composition().MassFrac(x)
		}
	}
	return feedAssay * 5 // an arbitrary but deterministic default enrichment
}

// feasibleProduct returns the largest product quantity achievable given
// available feed inventory and remaining SWU budget, clamped to want.
func (e *Enrichment) feasibleProduct(want, xf, xp, xt float64) float64 {
	feedPerProduct := (xp - xt) / (xf - xt)
	fromFeed := e.feed.Quantity() / feedPerProduct

	qty := math.Min(want, fromFeed)
	if e.cfg.SWUCapacity > 0 {
		tailsPerProduct := feedPerProduct - 1
		swuPerProduct := swuValue(xp) + tailsPerProduct*swuValue(xt) - feedPerProduct*swuValue(xf)
		if swuPerProduct > 0 {
			remainingSWU := e.cfg.SWUCapacity - e.swuUsedThisStep
			fromSWU := remainingSWU / swuPerProduct
			qty = math.Min(qty, fromSWU)
		}
	}
	if qty < 0 {
		return 0
	}
	return qty
}

func (e *Enrichment) productExemplar(xp float64) (*resource.Material, error) {
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{e.u235: xp, e.u238: 1 - xp}, e.mt)
	if err != nil {
		return nil, err
	}
	return resource.CreateUntracked(1, comp)
}

func (e *Enrichment) AdjustMatlPrefs(map[[2]int]float64) {}

// GetMatlTrades realizes each accepted trade. A product trade pulls the
// corresponding feed/tails split from inventory and creates a fresh
// product Material of the agreed assay; a tails trade hands out
// already-produced tails straight from inventory, the same way
// Source.GetMatlTrades splits off its own held stock. If feed or SWU
// budget run out partway through a batch of product trades (multiple
// trades settled against this bidder in one resolution), later trades in
// the batch receive less than requested quantity; the exchange nulls any
// trade whose delivered quantity does not match what was agreed (spec.md
// §4.8's failure semantics).
func (e *Enrichment) GetMatlTrades(trades []trader.Trade, responses *[]trader.TradeResponse) error {
	for _, tr := range trades {
		var (
			resp *trader.TradeResponse
			err  error
		)
		if e.cfg.TailsCommodity != "" && tr.Request.Commodity == e.cfg.TailsCommodity {
			resp, err = e.tailsTrade(tr)
		} else {
			resp, err = e.productTrade(tr)
		}
		if err != nil {
			return err
		}
		if resp != nil {
			*responses = append(*responses, *resp)
		}
	}
	return nil
}

// tailsTrade splits the agreed quantity off the front of the tails
// buffer, mirroring Source.GetMatlTrades.
func (e *Enrichment) tailsTrade(tr trader.Trade) (*trader.TradeResponse, error) {
	popped, err := e.tails.PopQty(tr.Qty)
	if err != nil {
		return nil, nil
	}
	combined, err := buffer.Combine(popped)
	if err != nil {
		return nil, err
	}
	m, ok := buffer.AsMaterial(combined)
	if !ok {
		return nil, nil
	}
	return &trader.TradeResponse{Trade: tr, Resource: m}, nil
}

// productTrade runs the enrichment-production path: feed and SWU budget
// in, a freshly synthesized product Material and a tails Material out.
func (e *Enrichment) productTrade(tr trader.Trade) (*trader.TradeResponse, error) {
	xf := e.feedAssay()
	xt := e.cfg.TailsAssay
	xp := requestAssay(tr.Request, xf)
	if xp <= xf || xp <= xt {
		return nil, nil
	}
	qty := e.feasibleProduct(tr.Qty, xf, xp, xt)
	if qty <= 1e-9 {
		return nil, nil
	}

	feedPerProduct := (xp - xt) / (xf - xt)
	feedUsed := qty * feedPerProduct
	tailsUsed := feedUsed - qty

	feedPieces, err := e.feed.PopQty(feedUsed)
	if err != nil {
		return nil, nil
	}
	if _, err := buffer.Combine(feedPieces); err != nil {
		return nil, err
	}

	tailsComp, err := composition.CreateFromMass(map[nuclide.ID]float64{e.u235: xt, e.u238: 1 - xt}, e.mt)
	if err != nil {
		return nil, err
	}
	tailsMat, err := e.factory.Create(e.agentID, tailsUsed, tailsComp, 0)
	if err != nil {
		return nil, err
	}
	if err := e.tails.Push(buffer.WrapMaterial(tailsMat)); err != nil {
		return nil, err
	}

	productComp, err := composition.CreateFromMass(map[nuclide.ID]float64{e.u235: xp, e.u238: 1 - xp}, e.mt)
	if err != nil {
		return nil, err
	}
	product, err := e.factory.Create(e.agentID, qty, productComp, 0)
	if err != nil {
		return nil, err
	}

	swuPerProduct := swuValue(xp) + (feedPerProduct-1)*swuValue(xt) - feedPerProduct*swuValue(xf)
	if swuPerProduct > 0 {
		e.swuUsedThisStep += qty * swuPerProduct
	}

	return &trader.TradeResponse{Trade: tr, Resource: product}, nil
}

// AcceptMatlTrades stores delivered feed, rejecting the whole delivery if
// any piece's U-235 fraction does not exceed TailsAssay: feed at or below
// the tails assay cannot be enriched at all, so it is not valid feed
// (spec.md §8 scenario 6's "a source offering pure U-238 into an
// enricher... no rows in the Transactions table"), mirroring
// original_source/cycamore's ValidReq feasibility gate. A refusal here
// propagates as a failed delivery (internal/exchange/execute.go), so
// nothing in the batch is recorded as a settled Transaction.
func (e *Enrichment) AcceptMatlTrades(responses []trader.TradeResponse) error {
	materials := make([]*resource.Material, 0, len(responses))
	for _, resp := range responses {
		m, ok := resp.Resource.(*resource.Material)
		if !ok {
			return engineerr.Value("enrichment: expected Material delivery")
		}
		if assay := m.Composition().MassFrac(e.u235); assay <= e.cfg.TailsAssay {
			return engineerr.Value("enrichment: feed assay %.6g does not exceed tails assay %.6g", assay, e.cfg.TailsAssay)
		}
		materials = append(materials, m)
	}
	for _, m := range materials {
		if err := e.feed.Push(buffer.WrapMaterial(m)); err != nil {
			return err
		}
	}
	return nil
}

// TailsInventory returns the cumulative tails quantity produced so far,
// for tests and recorder-free inspection (spec.md §8 scenario 5's tails
// accounting).
func (e *Enrichment) TailsInventory() float64 { return e.tails.Quantity() }
