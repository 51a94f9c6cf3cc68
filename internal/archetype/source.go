package archetype

import (
	"math"

	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/configcodec"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/resource/buffer"
	"github.com/cyclus/fuelsim/internal/trader"
)

// SourceConfig configures a Source: it produces Throughput kg of Recipe
// per Tick into a commodity, up to Capacity kg of standing inventory
// (spec.md §8's source/enrichment scenarios).
type SourceConfig struct {
	Commodity  string  `json:"commodity"`
	Recipe     string  `json:"recipe"`
	Throughput float64 `json:"throughput"`
	Capacity   float64 `json:"capacity"` // <= 0 means unbounded
}

// Source is the simplest reference archetype: a pure bidder that
// manufactures inventory from a fixed recipe every Tick and offers it on
// one commodity.
type Source struct {
	agentID engid.ID
	ctx     *engine.Context
	cfg     SourceConfig
	factory *resource.MaterialFactory
	inv     *buffer.Buffer
}

// NewSource is this archetype's Factory.
func NewSource(ctx *engine.Context, agentID engid.ID, configBlob []byte) (agent.Behavior, error) {
	cfg, err := configcodec.Unmarshal[SourceConfig](configBlob)
	if err != nil {
		return nil, err
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = math.Inf(1)
	}
	return &Source{
		agentID: agentID,
		ctx:     ctx,
		cfg:     cfg,
		factory: &resource.MaterialFactory{Reg: ctx.Resources(), MT: ctx.MassTable(), Arena: ctx.Arena(), DecayIvl: ctx.DecayInterval(), Now: ctx.Now, Rec: ctx.Recorder()},
		inv:     buffer.New(capacity),
	}, nil
}

func (s *Source) Prototype() string { return "source" }
func (s *Source) EnterNotify()      {}
func (s *Source) Decommission()     {}

// Tick manufactures up to Throughput kg of the configured recipe,
// clamped to remaining inventory space (spec.md §8 scenario 1).
func (s *Source) Tick(t int64) {
	space := s.inv.Space()
	if space <= 0 {
		return
	}
	qty := s.cfg.Throughput
	if qty > space {
		qty = space
	}
	if qty <= 0 {
		return
	}
	comp, err := s.ctx.Recipe(s.cfg.Recipe)
	if err != nil {
		panic(err) // unknown recipe is a configuration error, not a trade failure
	}
	m, err := s.factory.Create(s.agentID, qty, comp, t)
	if err != nil {
		panic(err)
	}
	if err := s.inv.Push(buffer.WrapMaterial(m)); err != nil {
		panic(err)
	}
}

// Tock does nothing; with Tick it makes Source an engine.TimeListener, so
// the kernel registers it for the per-step broadcasts.
func (s *Source) Tock(int64) {}

func (s *Source) GetMatlRequests() []trader.RequestPortfolio { return nil }

// GetMatlBids offers up to the requested quantity against current
// inventory, exemplified by the oldest held material (FIFO).
func (s *Source) GetMatlBids(commodReqs map[string][]trader.Request) []trader.BidPortfolio {
	reqs := commodReqs[s.cfg.Commodity]
	if len(reqs) == 0 || s.inv.Quantity() <= 0 {
		return nil
	}
	head := s.inv.Peek()
	if len(head) == 0 {
		return nil
	}
	var bids []trader.Bid
	for _, r := range reqs {
		qty := r.Qty
		if qty > s.inv.Quantity() {
			qty = s.inv.Quantity()
		}
		if qty <= 0 {
			continue
		}
		bids = append(bids, trader.Bid{Bidder: s.agentID, For: r, Exemplar: head[0], Qty: qty})
	}
	if len(bids) == 0 {
		return nil
	}
	return []trader.BidPortfolio{{Bidder: s.agentID, Bids: bids}}
}

func (s *Source) AdjustMatlPrefs(map[[2]int]float64) {}

// GetMatlTrades splits the agreed quantity off the front of inventory.
func (s *Source) GetMatlTrades(trades []trader.Trade, responses *[]trader.TradeResponse) error {
	for _, tr := range trades {
		popped, err := s.inv.PopQty(tr.Qty)
		if err != nil {
			return err
		}
		res, err := buffer.Combine(popped)
		if err != nil {
			return err
		}
		m, ok := buffer.AsMaterial(res)
		if !ok {
			return nil
		}
		*responses = append(*responses, trader.TradeResponse{Trade: tr, Resource: m})
	}
	return nil
}

func (s *Source) AcceptMatlTrades([]trader.TradeResponse) error { return nil }
