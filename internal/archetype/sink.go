package archetype

import (
	"math"

	"github.com/cyclus/fuelsim/internal/agent"
	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/configcodec"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/resource/buffer"
	"github.com/cyclus/fuelsim/internal/trader"
)

// SinkConfig configures a Sink: it requests Commodity up to Capacity kg
// of standing inventory. Recipe, if set, names a registered composition
// the request's exemplar carries, so a bidder that reads assay off the
// exemplar (e.g. Enrichment's product bid) can target it; a blank Recipe
// requests the commodity with no composition preference.
type SinkConfig struct {
	Commodity string  `json:"commodity"`
	Recipe    string  `json:"recipe,omitempty"`
	Capacity  float64 `json:"capacity"` // <= 0 means unbounded
}

// Sink is the simplest reference archetype: a pure requester that
// absorbs whatever it is offered, up to its capacity.
type Sink struct {
	agentID engid.ID
	ctx     *engine.Context
	cfg     SinkConfig
	inv     *buffer.Buffer
}

// NewSink is this archetype's Factory.
func NewSink(ctx *engine.Context, agentID engid.ID, configBlob []byte) (agent.Behavior, error) {
	cfg, err := configcodec.Unmarshal[SinkConfig](configBlob)
	if err != nil {
		return nil, err
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = math.Inf(1)
	}
	return &Sink{agentID: agentID, ctx: ctx, cfg: cfg, inv: buffer.New(capacity)}, nil
}

func (s *Sink) Prototype() string { return "sink" }
func (s *Sink) EnterNotify()      {}
func (s *Sink) Decommission()     {}

// GetMatlRequests asks for up to its remaining capacity every step
// (spec.md §8 scenario 1's "a sink requests exactly the quantity a
// source can supply").
func (s *Sink) GetMatlRequests() []trader.RequestPortfolio {
	space := s.inv.Space()
	if space <= 0 {
		return nil
	}
	var comp *composition.Composition
	if s.cfg.Recipe != "" {
		c, err := s.ctx.Recipe(s.cfg.Recipe)
		if err != nil {
			return nil
		}
		comp = c
	}
	exemplar, err := resource.CreateUntracked(space, comp)
	if err != nil {
		return nil
	}
	return []trader.RequestPortfolio{{
		Requester: s.agentID,
		Requests: []trader.Request{{
			Requester: s.agentID, Commodity: s.cfg.Commodity, Exemplar: exemplar, Qty: space, Preference: 1,
		}},
	}}
}

func (s *Sink) GetMatlBids(map[string][]trader.Request) []trader.BidPortfolio { return nil }
func (s *Sink) AdjustMatlPrefs(map[[2]int]float64)                           {}
func (s *Sink) GetMatlTrades([]trader.Trade, *[]trader.TradeResponse) error  { return nil }

// AcceptMatlTrades stores every delivered resource.
func (s *Sink) AcceptMatlTrades(responses []trader.TradeResponse) error {
	for _, resp := range responses {
		m, ok := resp.Resource.(*resource.Material)
		if !ok {
			return nil // non-Material deliveries are out of scope for this archetype
		}
		if err := s.inv.Push(buffer.WrapMaterial(m)); err != nil {
			return err
		}
	}
	return nil
}
