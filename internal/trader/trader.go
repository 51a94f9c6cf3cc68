// Package trader defines the Trader capability mixin and the
// request/bid portfolio types the Dynamic Resource Exchange (package
// exchange) builds its trade graph from, per spec.md §4.7 (C10).
package trader

import (
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/resource"
)

// Constraint is a linear predicate over the accepted requests/bids in a
// portfolio: Σ coeff(r)·qty(r) ≤ Bound, where coeff is looked up by the
// request/bid's exemplar resource (spec.md §4.7's "Σ U-235 in accepted
// bids ≤ X").
type Constraint struct {
	// Coeff returns the per-unit-quantity weight of r under this
	// constraint (e.g. mass fraction of U-235). A nil Coeff is equivalent
	// to a constant 1, i.e. the constraint bounds total quantity.
	Coeff func(r resource.Resource) float64
	Bound float64
}

// Weight returns coeff(r), defaulting to 1 when no Coeff func is set.
func (c Constraint) Weight(r resource.Resource) float64 {
	if c.Coeff == nil {
		return 1
	}
	return c.Coeff(r)
}

// Request is a single line item: an agent wants Qty of Commodity shaped
// like Exemplar. Preference is the requester's utility for a fully
// satisfying bid; AdjustMatlPrefs may rescale it per-bidder after the
// trade graph is built (spec.md §4.7/§4.8).
type Request struct {
	ID         int
	Requester  engid.ID
	Commodity  string
	Exemplar   resource.Resource
	Qty        float64
	Preference float64
}

// RequestPortfolio groups Requests that share capacity constraints
// (spec.md §4.7's RequestPortfolio).
type RequestPortfolio struct {
	Requester   engid.ID
	Requests    []Request
	Constraints []Constraint
}

// Bid is an offer to fill a specific Request with Qty of a resource
// shaped like Exemplar.
type Bid struct {
	ID        int
	Bidder    engid.ID
	For       Request
	Exemplar  resource.Resource
	Qty       float64
}

// ExclusiveGroup names a set of Bid ids (by index into the owning
// BidPortfolio's Bids) of which at most one may be accepted (spec.md
// §4.7's exclusive groups).
type ExclusiveGroup []int

// BidPortfolio groups Bids that share capacity constraints and exclusive
// groups (spec.md §4.7's BidPortfolio).
type BidPortfolio struct {
	Bidder      engid.ID
	Bids        []Bid
	Constraints []Constraint
	Exclusive   []ExclusiveGroup
}

// Trade is a matched (request, bid) pair the DRE resolved (spec.md §4.8).
type Trade struct {
	Request  Request
	Bid      Bid
	Qty      float64
	Price    float64
}

// TradeResponse is the concrete resource a bidder produced for an
// accepted Trade, handed back to the requester in AcceptMatlTrades.
type TradeResponse struct {
	Trade    Trade
	Resource resource.Resource
}

// Trader is the capability set an agent implements to participate in the
// exchange for a resource family (spec.md §4.7).
type Trader interface {
	// GetMatlRequests is called by the exchange at resolve time to collect
	// this agent's outstanding requests.
	GetMatlRequests() []RequestPortfolio
	// GetMatlBids is called with the commodities currently requested,
	// mapped to the requests seeking them, and returns this agent's offers.
	GetMatlBids(commodRequests map[string][]Request) []BidPortfolio
	// AdjustMatlPrefs lets the agent (or its parent/region) reweight its
	// preferences after the trade graph is built but before resolution.
	// prefs maps (request id, bid id) to the current preference; the
	// method mutates it in place.
	AdjustMatlPrefs(prefs map[[2]int]float64)
	// GetMatlTrades asks the bidder to produce actual resources for each
	// accepted trade it won, appending one TradeResponse per trade.
	GetMatlTrades(trades []Trade, responses *[]TradeResponse) error
	// AcceptMatlTrades delivers the produced resources to the requester.
	AcceptMatlTrades(responses []TradeResponse) error
}
