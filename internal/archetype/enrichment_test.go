package archetype

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/configcodec"
	"github.com/cyclus/fuelsim/internal/engine"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/trader"
)

func newEnrichment(t *testing.T, ctx *engine.Context, cfg EnrichmentConfig) *Enrichment {
	t.Helper()
	blob, err := configcodec.Marshal(cfg)
	require.NoError(t, err)
	b, err := NewEnrichment(ctx, nextID(), blob)
	require.NoError(t, err)
	return b.(*Enrichment)
}

func assayedMaterial(t *testing.T, mt nuclide.MassTable, qty, u235Frac float64) *resource.Material {
	t.Helper()
	u235, err := nuclide.FromElemMass("U", 235)
	require.NoError(t, err)
	u238, err := nuclide.FromElemMass("U", 238)
	require.NoError(t, err)
	comp, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: u235Frac, u238: 1 - u235Frac}, mt)
	require.NoError(t, err)
	return mustCreateUntracked(t, qty, comp)
}

func mustCreateUntracked(t *testing.T, qty float64, comp *composition.Composition) *resource.Material {
	t.Helper()
	m, err := resource.CreateUntracked(qty, comp)
	require.NoError(t, err)
	return m
}

func feedEnrichment(t *testing.T, e *Enrichment, ctx *engine.Context, qty float64) {
	t.Helper()
	m := assayedMaterial(t, ctx.MassTable(), qty, 0.00711)
	require.NoError(t, e.AcceptMatlTrades([]trader.TradeResponse{{Resource: m}}))
}

func TestEnrichmentRequestsFeedUpToCapacity(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 50})
	reqs := e.GetMatlRequests()
	require.Len(t, reqs, 1)
	require.InDelta(t, 50, reqs[0].Requests[0].Qty, 1e-9)
}

func TestEnrichmentBidsAtRequestedAssay(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})
	feedEnrichment(t, e, ctx, 100)

	exemplar := assayedMaterial(t, ctx.MassTable(), 1, 0.05)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: 5, Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"EnrichedU": {req}})
	require.Len(t, bids, 1)
	require.Len(t, bids[0].Bids, 1)
	require.InDelta(t, 5, bids[0].Bids[0].Qty, 1e-9)
}

func TestEnrichmentFeedConstrainsProductionVolume(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})
	// feedPerProduct at xf=0.00711, xp=0.05, xt=0.002 is ~9.39; with only
	// 10kg feed on hand, production tops out near 10/9.39 ~ 1.065kg.
	feedEnrichment(t, e, ctx, 10)

	exemplar := assayedMaterial(t, ctx.MassTable(), 1, 0.05)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: 5, Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"EnrichedU": {req}})
	require.Len(t, bids, 1)
	require.Less(t, bids[0].Bids[0].Qty, 5.0)
	require.Greater(t, bids[0].Bids[0].Qty, 0.0)
}

func TestEnrichmentSWUCapacityConstrainsProduction(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{
		FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU",
		TailsAssay: 0.002, MaxFeedInventory: 10000, SWUCapacity: 0.5,
	})
	feedEnrichment(t, e, ctx, 10000)

	exemplar := assayedMaterial(t, ctx.MassTable(), 1, 0.05)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: 1000, Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"EnrichedU": {req}})
	require.Len(t, bids, 1)
	require.Less(t, bids[0].Bids[0].Qty, 1000.0)
}

func TestEnrichmentRejectsZeroAssayOffer(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})
	feedEnrichment(t, e, ctx, 100)

	exemplar := assayedMaterial(t, ctx.MassTable(), 1, 0)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: 5, Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"EnrichedU": {req}})
	require.Nil(t, bids)
}

func TestEnrichmentBidsHeldTailsAgainstTailsCommodity(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{
		FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsCommodity: "tails",
		TailsAssay: 0.002, MaxFeedInventory: 1000,
	})
	feedEnrichment(t, e, ctx, 100)
	produceTrade(t, e, 5)
	require.Greater(t, e.TailsInventory(), 0.0)

	exemplar, err := resource.CreateUntracked(1, nil)
	require.NoError(t, err)
	req := trader.Request{Requester: 9, Commodity: "tails", Exemplar: exemplar, Qty: e.TailsInventory(), Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"tails": {req}})
	require.Len(t, bids, 1)
	require.Len(t, bids[0].Bids, 1)
	require.InDelta(t, e.TailsInventory(), bids[0].Bids[0].Qty, 1e-9)
}

func TestEnrichmentWithoutTailsCommodityNeverBidsTails(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})
	feedEnrichment(t, e, ctx, 100)
	produceTrade(t, e, 5)
	require.Greater(t, e.TailsInventory(), 0.0)

	exemplar, err := resource.CreateUntracked(1, nil)
	require.NoError(t, err)
	req := trader.Request{Requester: 9, Commodity: "tails", Exemplar: exemplar, Qty: e.TailsInventory(), Preference: 1}
	bids := e.GetMatlBids(map[string][]trader.Request{"tails": {req}})
	require.Nil(t, bids)
}

func TestEnrichmentTailsTradeDrainsInventory(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{
		FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsCommodity: "tails",
		TailsAssay: 0.002, MaxFeedInventory: 1000,
	})
	feedEnrichment(t, e, ctx, 100)
	produceTrade(t, e, 5)
	tailsQty := e.TailsInventory()
	require.Greater(t, tailsQty, 0.0)

	tailsReq := trader.Request{Requester: 9, Commodity: "tails", Qty: tailsQty}
	trade := trader.Trade{Request: tailsReq, Qty: tailsQty}
	var responses []trader.TradeResponse
	require.NoError(t, e.GetMatlTrades([]trader.Trade{trade}, &responses))
	require.Len(t, responses, 1)
	m, ok := responses[0].Resource.(*resource.Material)
	require.True(t, ok)
	require.InDelta(t, tailsQty, m.Quantity(), 1e-9)
	require.InDelta(t, 0, e.TailsInventory(), 1e-9)
}

// produceTrade runs one product trade of qty through the facility so
// tests can get tails into inventory without re-deriving the SWU math.
func produceTrade(t *testing.T, e *Enrichment, qty float64) {
	t.Helper()
	exemplar := assayedMaterial(t, e.mt, 1, 0.05)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: qty, Preference: 1}
	trade := trader.Trade{Request: req, Qty: qty}
	var responses []trader.TradeResponse
	require.NoError(t, e.GetMatlTrades([]trader.Trade{trade}, &responses))
	require.Len(t, responses, 1)
}

func TestEnrichmentRejectsSubTailsAssayFeed(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})

	pureU238 := assayedMaterial(t, ctx.MassTable(), 10, 0)
	err := e.AcceptMatlTrades([]trader.TradeResponse{{Resource: pureU238}})
	require.Error(t, err)
	require.InDelta(t, 0, e.feed.Quantity(), 1e-12)
}

func TestEnrichmentAcceptsAboveTailsAssayFeed(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})

	natU := assayedMaterial(t, ctx.MassTable(), 10, 0.00711)
	require.NoError(t, e.AcceptMatlTrades([]trader.TradeResponse{{Resource: natU}}))
	require.InDelta(t, 10, e.feed.Quantity(), 1e-9)
}

func TestEnrichmentTradeProducesTailsAndConsumesFeed(t *testing.T) {
	ctx := newTestContext(t)
	e := newEnrichment(t, ctx, EnrichmentConfig{FeedCommodity: "NaturalU", ProductCommodity: "EnrichedU", TailsAssay: 0.002, MaxFeedInventory: 1000})
	feedEnrichment(t, e, ctx, 100)

	exemplar := assayedMaterial(t, ctx.MassTable(), 1, 0.05)
	req := trader.Request{Requester: 9, Commodity: "EnrichedU", Exemplar: exemplar, Qty: 5, Preference: 1}
	trade := trader.Trade{Request: req, Qty: 5}

	var responses []trader.TradeResponse
	require.NoError(t, e.GetMatlTrades([]trader.Trade{trade}, &responses))
	require.Len(t, responses, 1)
	m, ok := responses[0].Resource.(*resource.Material)
	require.True(t, ok)
	require.InDelta(t, 5, m.Quantity(), 1e-9)
	require.Greater(t, e.TailsInventory(), 0.0)
	require.Less(t, e.feed.Quantity(), 100.0)
}
