package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyclus/fuelsim/internal/composition"
	"github.com/cyclus/fuelsim/internal/decay"
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/nuclide"
	"github.com/cyclus/fuelsim/internal/record"
	"github.com/cyclus/fuelsim/internal/record/memorybackend"
	"github.com/cyclus/fuelsim/internal/resource"
	"github.com/cyclus/fuelsim/internal/trader"
)

// fakeRequester always asks for `want` kg of `commod` and accepts whatever
// it is handed.
type fakeRequester struct {
	id       engid.ID
	commod   string
	want     float64
	exemplar *resource.Material
	accepted []trader.TradeResponse
}

func (f *fakeRequester) GetMatlRequests() []trader.RequestPortfolio {
	return []trader.RequestPortfolio{{
		Requester: f.id,
		Requests: []trader.Request{{
			Requester: f.id, Commodity: f.commod, Exemplar: f.exemplar, Qty: f.want, Preference: 1,
		}},
	}}
}
func (f *fakeRequester) GetMatlBids(map[string][]trader.Request) []trader.BidPortfolio { return nil }
func (f *fakeRequester) AdjustMatlPrefs(map[[2]int]float64)                            {}
func (f *fakeRequester) GetMatlTrades([]trader.Trade, *[]trader.TradeResponse) error   { return nil }
func (f *fakeRequester) AcceptMatlTrades(responses []trader.TradeResponse) error {
	f.accepted = append(f.accepted, responses...)
	return nil
}

// fakeBidder offers exactly `have` kg of `commod`, split off a fixed
// inventory material, for any request it sees.
type fakeBidder struct {
	id       engid.ID
	commod   string
	have     float64
	factory  *resource.MaterialFactory
	src      *resource.Material
}

func (f *fakeBidder) GetMatlRequests() []trader.RequestPortfolio { return nil }
func (f *fakeBidder) GetMatlBids(commodReqs map[string][]trader.Request) []trader.BidPortfolio {
	reqs := commodReqs[f.commod]
	if len(reqs) == 0 {
		return nil
	}
	var bids []trader.Bid
	for _, r := range reqs {
		bids = append(bids, trader.Bid{Bidder: f.id, For: r, Exemplar: f.src, Qty: f.have})
	}
	return []trader.BidPortfolio{{Bidder: f.id, Bids: bids}}
}
func (f *fakeBidder) AdjustMatlPrefs(map[[2]int]float64) {}
func (f *fakeBidder) GetMatlTrades(trades []trader.Trade, responses *[]trader.TradeResponse) error {
	for _, tr := range trades {
		piece, err := f.src.ExtractQty(tr.Qty)
		if err != nil {
			return err
		}
		*responses = append(*responses, trader.TradeResponse{Trade: tr, Resource: piece})
	}
	return nil
}
func (f *fakeBidder) AcceptMatlTrades([]trader.TradeResponse) error { return nil }

func testFactory(t *testing.T) *resource.MaterialFactory {
	t.Helper()
	mt := nuclide.DefaultTable()
	return &resource.MaterialFactory{
		Reg:   resource.NewRegistry(),
		MT:    mt,
		Arena: composition.NewArena(decay.NewSolver(), mt),
	}
}

func natU(t *testing.T, mt nuclide.MassTable) *composition.Composition {
	t.Helper()
	u235, _ := nuclide.FromElemMass("U", 235)
	u238, _ := nuclide.FromElemMass("U", 238)
	c, err := composition.CreateFromMass(map[nuclide.ID]float64{u235: 0.007, u238: 0.993}, mt)
	require.NoError(t, err)
	return c
}

func TestResolveMatchesSingleRequestToSufficientBid(t *testing.T) {
	f := testFactory(t)
	comp := natU(t, f.MT)
	src, err := f.Create(1, 100, comp, 0)
	require.NoError(t, err)

	requester := &fakeRequester{id: 10, commod: "enriched-u", want: 5, exemplar: src}
	bidder := &fakeBidder{id: 20, commod: "enriched-u", have: 100, factory: f, src: src}

	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	var txIDs engid.Counter
	var errs []error
	ex := New(DefaultPreference(f.MT), rec, &txIDs, func(id engid.ID, phase string, err error) {
		errs = append(errs, err)
	})
	ex.Register(requester.id, requester)
	ex.Register(bidder.id, bidder)

	require.NoError(t, ex.Resolve(0))
	require.Empty(t, errs)
	require.Len(t, requester.accepted, 1)
	require.InDelta(t, 5.0, requester.accepted[0].Resource.Quantity(), 1e-9)
	require.InDelta(t, 95.0, src.Quantity(), 1e-9)
}

func TestResolveProducesNoTradesWhenNoBidders(t *testing.T) {
	f := testFactory(t)
	comp := natU(t, f.MT)
	src, err := f.Create(1, 10, comp, 0)
	require.NoError(t, err)

	requester := &fakeRequester{id: 10, commod: "enriched-u", want: 5, exemplar: src}
	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	var txIDs engid.Counter
	ex := New(DefaultPreference(f.MT), rec, &txIDs, nil)
	ex.Register(requester.id, requester)

	require.NoError(t, ex.Resolve(0))
	require.Empty(t, requester.accepted)
}

func TestResolveSplitsAcrossTwoBidders(t *testing.T) {
	f := testFactory(t)
	comp := natU(t, f.MT)
	src1, err := f.Create(1, 3, comp, 0)
	require.NoError(t, err)
	src2, err := f.Create(1, 10, comp, 0)
	require.NoError(t, err)

	requester := &fakeRequester{id: 10, commod: "enriched-u", want: 8, exemplar: src1}
	bidderA := &fakeBidder{id: 20, commod: "enriched-u", have: 3, factory: f, src: src1}
	bidderB := &fakeBidder{id: 21, commod: "enriched-u", have: 10, factory: f, src: src2}

	rec := record.NewRecorder(0)
	rec.RegisterBackend(memorybackend.New())
	var txIDs engid.Counter
	ex := New(DefaultPreference(f.MT), rec, &txIDs, nil)
	ex.Register(requester.id, requester)
	ex.Register(bidderA.id, bidderA)
	ex.Register(bidderB.id, bidderB)

	require.NoError(t, ex.Resolve(0))
	var total float64
	for _, resp := range requester.accepted {
		total += resp.Resource.Quantity()
	}
	require.InDelta(t, 8.0, total, 1e-9)
}
