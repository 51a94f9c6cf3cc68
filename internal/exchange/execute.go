package exchange

import (
	"github.com/cyclus/fuelsim/internal/engid"
	"github.com/cyclus/fuelsim/internal/trader"
)

// execute runs phase 5 of spec.md §4.8: for each bidder's share of the
// settled trades, call GetMatlTrades to produce resources, then deliver
// them to each requester via AcceptMatlTrades, recording a Transactions
// row per trade that actually completes and an Errors row (via onError)
// per failure. A bidder or requester that panics, returns the wrong
// quantity, or refuses delivery only nulls its own trade (spec.md §4.8's
// failure semantics).
func (e *Exchange) execute(t int64, settled []settledTrade) {
	if len(settled) == 0 {
		return
	}

	tradersByID := make(map[engid.ID]trader.Trader, len(e.participants))
	for _, p := range e.participants {
		tradersByID[p.id] = p.t
	}

	byBidder := make(map[engid.ID][]settledTrade)
	for _, s := range settled {
		byBidder[s.bid.bidder] = append(byBidder[s.bid.bidder], s)
	}

	for bidder, trades := range byBidder {
		bidderTrader := tradersByID[bidder]
		if bidderTrader == nil {
			continue
		}
		publicTrades := make([]trader.Trade, len(trades))
		for i, s := range trades {
			publicTrades[i] = trader.Trade{Request: s.req.req, Bid: s.bid.bid, Qty: s.qty}
		}

		responses := e.safeGetTrades(bidder, bidderTrader, publicTrades)

		byRequester := make(map[engid.ID][]trader.TradeResponse)
		for _, resp := range responses {
			if resp.Resource == nil || quantityMismatch(resp) {
				e.reportFailure(bidder, "execute", "bidder returned mismatched resource for trade")
				continue
			}
			byRequester[resp.Trade.Request.Requester] = append(byRequester[resp.Trade.Request.Requester], resp)
		}

		for requester, resps := range byRequester {
			requesterTrader := tradersByID[requester]
			if requesterTrader == nil {
				continue
			}
			if err := e.safeAccept(requester, requesterTrader, resps); err != nil {
				e.reportFailure(requester, "execute", "requester refused delivery: "+err.Error())
				continue
			}
			for _, resp := range resps {
				e.recordTransaction(t, resp)
				e.onTrade(resp)
			}
		}
	}
}

func quantityMismatch(resp trader.TradeResponse) bool {
	const tol = 1e-9
	want := resp.Trade.Qty
	got := resp.Resource.Quantity()
	if got < want-tol || got > want+tol {
		return true
	}
	return false
}

func (e *Exchange) safeGetTrades(id engid.ID, t trader.Trader, trades []trader.Trade) (responses []trader.TradeResponse) {
	defer func() {
		if r := recover(); r != nil {
			e.reportPanic(id, "execute", r)
			responses = nil
		}
	}()
	var out []trader.TradeResponse
	if err := t.GetMatlTrades(trades, &out); err != nil {
		e.reportFailure(id, "execute", err.Error())
		return nil
	}
	return out
}

func (e *Exchange) safeAccept(id engid.ID, t trader.Trader, responses []trader.TradeResponse) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.reportPanic(id, "execute", r)
			err = nil // panics are already reported; don't double-report as a refusal
		}
	}()
	return t.AcceptMatlTrades(responses)
}

func (e *Exchange) reportFailure(id engid.ID, phase, msg string) {
	if e.onError == nil {
		return
	}
	e.onError(id, phase, &tradeFailure{msg: msg})
}

// tradeFailure is a lightweight error for execute-phase failures that do
// not originate from a recovered panic (mismatched quantity, refusal).
type tradeFailure struct{ msg string }

func (f *tradeFailure) Error() string { return f.msg }

func (e *Exchange) recordTransaction(t int64, resp trader.TradeResponse) {
	if e.rec == nil {
		return
	}
	id := e.txIDs.Next()
	e.rec.NewDatum("Transactions").
		AddVal("TransactionId", int64(id)).
		AddVal("SenderId", int64(resp.Trade.Bid.Bidder)).
		AddVal("ReceiverId", int64(resp.Trade.Request.Requester)).
		AddVal("ResourceId", int64(resp.Resource.ID())).
		AddVal("Commodity", resp.Trade.Request.Commodity).
		AddVal("Price", resp.Trade.Price).
		AddVal("Time", t).
		Record()
}
