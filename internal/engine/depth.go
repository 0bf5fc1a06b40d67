package engine

import (
	"github.com/shopspring/decimal"
)

// Depth is the top of the book aggregated by price level.
type Depth struct {
	Bids     []PriceLevel     `json:"bids"`
	Asks     []PriceLevel     `json:"asks"`
	Spread   *decimal.Decimal `json:"spread"`
	MidPrice *decimal.Decimal `json:"mid_price"`
}

// Stats summarizes the book. Trades stay counted even if one of their
// orders is later cancelled.
type Stats struct {
	TotalOrders  int              `json:"total_orders"`
	ActiveOrders int              `json:"active_orders"`
	BuyOrders    int              `json:"buy_orders"`
	SellOrders   int              `json:"sell_orders"`
	TotalTrades  int              `json:"total_trades"`
	TotalVolume  decimal.Decimal  `json:"total_volume"`
	BestBid      *decimal.Decimal `json:"best_bid"`
	BestAsk      *decimal.Decimal `json:"best_ask"`
	Spread       *decimal.Decimal `json:"spread"`
	MidPrice     *decimal.Decimal `json:"mid_price"`
}

var two = decimal.NewFromInt(2)

// BestBid returns the highest resting buy price.
func (ob *OrderBook) BestBid() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestBid()
}

// BestAsk returns the lowest resting sell price.
func (ob *OrderBook) BestAsk() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.bestAsk()
}

// Spread returns best ask minus best bid; false if either side is empty.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.spread()
}

// MidPrice returns the midpoint of best bid and best ask; false if either
// side is empty.
func (ob *OrderBook) MidPrice() (decimal.Decimal, bool) {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return ob.midPrice()
}

// Depth returns up to levels aggregated price levels per side, best
// first, together with the spread and mid price.
func (ob *OrderBook) Depth(levels int) Depth {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	d := Depth{
		Bids: topLevels(ob.buyLevels, levels),
		Asks: topLevels(ob.sellLevels, levels),
	}
	if s, ok := ob.spread(); ok {
		d.Spread = &s
	}
	if m, ok := ob.midPrice(); ok {
		d.MidPrice = &m
	}
	return d
}

// Stats returns order counts, trade totals, and top-of-book prices.
func (ob *OrderBook) Stats() Stats {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	st := Stats{
		TotalOrders:  ob.orders.Len(),
		ActiveOrders: ob.orders.CountActive(),
		BuyOrders:    ob.buys.Len(),
		SellOrders:   ob.sells.Len(),
		TotalTrades:  ob.trades.Len(),
		TotalVolume:  ob.trades.Volume(),
	}
	if v, ok := ob.bestBid(); ok {
		st.BestBid = &v
	}
	if v, ok := ob.bestAsk(); ok {
		st.BestAsk = &v
	}
	if v, ok := ob.spread(); ok {
		st.Spread = &v
	}
	if v, ok := ob.midPrice(); ok {
		st.MidPrice = &v
	}
	return st
}

func (ob *OrderBook) bestBid() (decimal.Decimal, bool) {
	e, ok := ob.buys.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.Price, true
}

func (ob *OrderBook) bestAsk() (decimal.Decimal, bool) {
	e, ok := ob.sells.Min()
	if !ok {
		return decimal.Decimal{}, false
	}
	return e.Price, true
}

func (ob *OrderBook) spread() (decimal.Decimal, bool) {
	bid, okBid := ob.bestBid()
	ask, okAsk := ob.bestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return ask.Sub(bid), true
}

func (ob *OrderBook) midPrice() (decimal.Decimal, bool) {
	bid, okBid := ob.bestBid()
	ask, okAsk := ob.bestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Add(ask).Div(two), true
}

// topLevels returns a copy of at most n leading levels.
func topLevels(levels []PriceLevel, n int) []PriceLevel {
	if n <= 0 {
		return []PriceLevel{}
	}
	if n > len(levels) {
		n = len(levels)
	}
	out := make([]PriceLevel, n)
	copy(out, levels[:n])
	return out
}
