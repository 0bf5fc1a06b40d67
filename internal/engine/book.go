package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/store"
)

// OrderBookEntry represents a single order resting on the book.
type OrderBookEntry struct {
	Price     decimal.Decimal
	Timestamp time.Time
	Sequence  uint64 // arrival order on this book
	Order     *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price      decimal.Decimal `json:"price"`
	Quantity   decimal.Decimal `json:"quantity"`
	OrderCount int             `json:"order_count"`
}

// buyLess defines ordering for the buy side: price descending, then
// timestamp ascending, then arrival ascending. Min() returns the best bid.
func buyLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}

// sellLess defines ordering for the sell side: price ascending, then
// timestamp ascending, then arrival ascending. Min() returns the best ask.
func sellLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Sequence < b.Sequence
}

// OrderBook is a price-time priority limit order book for a single
// instrument. Both sides are B-trees of active orders; an id index and an
// append-only trade log sit alongside them.
//
// All mutating operations hold the write lock for their whole duration,
// so no caller ever observes a crossed book or a half-applied match.
type OrderBook struct {
	symbol string
	logger *slog.Logger

	mu      sync.RWMutex
	buys    *btree.BTreeG[OrderBookEntry]
	sells   *btree.BTreeG[OrderBookEntry]
	resting map[string]OrderBookEntry // order_id → entry, resting orders only
	seq     uint64

	orders *store.OrderStore
	trades *store.TradeStore

	buyLevels  []PriceLevel
	sellLevels []PriceLevel
}

const btreeDegree = 32

// NewOrderBook creates an empty book. A nil logger means slog.Default().
func NewOrderBook(symbol string, logger *slog.Logger) *OrderBook {
	if logger == nil {
		logger = slog.Default()
	}
	ob := &OrderBook{
		symbol:  symbol,
		logger:  logger.With(slog.String("symbol", symbol)),
		buys:    btree.NewG[OrderBookEntry](btreeDegree, buyLess),
		sells:   btree.NewG[OrderBookEntry](btreeDegree, sellLess),
		resting: make(map[string]OrderBookEntry),
		orders:  store.NewOrderStore(),
		trades:  store.NewTradeStore(),
	}
	ob.refreshLevels()
	return ob
}

// Symbol returns the instrument this book trades.
func (ob *OrderBook) Symbol() string {
	return ob.symbol
}

// side returns the tree holding resting orders of the given side.
func (ob *OrderBook) side(s domain.Side) *btree.BTreeG[OrderBookEntry] {
	if s == domain.SideBuy {
		return ob.buys
	}
	return ob.sells
}

// insert rests an active limit order on its own side.
func (ob *OrderBook) insert(o *domain.Order) {
	price, _ := o.Price()
	ob.seq++
	entry := OrderBookEntry{
		Price:     price,
		Timestamp: o.Timestamp(),
		Sequence:  ob.seq,
		Order:     o,
	}
	ob.side(o.Side()).ReplaceOrInsert(entry)
	ob.resting[o.ID()] = entry
}

// remove deletes a resting order by id. Unknown ids are ignored.
func (ob *OrderBook) remove(orderID string) {
	entry, ok := ob.resting[orderID]
	if !ok {
		return
	}
	delete(ob.resting, orderID)
	ob.side(entry.Order.Side()).Delete(entry)
}

// prune drops every inactive order from both sides.
func (ob *OrderBook) prune() {
	var stale []string
	collect := func(e OrderBookEntry) bool {
		if !e.Order.IsActive() {
			stale = append(stale, e.Order.ID())
		}
		return true
	}
	ob.buys.Ascend(collect)
	ob.sells.Ascend(collect)
	for _, id := range stale {
		ob.remove(id)
	}
}

// refreshLevels recomputes aggregated depth for both sides. Each side is
// already in priority order, so the levels come out sorted best first.
func (ob *OrderBook) refreshLevels() {
	ob.buyLevels = aggregate(ob.buys)
	ob.sellLevels = aggregate(ob.sells)
}

func aggregate(tree *btree.BTreeG[OrderBookEntry]) []PriceLevel {
	levels := make([]PriceLevel, 0)
	tree.Ascend(func(entry OrderBookEntry) bool {
		remaining := entry.Order.RemainingQuantity()
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(entry.Price) {
			levels[n-1].Quantity = levels[n-1].Quantity.Add(remaining)
			levels[n-1].OrderCount++
			return true
		}
		levels = append(levels, PriceLevel{
			Price:      entry.Price,
			Quantity:   remaining,
			OrderCount: 1,
		})
		return true
	})
	return levels
}

// Order looks up any order this book has accepted, resting or not.
func (ob *OrderBook) Order(orderID string) (*domain.Order, error) {
	return ob.orders.Get(orderID)
}

// TraderOrders returns up to limit of a trader's orders, newest first,
// and how many matched in total.
func (ob *OrderBook) TraderOrders(traderID string, status *domain.OrderStatus, limit int) ([]*domain.Order, int) {
	return ob.orders.ListByTrader(traderID, status, limit)
}

// Trades returns the full trade log in execution order.
func (ob *OrderBook) Trades() []domain.Trade {
	return ob.trades.All()
}

// LastTrade returns the most recent trade, if any.
func (ob *OrderBook) LastTrade() (domain.Trade, bool) {
	return ob.trades.Last()
}

// BuyOrders returns snapshots of resting buy orders in priority order.
func (ob *OrderBook) BuyOrders() []domain.OrderSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return snapshots(ob.buys)
}

// SellOrders returns snapshots of resting sell orders in priority order.
func (ob *OrderBook) SellOrders() []domain.OrderSnapshot {
	ob.mu.RLock()
	defer ob.mu.RUnlock()
	return snapshots(ob.sells)
}

func snapshots(tree *btree.BTreeG[OrderBookEntry]) []domain.OrderSnapshot {
	out := make([]domain.OrderSnapshot, 0, tree.Len())
	tree.Ascend(func(e OrderBookEntry) bool {
		out = append(out, e.Order.Snapshot())
		return true
	})
	return out
}

// Clear empties both sides, the order index, and the trade log.
func (ob *OrderBook) Clear() {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	ob.buys.Clear(false)
	ob.sells.Clear(false)
	ob.resting = make(map[string]OrderBookEntry)
	ob.seq = 0
	ob.orders.Reset()
	ob.trades.Reset()
	ob.refreshLevels()
}
