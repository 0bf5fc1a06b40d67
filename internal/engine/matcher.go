package engine

import (
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
)

// PlaceOrder registers an order, matches it against the opposite side,
// and rests any unfilled limit remainder on its own side. It returns the
// trades produced by this call, in execution order.
//
// Matching walks the opposite side best price first and, within a price,
// earliest first. Every trade executes at the resting order's price. The
// walk stops at the first resting order the incoming limit does not cross.
// A market order trades with whatever is resting and never rests itself;
// an unfilled remainder keeps its ACTIVE or PARTIALLY_FILLED status, so it
// still counts as active and can be cancelled by id.
//
// The order must be active and its id unused on this book; otherwise an
// error wrapping domain.ErrInvalidOrder (or domain.ErrDuplicateOrder) is
// returned and the book is untouched.
func (ob *OrderBook) PlaceOrder(order *domain.Order) ([]domain.Trade, error) {
	if order == nil {
		return nil, fmt.Errorf("%w: nil order", domain.ErrInvalidOrder)
	}

	ob.mu.Lock()
	defer ob.mu.Unlock()

	if !order.IsActive() {
		return nil, fmt.Errorf("%w: order %s is %s", domain.ErrInvalidOrder, order.ID(), order.Status())
	}
	if err := ob.orders.Create(order); err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID(), err)
	}

	trades := ob.match(order)

	if order.IsActive() && order.Type() == domain.OrderTypeLimit {
		ob.insert(order)
	}

	// Exhausted resting orders are pruned after the pass, never mid-walk.
	ob.prune()
	ob.refreshLevels()

	ob.logger.Debug("order placed",
		slog.String("order_id", order.ID()),
		slog.String("trader_id", order.TraderID()),
		slog.String("side", string(order.Side())),
		slog.String("type", string(order.Type())),
		slog.String("quantity", order.Quantity().String()),
		slog.String("status", string(order.Status())),
		slog.Int("trades", len(trades)),
	)

	return trades, nil
}

// match runs the matching pass for an incoming order against the
// opposite side. The caller holds the write lock.
func (ob *OrderBook) match(order *domain.Order) []domain.Trade {
	trades := make([]domain.Trade, 0)
	opposite := ob.side(order.Side().Opposite())

	opposite.Ascend(func(entry OrderBookEntry) bool {
		if !order.IsActive() {
			return false
		}
		resting := entry.Order
		if !resting.IsActive() {
			return true
		}
		if !crosses(order, entry.Price) {
			return false
		}

		qty := decimal.Min(order.RemainingQuantity(), resting.RemainingQuantity())
		mustSucceed(order.Fill(qty))
		mustSucceed(resting.Fill(qty))

		trade := newTrade(order, resting, entry.Price, qty)
		ob.trades.Append(trade)
		trades = append(trades, trade)

		ob.logger.Debug("trade executed",
			slog.String("buy_order_id", trade.BuyOrderID),
			slog.String("sell_order_id", trade.SellOrderID),
			slog.String("price", trade.Price.String()),
			slog.String("quantity", trade.Quantity.String()),
		)
		return true
	})

	return trades
}

// crosses reports whether the incoming order may trade at restingPrice.
// Market orders always cross.
func crosses(order *domain.Order, restingPrice decimal.Decimal) bool {
	limit, ok := order.Price()
	if !ok || order.Type() == domain.OrderTypeMarket {
		return true
	}
	if order.Side() == domain.SideBuy {
		return limit.GreaterThanOrEqual(restingPrice)
	}
	return limit.LessThanOrEqual(restingPrice)
}

func newTrade(taker, maker *domain.Order, price, qty decimal.Decimal) domain.Trade {
	buy, sell := taker, maker
	if taker.Side() == domain.SideSell {
		buy, sell = maker, taker
	}
	return domain.Trade{
		BuyOrderID:    buy.ID(),
		SellOrderID:   sell.ID(),
		BuyerID:       buy.TraderID(),
		SellerID:      sell.TraderID(),
		AggressorSide: taker.Side(),
		Price:         price,
		Quantity:      qty,
		Timestamp:     taker.Timestamp(),
	}
}

// mustSucceed panics on fills and cancels the engine has already
// validated. A failure here means the book's invariants are broken.
func mustSucceed(err error) {
	if err != nil {
		panic(fmt.Sprintf("engine: order book invariant violated: %v", err))
	}
}

// CancelOrder cancels an active order and takes it off the book. It
// returns false if the id is unknown or the order is already filled or
// cancelled. Trades the order already took part in are unaffected.
func (ob *OrderBook) CancelOrder(orderID string) bool {
	ob.mu.Lock()
	defer ob.mu.Unlock()

	order, err := ob.orders.Get(orderID)
	if err != nil {
		return false
	}
	if err := order.Cancel(); err != nil {
		return false
	}

	ob.remove(orderID)
	ob.refreshLevels()

	ob.logger.Debug("order cancelled",
		slog.String("order_id", orderID),
		slog.String("filled_quantity", order.FilledQuantity().String()),
	)
	return true
}

// QuotePriceLevel is one price level consumed by a simulated market order.
type QuotePriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	Side              domain.Side       `json:"side"`
	QuantityRequested decimal.Decimal   `json:"quantity_requested"`
	QuantityAvailable decimal.Decimal   `json:"quantity_available"`
	FullyFillable     bool              `json:"fully_fillable"`
	EstimatedAvgPrice *decimal.Decimal  `json:"estimated_average_price"` // nil when no liquidity
	EstimatedTotal    *decimal.Decimal  `json:"estimated_total"`         // nil when no liquidity
	PriceLevels       []QuotePriceLevel `json:"price_levels"`
}

// Quote performs a read-only walk of the side a market order of the given
// side would take from, estimating its fill without placing it.
func (ob *OrderBook) Quote(side domain.Side, quantity decimal.Decimal) QuoteResult {
	ob.mu.RLock()
	defer ob.mu.RUnlock()

	result := QuoteResult{
		Side:              side,
		QuantityRequested: quantity,
		QuantityAvailable: decimal.Zero,
		PriceLevels:       make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	totalCost := decimal.Zero

	ob.side(side.Opposite()).Ascend(func(entry OrderBookEntry) bool {
		if !remaining.IsPositive() {
			return false
		}
		fillQty := decimal.Min(entry.Order.RemainingQuantity(), remaining)
		totalCost = totalCost.Add(entry.Price.Mul(fillQty))
		result.QuantityAvailable = result.QuantityAvailable.Add(fillQty)
		remaining = remaining.Sub(fillQty)

		if n := len(result.PriceLevels); n > 0 && result.PriceLevels[n-1].Price.Equal(entry.Price) {
			result.PriceLevels[n-1].Quantity = result.PriceLevels[n-1].Quantity.Add(fillQty)
		} else {
			result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
				Price:    entry.Price,
				Quantity: fillQty,
			})
		}
		return true
	})

	if result.QuantityAvailable.IsPositive() {
		avg := totalCost.Div(result.QuantityAvailable)
		result.EstimatedAvgPrice = &avg
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable.GreaterThanOrEqual(quantity)

	return result
}
