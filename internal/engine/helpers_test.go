package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
)

var baseTime = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// limitAt creates a limit order with an explicit id and timestamp offset
// so time priority is deterministic.
func limitAt(t *testing.T, id, trader string, side domain.Side, price, qty string, offset int) *domain.Order {
	t.Helper()
	p := d(price)
	o, err := domain.NewOrder(trader, side, domain.OrderTypeLimit, d(qty), &p,
		domain.WithID(id), domain.WithTimestamp(baseTime.Add(time.Duration(offset)*time.Millisecond)))
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func marketAt(t *testing.T, id, trader string, side domain.Side, qty string, offset int) *domain.Order {
	t.Helper()
	o, err := domain.NewOrder(trader, side, domain.OrderTypeMarket, d(qty), nil,
		domain.WithID(id), domain.WithTimestamp(baseTime.Add(time.Duration(offset)*time.Millisecond)))
	if err != nil {
		t.Fatalf("NewOrder(%s): %v", id, err)
	}
	return o
}

func mustPlace(t *testing.T, ob *OrderBook, o *domain.Order) []domain.Trade {
	t.Helper()
	trades, err := ob.PlaceOrder(o)
	if err != nil {
		t.Fatalf("PlaceOrder(%s): %v", o.ID(), err)
	}
	return trades
}
