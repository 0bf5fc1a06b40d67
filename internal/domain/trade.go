package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a single execution between a buy order and a sell order. It is
// created by the matching engine and never modified afterwards.
type Trade struct {
	BuyOrderID    string
	SellOrderID   string
	BuyerID       string
	SellerID      string
	AggressorSide Side // side of the incoming (taker) order
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	Timestamp     time.Time
}

// Notional returns price × quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(t.Quantity)
}

// TradeSnapshot is the plain-data form of a trade.
type TradeSnapshot struct {
	BuyOrderID  string          `json:"buy_order_id"`
	SellOrderID string          `json:"sell_order_id"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	Aggressor   Side            `json:"aggressor"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Timestamp   time.Time       `json:"timestamp"`
}

func (t Trade) Snapshot() TradeSnapshot {
	return TradeSnapshot{
		BuyOrderID:  t.BuyOrderID,
		SellOrderID: t.SellOrderID,
		BuyerID:     t.BuyerID,
		SellerID:    t.SellerID,
		Aggressor:   t.AggressorSide,
		Price:       t.Price,
		Quantity:    t.Quantity,
		Timestamp:   t.Timestamp,
	}
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade(%s @ $%s)", t.Quantity.StringFixed(2), t.Price.StringFixed(2))
}
