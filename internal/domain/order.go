package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side an order of this side matches against.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether s is one of the known sides.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseSide converts a case-insensitive string into a Side.
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(s)))
	if !side.Valid() {
		return "", fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, s)
	}
	return side, nil
}

// OrderType distinguishes limit orders from market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// Valid reports whether t is one of the known order types.
func (t OrderType) Valid() bool {
	return t == OrderTypeLimit || t == OrderTypeMarket
}

// ParseOrderType converts a case-insensitive string into an OrderType.
func ParseOrderType(s string) (OrderType, error) {
	t := OrderType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, s)
	}
	return t, nil
}

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusActive          OrderStatus = "ACTIVE"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further fills or cancels are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusFilled || s == OrderStatusCancelled
}

// ParseOrderStatus converts a case-insensitive string into an OrderStatus.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case OrderStatusActive, OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusCancelled:
		return st, nil
	}
	return "", &ValidationError{Field: "status", Message: fmt.Sprintf("unknown order status %q", s)}
}

// Order is a single buy or sell instruction. Identity, side, type, price
// and quantity are fixed at creation; only the fill state and status
// change, through Fill and Cancel.
//
// An Order is not safe for concurrent mutation. Once placed, the owning
// OrderBook serializes all changes to it.
type Order struct {
	id        string
	traderID  string
	side      Side
	orderType OrderType
	quantity  decimal.Decimal
	price     decimal.Decimal
	hasPrice  bool
	filled    decimal.Decimal
	status    OrderStatus
	timestamp time.Time
}

// OrderOption customizes an order at creation.
type OrderOption func(*Order)

// WithID uses a caller-supplied order id instead of a generated UUID.
func WithID(id string) OrderOption {
	return func(o *Order) {
		o.id = id
	}
}

// WithTimestamp overrides the creation time, which decides time priority
// on the book.
func WithTimestamp(ts time.Time) OrderOption {
	return func(o *Order) {
		o.timestamp = ts
	}
}

// NewOrder validates its arguments and creates an active order. A price
// supplied for a market order is dropped. Validation failures wrap
// ErrInvalidOrder.
func NewOrder(traderID string, side Side, orderType OrderType, quantity decimal.Decimal, price *decimal.Decimal, opts ...OrderOption) (*Order, error) {
	if !side.Valid() {
		return nil, fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, side)
	}
	if !orderType.Valid() {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, orderType)
	}

	if orderType == OrderTypeMarket {
		price = nil
	}
	if orderType == OrderTypeLimit && price == nil {
		return nil, fmt.Errorf("%w: limit orders must have a price", ErrInvalidOrder)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrder, quantity)
	}
	if price != nil && !price.IsPositive() {
		return nil, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, price)
	}

	o := &Order{
		traderID:  traderID,
		side:      side,
		orderType: orderType,
		quantity:  quantity,
		filled:    decimal.Zero,
		status:    OrderStatusActive,
	}
	if price != nil {
		o.price = *price
		o.hasPrice = true
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.id == "" {
		o.id = uuid.New().String()
	}
	if o.timestamp.IsZero() {
		o.timestamp = time.Now()
	}
	return o, nil
}

func (o *Order) ID() string           { return o.id }
func (o *Order) TraderID() string     { return o.traderID }
func (o *Order) Side() Side           { return o.side }
func (o *Order) Type() OrderType      { return o.orderType }
func (o *Order) Status() OrderStatus  { return o.status }
func (o *Order) Timestamp() time.Time { return o.timestamp }

// Quantity returns the original order size.
func (o *Order) Quantity() decimal.Decimal { return o.quantity }

// FilledQuantity returns how much of the order has executed so far.
func (o *Order) FilledQuantity() decimal.Decimal { return o.filled }

// Price returns the limit price. The second value is false for market
// orders, which carry no price.
func (o *Order) Price() (decimal.Decimal, bool) {
	return o.price, o.hasPrice
}

// RemainingQuantity returns quantity minus filled quantity.
func (o *Order) RemainingQuantity() decimal.Decimal {
	return o.quantity.Sub(o.filled)
}

// IsActive reports whether the order can still trade.
func (o *Order) IsActive() bool {
	return o.status == OrderStatusActive || o.status == OrderStatusPartiallyFilled
}

// Fill executes qty against the order. It fails with ErrInvalidFill when
// the order is not active, qty is not positive, or qty exceeds the
// remaining quantity; in that case the order is left unchanged.
func (o *Order) Fill(qty decimal.Decimal) error {
	if !o.IsActive() {
		return fmt.Errorf("%w: cannot fill %s order %s", ErrInvalidFill, o.status, o.id)
	}
	if !qty.IsPositive() {
		return fmt.Errorf("%w: fill quantity must be positive, got %s", ErrInvalidFill, qty)
	}
	remaining := o.RemainingQuantity()
	if qty.GreaterThan(remaining) {
		return fmt.Errorf("%w: fill quantity %s exceeds remaining %s", ErrInvalidFill, qty, remaining)
	}

	o.filled = o.filled.Add(qty)
	if o.filled.GreaterThanOrEqual(o.quantity) {
		o.status = OrderStatusFilled
	} else {
		o.status = OrderStatusPartiallyFilled
	}
	return nil
}

// Cancel marks the order cancelled, keeping whatever has already filled.
// It fails with ErrInvalidCancel on a filled or cancelled order.
func (o *Order) Cancel() error {
	if o.status.Terminal() {
		return fmt.Errorf("%w: cannot cancel %s order %s", ErrInvalidCancel, o.status, o.id)
	}
	o.status = OrderStatusCancelled
	return nil
}

// OrderSnapshot is a plain-data copy of an order for logging and output.
type OrderSnapshot struct {
	OrderID           string           `json:"order_id"`
	TraderID          string           `json:"trader_id"`
	Side              Side             `json:"side"`
	OrderType         OrderType        `json:"order_type"`
	Price             *decimal.Decimal `json:"price"`
	Quantity          decimal.Decimal  `json:"quantity"`
	FilledQuantity    decimal.Decimal  `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal  `json:"remaining_quantity"`
	Status            OrderStatus      `json:"status"`
	Timestamp         time.Time        `json:"timestamp"`
}

// Snapshot copies the order's current state.
func (o *Order) Snapshot() OrderSnapshot {
	s := OrderSnapshot{
		OrderID:           o.id,
		TraderID:          o.traderID,
		Side:              o.side,
		OrderType:         o.orderType,
		Quantity:          o.quantity,
		FilledQuantity:    o.filled,
		RemainingQuantity: o.RemainingQuantity(),
		Status:            o.status,
		Timestamp:         o.timestamp,
	}
	if o.hasPrice {
		p := o.price
		s.Price = &p
	}
	return s
}

func (o *Order) String() string {
	price := "MARKET"
	if o.hasPrice {
		price = "$" + o.price.StringFixed(2)
	}
	id := o.id
	if len(id) > 8 {
		id = id[:8] + "..."
	}
	return fmt.Sprintf("Order(%s %s %s @ %s, filled=%s, %s)",
		id, o.side, o.quantity.StringFixed(2), price, o.filled.StringFixed(2), o.status)
}
