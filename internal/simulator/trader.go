package simulator

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
)

// Strategy names an order-generation behavior.
type Strategy string

const (
	StrategyRandom      Strategy = "random"
	StrategyMarketMaker Strategy = "market_maker"
	StrategyMomentum    Strategy = "momentum"
)

// Strategies lists every strategy in the order traders cycle through them.
var Strategies = []Strategy{StrategyRandom, StrategyMarketMaker, StrategyMomentum}

// ParseStrategy converts a case-insensitive name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Strategies {
		if st == known {
			return st, nil
		}
	}
	return "", &domain.ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", s)}
}

// MarketView is the read-only market state a trader decides from.
type MarketView interface {
	// ReferencePrice is the mid price, or the last known reference price
	// when one side of the book is empty.
	ReferencePrice() decimal.Decimal
	Spread() (decimal.Decimal, bool)
	Quote(side domain.Side, quantity decimal.Decimal) engine.QuoteResult
}

// Trader generates at most one order per tick. A nil order with a nil
// error means the trader sits the tick out.
type Trader interface {
	ID() string
	Strategy() Strategy
	NextOrder(view MarketView, rng *rand.Rand) (*domain.Order, error)
}

// OrderSizing bounds the orders the random strategy produces.
type OrderSizing struct {
	MinQuantity decimal.Decimal
	MaxQuantity decimal.Decimal
	Volatility  decimal.Decimal // max relative distance of a limit price from the reference
}

// DefaultSizing returns quantities in [0.1, 5] priced within 5% of the
// reference.
func DefaultSizing() OrderSizing {
	return OrderSizing{
		MinQuantity: decimal.RequireFromString("0.1"),
		MaxQuantity: decimal.NewFromInt(5),
		Volatility:  decimal.RequireFromString("0.05"),
	}
}

var (
	one           = decimal.NewFromInt(1)
	four          = decimal.NewFromInt(4)
	defaultSpread = decimal.NewFromInt(1)

	makerMinQty    = decimal.NewFromInt(1)
	makerMaxQty    = decimal.NewFromInt(3)
	momentumMinQty = decimal.RequireFromString("0.5")
	momentumMaxQty = decimal.NewFromInt(2)
)

// NewTrader builds a trader running the given strategy.
func NewTrader(id string, strategy Strategy, sizing OrderSizing) (Trader, error) {
	switch strategy {
	case StrategyRandom:
		return &RandomTrader{id: id, sizing: sizing}, nil
	case StrategyMarketMaker:
		return &MarketMakerTrader{id: id}, nil
	case StrategyMomentum:
		return &MomentumTrader{id: id}, nil
	}
	return nil, &domain.ValidationError{Field: "strategy", Message: fmt.Sprintf("unknown strategy %q", strategy)}
}

// RandomTrader places an order on half of the ticks: a random side, 80%
// limit orders priced around the reference and 20% market orders.
type RandomTrader struct {
	id     string
	sizing OrderSizing
}

func (t *RandomTrader) ID() string         { return t.id }
func (t *RandomTrader) Strategy() Strategy { return StrategyRandom }

func (t *RandomTrader) NextOrder(view MarketView, rng *rand.Rand) (*domain.Order, error) {
	if rng.Float64() > 0.5 {
		return nil, nil
	}

	side := randomSide(rng)
	orderType := domain.OrderTypeLimit
	if rng.Float64() >= 0.8 {
		orderType = domain.OrderTypeMarket
	}

	qty := uniform(rng, t.sizing.MinQuantity, t.sizing.MaxQuantity).Round(2)
	if !qty.IsPositive() {
		qty = t.sizing.MinQuantity
	}

	var price *decimal.Decimal
	if orderType == domain.OrderTypeLimit {
		offset := uniform(rng, t.sizing.Volatility.Neg(), t.sizing.Volatility)
		p := view.ReferencePrice().Mul(one.Add(offset)).Round(2)
		if !p.IsPositive() {
			return nil, nil
		}
		price = &p
	}

	return domain.NewOrder(t.id, side, orderType, qty, price)
}

// MarketMakerTrader quotes a limit order every tick, a quarter of the
// spread away from the reference price.
type MarketMakerTrader struct {
	id string
}

func (t *MarketMakerTrader) ID() string         { return t.id }
func (t *MarketMakerTrader) Strategy() Strategy { return StrategyMarketMaker }

func (t *MarketMakerTrader) NextOrder(view MarketView, rng *rand.Rand) (*domain.Order, error) {
	spread, ok := view.Spread()
	if !ok {
		spread = defaultSpread
	}
	offset := spread.Div(four)

	side := randomSide(rng)
	qty := uniform(rng, makerMinQty, makerMaxQty).Round(2)

	ref := view.ReferencePrice()
	var p decimal.Decimal
	if side == domain.SideBuy {
		p = ref.Sub(offset).Round(2)
	} else {
		p = ref.Add(offset).Round(2)
	}
	if !p.IsPositive() {
		return nil, nil
	}

	return domain.NewOrder(t.id, side, domain.OrderTypeLimit, qty, &p)
}

// MomentumTrader sends a market order on 30% of the ticks, skipping it when
// the side it would take from is empty.
type MomentumTrader struct {
	id string
}

func (t *MomentumTrader) ID() string         { return t.id }
func (t *MomentumTrader) Strategy() Strategy { return StrategyMomentum }

func (t *MomentumTrader) NextOrder(view MarketView, rng *rand.Rand) (*domain.Order, error) {
	if rng.Float64() <= 0.7 {
		return nil, nil
	}

	side := randomSide(rng)
	qty := uniform(rng, momentumMinQty, momentumMaxQty).Round(2)

	if quote := view.Quote(side, qty); quote.QuantityAvailable.IsZero() {
		return nil, nil
	}

	return domain.NewOrder(t.id, side, domain.OrderTypeMarket, qty, nil)
}

func randomSide(rng *rand.Rand) domain.Side {
	if rng.IntN(2) == 0 {
		return domain.SideBuy
	}
	return domain.SideSell
}

// uniform draws from [lo, hi).
func uniform(rng *rand.Rand, lo, hi decimal.Decimal) decimal.Decimal {
	return lo.Add(hi.Sub(lo).Mul(decimal.NewFromFloat(rng.Float64())))
}
