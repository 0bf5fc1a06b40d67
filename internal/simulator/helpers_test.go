package simulator

import (
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// orderSpec describes an order built at the moment a scripted trader is
// asked for it, so time priority follows submission order.
type orderSpec struct {
	side      domain.Side
	orderType domain.OrderType
	qty       string
	price     string
}

// scriptedTrader submits one spec per tick and sits out once the script
// runs dry.
type scriptedTrader struct {
	id     string
	script []orderSpec
}

func (t *scriptedTrader) ID() string         { return t.id }
func (t *scriptedTrader) Strategy() Strategy { return StrategyRandom }

func (t *scriptedTrader) NextOrder(_ MarketView, _ *rand.Rand) (*domain.Order, error) {
	if len(t.script) == 0 {
		return nil, nil
	}
	spec := t.script[0]
	t.script = t.script[1:]

	var price *decimal.Decimal
	if spec.price != "" {
		p := d(spec.price)
		price = &p
	}
	return domain.NewOrder(t.id, spec.side, spec.orderType, d(spec.qty), price)
}

// fakeView is a fixed MarketView for strategy tests.
type fakeView struct {
	ref       decimal.Decimal
	spread    decimal.Decimal
	hasSpread bool
	available decimal.Decimal
}

func (v fakeView) ReferencePrice() decimal.Decimal { return v.ref }

func (v fakeView) Spread() (decimal.Decimal, bool) { return v.spread, v.hasSpread }

func (v fakeView) Quote(side domain.Side, qty decimal.Decimal) engine.QuoteResult {
	return engine.QuoteResult{Side: side, QuantityRequested: qty, QuantityAvailable: v.available}
}

func newTestSimulator(t *testing.T, opts Options, traders ...Trader) *Simulator {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	if opts.Seed == 0 {
		opts.Seed = 7
	}
	s, err := New(opts, traders...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

// ladder seeds the simulator's book with five levels of 10 a side, 0.5
// apart around center.
func ladder(t *testing.T, s *Simulator, center string) {
	t.Helper()
	err := Ladder(s.Book(), d(center), d("0.5"), 5,
		func(int) decimal.Decimal { return decimal.NewFromInt(10) },
		func() string { return "seed" })
	if err != nil {
		t.Fatalf("Ladder: %v", err)
	}
}
