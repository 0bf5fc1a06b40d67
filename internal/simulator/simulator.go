package simulator

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/gammazero/deque"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
)

// Options configures a Simulator. Zero values fall back to the defaults
// noted on each field.
type Options struct {
	Symbol        string          // "TOKEN/USD"
	InitialPrice  decimal.Decimal // 100
	Sizing        OrderSizing     // DefaultSizing()
	HistorySize   int             // 1000 entries per history series
	SnapshotDepth int             // 5 levels per side in each StepSnapshot
	Seed          int64           // 0 seeds from the clock
	Logger        *slog.Logger    // slog.Default()
}

func (o Options) withDefaults() Options {
	if o.Symbol == "" {
		o.Symbol = "TOKEN/USD"
	}
	if !o.InitialPrice.IsPositive() {
		o.InitialPrice = decimal.NewFromInt(100)
	}
	if !o.Sizing.MaxQuantity.IsPositive() {
		o.Sizing = DefaultSizing()
	}
	if o.HistorySize <= 0 {
		o.HistorySize = 1000
	}
	if o.SnapshotDepth <= 0 {
		o.SnapshotDepth = 5
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// StepSnapshot records the market after one tick.
type StepSnapshot struct {
	Step           int             `json:"step"`
	Price          decimal.Decimal `json:"price"`
	Volume         decimal.Decimal `json:"volume"`
	OrdersPlaced   int             `json:"orders_placed"`
	TradesExecuted int             `json:"trades_executed"`
	Depth          engine.Depth    `json:"order_book"`
	Stats          engine.Stats    `json:"stats"`
}

// Summary aggregates a whole run.
type Summary struct {
	TotalSteps       int             `json:"total_steps"`
	InitialPrice     decimal.Decimal `json:"initial_price"`
	FinalPrice       decimal.Decimal `json:"final_price"`
	PriceChange      decimal.Decimal `json:"price_change"`
	PriceChangePct   decimal.Decimal `json:"price_change_pct"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	AvgVolumePerStep decimal.Decimal `json:"avg_volume_per_step"`
	TotalTrades      int             `json:"total_trades"`
	TotalOrders      int             `json:"total_orders"`
	ActiveOrders     int             `json:"active_orders"`
}

// TraderStats is the bookkeeping kept for one trader. Position is the net
// quantity bought minus sold, counting both taker and maker fills.
type TraderStats struct {
	TraderID       string          `json:"trader_id"`
	Strategy       Strategy        `json:"strategy"`
	OrdersPlaced   int             `json:"orders_placed"`
	TradesExecuted int             `json:"trades_executed"`
	Position       decimal.Decimal `json:"position"`
}

// Simulator drives traders against a single order book one tick at a time.
// It is not safe for concurrent use; the book it owns is.
type Simulator struct {
	opts   Options
	logger *slog.Logger
	rng    *rand.Rand

	book    *engine.OrderBook
	traders []Trader
	stats   map[string]*TraderStats

	step         int
	currentPrice decimal.Decimal
	totalVolume  decimal.Decimal

	priceHistory  deque.Deque[decimal.Decimal]
	volumeHistory deque.Deque[decimal.Decimal]
	snapshots     deque.Deque[StepSnapshot]
}

// New creates a simulator. When traders are given the book is seeded
// around the initial price.
func New(opts Options, traders ...Trader) (*Simulator, error) {
	opts = opts.withDefaults()
	s := &Simulator{
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "simulator")),
		rng:    rand.New(rand.NewPCG(uint64(opts.Seed), uint64(opts.Seed)>>1|1)),
		book:   engine.NewOrderBook(opts.Symbol, opts.Logger),
		stats:  make(map[string]*TraderStats),
	}
	for _, t := range traders {
		if err := s.AddTrader(t); err != nil {
			return nil, err
		}
	}
	s.resetState()
	if len(s.traders) > 0 {
		if err := s.Seed(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// AddTrader registers a trader. Trader ids must be unique.
func (s *Simulator) AddTrader(t Trader) error {
	if _, exists := s.stats[t.ID()]; exists {
		return &domain.ValidationError{Field: "trader_id", Message: fmt.Sprintf("duplicate trader %q", t.ID())}
	}
	s.traders = append(s.traders, t)
	s.stats[t.ID()] = &TraderStats{TraderID: t.ID(), Strategy: t.Strategy(), Position: decimal.Zero}
	return nil
}

// Seed places five bids below and five asks above the initial price, 0.5
// apart, each owned by a randomly chosen trader. Without traders the
// orders belong to "seed".
func (s *Simulator) Seed() error {
	return Ladder(s.book, s.opts.InitialPrice, decimal.RequireFromString("0.5"), 5,
		func(int) decimal.Decimal { return uniform(s.rng, makerMinQty, makerMaxQty).Round(2) },
		func() string {
			if len(s.traders) == 0 {
				return "seed"
			}
			return s.traders[s.rng.IntN(len(s.traders))].ID()
		})
}

// Ladder rests n limit orders on each side of center, step apart, with
// sizes from qty(i) for the i-th level out. Levels that would price at or
// below zero are skipped.
func Ladder(book *engine.OrderBook, center, step decimal.Decimal, n int, qty func(i int) decimal.Decimal, owner func() string) error {
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		for i := 0; i < n; i++ {
			distance := step.Mul(decimal.NewFromInt(int64(i + 1)))
			price := center.Add(distance)
			if side == domain.SideBuy {
				price = center.Sub(distance)
			}
			price = price.Round(2)
			if !price.IsPositive() {
				continue
			}
			order, err := domain.NewOrder(owner(), side, domain.OrderTypeLimit, qty(i), &price)
			if err != nil {
				return fmt.Errorf("seeding %s level %d: %w", side, i+1, err)
			}
			if _, err := book.PlaceOrder(order); err != nil {
				return fmt.Errorf("seeding %s level %d: %w", side, i+1, err)
			}
		}
	}
	return nil
}

// Step runs one tick: every trader may submit one order, then the
// reference price moves to the tick's last trade price, or to the mid
// price if nothing traded, or stays put if the book is one-sided.
func (s *Simulator) Step(ctx context.Context) (StepSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return StepSnapshot{}, err
	}

	s.step++
	var (
		ordersPlaced int
		tickTrades   []domain.Trade
	)

	view := bookView{book: s.book, fallback: s.currentPrice}
	for _, t := range s.traders {
		order, err := t.NextOrder(view, s.rng)
		if err != nil {
			return StepSnapshot{}, fmt.Errorf("trader %s: %w", t.ID(), err)
		}
		if order == nil {
			continue
		}

		trades, err := s.book.PlaceOrder(order)
		if err != nil {
			return StepSnapshot{}, fmt.Errorf("trader %s: %w", t.ID(), err)
		}
		ordersPlaced++
		s.stats[t.ID()].OrdersPlaced++
		s.recordTrades(trades)
		tickTrades = append(tickTrades, trades...)
	}

	volume := decimal.Zero
	for _, tr := range tickTrades {
		volume = volume.Add(tr.Quantity)
	}
	if len(tickTrades) > 0 {
		s.currentPrice = tickTrades[len(tickTrades)-1].Price
	} else if mid, ok := s.book.MidPrice(); ok {
		s.currentPrice = mid
	}
	s.totalVolume = s.totalVolume.Add(volume)

	snap := StepSnapshot{
		Step:           s.step,
		Price:          s.currentPrice,
		Volume:         volume,
		OrdersPlaced:   ordersPlaced,
		TradesExecuted: len(tickTrades),
		Depth:          s.book.Depth(s.opts.SnapshotDepth),
		Stats:          s.book.Stats(),
	}
	pushBounded(&s.priceHistory, s.currentPrice, s.opts.HistorySize)
	pushBounded(&s.volumeHistory, volume, s.opts.HistorySize)
	pushBounded(&s.snapshots, snap, s.opts.HistorySize)

	s.logger.Debug("step completed",
		slog.Int("step", s.step),
		slog.String("price", s.currentPrice.String()),
		slog.String("volume", volume.String()),
		slog.Int("orders", ordersPlaced),
		slog.Int("trades", len(tickTrades)),
	)
	return snap, nil
}

// Run executes steps ticks, calling observe (if non-nil) after each. It
// stops early with the context's error once ctx is done.
func (s *Simulator) Run(ctx context.Context, steps int, observe func(StepSnapshot)) error {
	for i := 0; i < steps; i++ {
		snap, err := s.Step(ctx)
		if err != nil {
			return err
		}
		if observe != nil {
			observe(snap)
		}
	}

	summary := s.Summary()
	s.logger.Info("simulation finished",
		slog.Int("steps", summary.TotalSteps),
		slog.String("final_price", summary.FinalPrice.StringFixed(2)),
		slog.Int("trades", summary.TotalTrades),
		slog.String("volume", summary.TotalVolume.StringFixed(2)),
	)
	return nil
}

func (s *Simulator) recordTrades(trades []domain.Trade) {
	for _, tr := range trades {
		if st, ok := s.stats[tr.BuyerID]; ok {
			st.TradesExecuted++
			st.Position = st.Position.Add(tr.Quantity)
		}
		if st, ok := s.stats[tr.SellerID]; ok {
			st.TradesExecuted++
			st.Position = st.Position.Sub(tr.Quantity)
		}
	}
}

// Summary reports the run so far. Volume totals cover every step, even
// those already evicted from the bounded history.
func (s *Simulator) Summary() Summary {
	stats := s.book.Stats()
	change := s.currentPrice.Sub(s.opts.InitialPrice)

	avg := decimal.Zero
	if s.step > 0 {
		avg = s.totalVolume.Div(decimal.NewFromInt(int64(s.step)))
	}

	return Summary{
		TotalSteps:       s.step,
		InitialPrice:     s.opts.InitialPrice,
		FinalPrice:       s.currentPrice,
		PriceChange:      change,
		PriceChangePct:   change.Div(s.opts.InitialPrice).Mul(decimal.NewFromInt(100)),
		TotalVolume:      s.totalVolume,
		AvgVolumePerStep: avg,
		TotalTrades:      stats.TotalTrades,
		TotalOrders:      stats.TotalOrders,
		ActiveOrders:     stats.ActiveOrders,
	}
}

// Reset empties the book in place and drops history and trader
// bookkeeping. Registered traders are kept, and the book is reseeded when
// there are any.
func (s *Simulator) Reset() error {
	s.resetState()
	for _, t := range s.traders {
		s.stats[t.ID()] = &TraderStats{TraderID: t.ID(), Strategy: t.Strategy(), Position: decimal.Zero}
	}
	if len(s.traders) > 0 {
		return s.Seed()
	}
	return nil
}

func (s *Simulator) resetState() {
	s.book.Clear()
	s.step = 0
	s.currentPrice = s.opts.InitialPrice
	s.totalVolume = decimal.Zero
	s.priceHistory.Clear()
	s.volumeHistory.Clear()
	s.snapshots.Clear()
	s.priceHistory.PushBack(s.opts.InitialPrice)
}

// Book returns the order book the simulator drives.
func (s *Simulator) Book() *engine.OrderBook { return s.book }

// Traders returns the registered traders in registration order.
func (s *Simulator) Traders() []Trader {
	out := make([]Trader, len(s.traders))
	copy(out, s.traders)
	return out
}

// CurrentPrice returns the reference price after the latest tick.
func (s *Simulator) CurrentPrice() decimal.Decimal { return s.currentPrice }

// StepCount returns how many ticks have run since creation or Reset.
func (s *Simulator) StepCount() int { return s.step }

// PriceHistory returns the retained reference prices, oldest first. It
// starts with the initial price until that entry is evicted.
func (s *Simulator) PriceHistory() []decimal.Decimal { return drain(&s.priceHistory) }

// VolumeHistory returns the retained per-tick volumes, oldest first.
func (s *Simulator) VolumeHistory() []decimal.Decimal { return drain(&s.volumeHistory) }

// Snapshots returns the retained step snapshots, oldest first.
func (s *Simulator) Snapshots() []StepSnapshot { return drain(&s.snapshots) }

// TraderStats returns per-trader bookkeeping in registration order.
func (s *Simulator) TraderStats() []TraderStats {
	out := make([]TraderStats, 0, len(s.traders))
	for _, t := range s.traders {
		out = append(out, *s.stats[t.ID()])
	}
	return out
}

func pushBounded[T any](q *deque.Deque[T], v T, limit int) {
	q.PushBack(v)
	for q.Len() > limit {
		q.PopFront()
	}
}

func drain[T any](q *deque.Deque[T]) []T {
	out := make([]T, q.Len())
	for i := range out {
		out[i] = q.At(i)
	}
	return out
}

// bookView adapts the order book to MarketView.
type bookView struct {
	book     *engine.OrderBook
	fallback decimal.Decimal
}

func (v bookView) ReferencePrice() decimal.Decimal {
	if mid, ok := v.book.MidPrice(); ok {
		return mid
	}
	return v.fallback
}

func (v bookView) Spread() (decimal.Decimal, bool) {
	return v.book.Spread()
}

func (v bookView) Quote(side domain.Side, quantity decimal.Decimal) engine.QuoteResult {
	return v.book.Quote(side, quantity)
}
