package simulator

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
)

func defaultTraders(t *testing.T, n int) []Trader {
	t.Helper()
	traders := make([]Trader, 0, n)
	for i := 0; i < n; i++ {
		tr, err := NewTrader("trader_"+string(rune('1'+i)), Strategies[i%len(Strategies)], DefaultSizing())
		if err != nil {
			t.Fatal(err)
		}
		traders = append(traders, tr)
	}
	return traders
}

func TestNew_SeedsBookWithTraders(t *testing.T) {
	s := newTestSimulator(t, Options{}, defaultTraders(t, 3)...)

	book := s.Book()
	if book.Stats().BuyOrders != 5 || book.Stats().SellOrders != 5 {
		t.Fatalf("seeded %d bids / %d asks, want 5 / 5", book.Stats().BuyOrders, book.Stats().SellOrders)
	}
	if bid, _ := book.BestBid(); !bid.Equal(d("99.5")) {
		t.Errorf("best bid = %s, want 99.5", bid)
	}
	if ask, _ := book.BestAsk(); !ask.Equal(d("100.5")) {
		t.Errorf("best ask = %s, want 100.5", ask)
	}

	owners := map[string]bool{"trader_1": true, "trader_2": true, "trader_3": true}
	for _, o := range append(book.BuyOrders(), book.SellOrders()...) {
		if !owners[o.TraderID] {
			t.Errorf("seed order owned by %q", o.TraderID)
		}
		if o.Quantity.LessThan(d("1")) || o.Quantity.GreaterThan(d("3")) {
			t.Errorf("seed quantity %s outside [1, 3]", o.Quantity)
		}
	}
}

func TestNew_WithoutTradersLeavesBookEmpty(t *testing.T) {
	s := newTestSimulator(t, Options{})

	if s.Book().Stats().BuyOrders != 0 || s.Book().Stats().SellOrders != 0 {
		t.Error("book should start empty without traders")
	}
	if !s.CurrentPrice().Equal(d("100")) {
		t.Errorf("CurrentPrice = %s, want default 100", s.CurrentPrice())
	}
	if h := s.PriceHistory(); len(h) != 1 || !h[0].Equal(d("100")) {
		t.Errorf("PriceHistory = %v, want [100]", h)
	}
}

func TestAddTrader_Duplicate(t *testing.T) {
	s := newTestSimulator(t, Options{})
	tr := &scriptedTrader{id: "dup"}
	if err := s.AddTrader(tr); err != nil {
		t.Fatalf("AddTrader: %v", err)
	}
	var ve *domain.ValidationError
	if err := s.AddTrader(&scriptedTrader{id: "dup"}); !errors.As(err, &ve) {
		t.Errorf("expected ValidationError, got %v", err)
	}
}

func TestStep_PriceFollowsLastTrade(t *testing.T) {
	s := newTestSimulator(t, Options{})
	ladder(t, s, "100")
	_ = s.AddTrader(&scriptedTrader{id: "taker", script: []orderSpec{
		{side: domain.SideBuy, orderType: domain.OrderTypeMarket, qty: "15"},
	}})

	snap, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}

	if !snap.Price.Equal(d("101")) {
		t.Errorf("price = %s, want 101 (last trade)", snap.Price)
	}
	if !snap.Volume.Equal(d("15")) {
		t.Errorf("volume = %s, want 15", snap.Volume)
	}
	if snap.OrdersPlaced != 1 || snap.TradesExecuted != 2 {
		t.Errorf("orders/trades = %d/%d, want 1/2", snap.OrdersPlaced, snap.TradesExecuted)
	}
	if snap.Step != 1 || s.StepCount() != 1 {
		t.Errorf("step = %d, StepCount = %d", snap.Step, s.StepCount())
	}
	if len(snap.Depth.Asks) != 4 {
		t.Errorf("snapshot asks = %d levels, want 4", len(snap.Depth.Asks))
	}
}

func TestStep_PriceFallsBackToMid(t *testing.T) {
	s := newTestSimulator(t, Options{InitialPrice: d("90")})
	ladder(t, s, "100")
	_ = s.AddTrader(&scriptedTrader{id: "passive", script: []orderSpec{
		{side: domain.SideBuy, orderType: domain.OrderTypeLimit, qty: "1", price: "99.8"},
	}})

	snap, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	// Best bid 99.8, best ask 100.5.
	if !snap.Price.Equal(d("100.15")) {
		t.Errorf("price = %s, want mid 100.15", snap.Price)
	}
	if !snap.Volume.IsZero() || snap.TradesExecuted != 0 {
		t.Errorf("volume/trades = %s/%d, want 0/0", snap.Volume, snap.TradesExecuted)
	}
}

func TestStep_PriceUnchangedOnOneSidedBook(t *testing.T) {
	s := newTestSimulator(t, Options{InitialPrice: d("50")})
	_ = s.AddTrader(&scriptedTrader{id: "lonely", script: []orderSpec{
		{side: domain.SideBuy, orderType: domain.OrderTypeLimit, qty: "1", price: "45"},
	}})

	snap, err := s.Step(context.Background())
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !snap.Price.Equal(d("50")) {
		t.Errorf("price = %s, want unchanged 50", snap.Price)
	}
}

func TestStep_TraderBookkeeping(t *testing.T) {
	s := newTestSimulator(t, Options{})
	_ = s.AddTrader(&scriptedTrader{id: "maker", script: []orderSpec{
		{side: domain.SideSell, orderType: domain.OrderTypeLimit, qty: "5", price: "100"},
	}})
	_ = s.AddTrader(&scriptedTrader{id: "taker", script: []orderSpec{
		{side: domain.SideBuy, orderType: domain.OrderTypeLimit, qty: "3", price: "101"},
	}})

	if _, err := s.Step(context.Background()); err != nil {
		t.Fatalf("Step: %v", err)
	}

	stats := s.TraderStats()
	if len(stats) != 2 {
		t.Fatalf("TraderStats len = %d", len(stats))
	}
	maker, taker := stats[0], stats[1]
	if maker.OrdersPlaced != 1 || taker.OrdersPlaced != 1 {
		t.Errorf("orders placed = %d/%d, want 1/1", maker.OrdersPlaced, taker.OrdersPlaced)
	}
	if maker.TradesExecuted != 1 || taker.TradesExecuted != 1 {
		t.Errorf("trades = %d/%d, want 1/1", maker.TradesExecuted, taker.TradesExecuted)
	}
	if !maker.Position.Equal(d("-3")) || !taker.Position.Equal(d("3")) {
		t.Errorf("positions = %s/%s, want -3/3", maker.Position, taker.Position)
	}
	// Trade at the maker's price.
	if !s.CurrentPrice().Equal(d("100")) {
		t.Errorf("CurrentPrice = %s, want 100", s.CurrentPrice())
	}
}

func TestRun_ObservesEveryStepAndBoundsHistory(t *testing.T) {
	s := newTestSimulator(t, Options{HistorySize: 3}, defaultTraders(t, 5)...)

	var observed []int
	if err := s.Run(context.Background(), 10, func(snap StepSnapshot) {
		observed = append(observed, snap.Step)
	}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(observed) != 10 || observed[9] != 10 {
		t.Errorf("observed steps = %v", observed)
	}
	if n := len(s.PriceHistory()); n != 3 {
		t.Errorf("PriceHistory len = %d, want 3", n)
	}
	if n := len(s.VolumeHistory()); n != 3 {
		t.Errorf("VolumeHistory len = %d, want 3", n)
	}
	snaps := s.Snapshots()
	if len(snaps) != 3 || snaps[0].Step != 8 || snaps[2].Step != 10 {
		t.Errorf("Snapshots kept steps %v, want 8..10", snaps)
	}
	if ph := s.PriceHistory(); !ph[2].Equal(s.CurrentPrice()) {
		t.Errorf("last history price %s != current %s", ph[2], s.CurrentPrice())
	}

	sum := s.Summary()
	if sum.TotalSteps != 10 {
		t.Errorf("TotalSteps = %d, want 10", sum.TotalSteps)
	}
	if !sum.InitialPrice.Equal(d("100")) {
		t.Errorf("InitialPrice = %s, want 100 after history eviction", sum.InitialPrice)
	}
	if !sum.TotalVolume.Equal(s.Book().Stats().TotalVolume) {
		t.Errorf("summary volume %s != book volume %s", sum.TotalVolume, s.Book().Stats().TotalVolume)
	}
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	s := newTestSimulator(t, Options{}, defaultTraders(t, 2)...)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.Run(ctx, 100, func(snap StepSnapshot) {
		if snap.Step == 3 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}
	if s.StepCount() != 3 {
		t.Errorf("StepCount = %d, want 3", s.StepCount())
	}
}

func TestRun_DeterministicForSeed(t *testing.T) {
	run := func() []decimal.Decimal {
		s := newTestSimulator(t, Options{Seed: 99}, defaultTraders(t, 5)...)
		if err := s.Run(context.Background(), 40, nil); err != nil {
			t.Fatalf("Run: %v", err)
		}
		return s.PriceHistory()
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("history lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Fatalf("price history diverges at %d: %s vs %s", i, a[i], b[i])
		}
	}
}

func TestSummary(t *testing.T) {
	s := newTestSimulator(t, Options{})
	ladder(t, s, "100")
	_ = s.AddTrader(&scriptedTrader{id: "taker", script: []orderSpec{
		{side: domain.SideBuy, orderType: domain.OrderTypeMarket, qty: "20"},
		{side: domain.SideSell, orderType: domain.OrderTypeLimit, qty: "1", price: "200"},
	}})

	_ = s.Run(context.Background(), 2, nil)
	sum := s.Summary()

	// Step 1 sweeps 100.5 and 101; step 2 rests an ask, so the reference
	// becomes mid(99.5, 101.5) = 100.5.
	if !sum.FinalPrice.Equal(d("100.5")) {
		t.Errorf("FinalPrice = %s, want 100.5", sum.FinalPrice)
	}
	if !sum.PriceChange.Equal(d("0.5")) || !sum.PriceChangePct.Equal(d("0.5")) {
		t.Errorf("PriceChange = %s (%s%%), want 0.5 (0.5%%)", sum.PriceChange, sum.PriceChangePct)
	}
	if !sum.TotalVolume.Equal(d("20")) || !sum.AvgVolumePerStep.Equal(d("10")) {
		t.Errorf("volume total/avg = %s/%s, want 20/10", sum.TotalVolume, sum.AvgVolumePerStep)
	}
	if sum.TotalTrades != 2 || sum.TotalOrders != 12 || sum.ActiveOrders != 9 {
		t.Errorf("trades/orders/active = %d/%d/%d, want 2/12/9", sum.TotalTrades, sum.TotalOrders, sum.ActiveOrders)
	}
}

func TestReset(t *testing.T) {
	s := newTestSimulator(t, Options{}, defaultTraders(t, 3)...)
	_ = s.Run(context.Background(), 20, nil)
	book := s.Book()

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if s.Book() != book {
		t.Error("Reset replaced the book instead of clearing it")
	}
	if s.StepCount() != 0 || !s.CurrentPrice().Equal(d("100")) {
		t.Errorf("after Reset step=%d price=%s", s.StepCount(), s.CurrentPrice())
	}
	if len(s.Snapshots()) != 0 || len(s.VolumeHistory()) != 0 || len(s.PriceHistory()) != 1 {
		t.Error("history not cleared")
	}
	if st := s.Book().Stats(); st.TotalOrders != 10 || st.TotalTrades != 0 {
		t.Errorf("book after Reset: %d orders, %d trades; want 10 seeded, 0", st.TotalOrders, st.TotalTrades)
	}
	for _, ts := range s.TraderStats() {
		if ts.OrdersPlaced != 0 || ts.TradesExecuted != 0 || !ts.Position.IsZero() {
			t.Errorf("trader %s not reset: %+v", ts.TraderID, ts)
		}
	}
	if len(s.Traders()) != 3 {
		t.Errorf("traders = %d, want 3 kept", len(s.Traders()))
	}
}

func TestLadder_SkipsNonPositivePrices(t *testing.T) {
	s := newTestSimulator(t, Options{})
	err := Ladder(s.Book(), d("1"), d("0.5"), 5,
		func(int) decimal.Decimal { return d("1") },
		func() string { return "seed" })
	if err != nil {
		t.Fatalf("Ladder: %v", err)
	}
	if s.Book().Stats().BuyOrders != 1 || s.Book().Stats().SellOrders != 5 {
		t.Errorf("bids/asks = %d/%d, want 1/5", s.Book().Stats().BuyOrders, s.Book().Stats().SellOrders)
	}
}
