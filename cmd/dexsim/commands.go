package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/config"
	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
	"github.com/efreitasn/dexsim/internal/report"
	"github.com/efreitasn/dexsim/internal/scenario"
	"github.com/efreitasn/dexsim/internal/simulator"
)

type app struct {
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) sizing() simulator.OrderSizing {
	return simulator.OrderSizing{
		MinQuantity: a.cfg.MinOrderSize,
		MaxQuantity: a.cfg.MaxOrderSize,
		Volatility:  a.cfg.PriceVolatility,
	}
}

// newSimulator builds n traders cycling through the strategies, which
// also seeds the book.
func (a *app) newSimulator(n int) (*simulator.Simulator, error) {
	traders := make([]simulator.Trader, 0, n)
	for i := 0; i < n; i++ {
		st := simulator.Strategies[i%len(simulator.Strategies)]
		t, err := simulator.NewTrader(fmt.Sprintf("trader_%d", i+1), st, a.sizing())
		if err != nil {
			return nil, err
		}
		traders = append(traders, t)
	}
	return simulator.New(simulator.Options{
		Symbol:        a.cfg.Symbol,
		InitialPrice:  a.cfg.InitialPrice,
		Sizing:        a.sizing(),
		HistorySize:   a.cfg.HistorySize,
		SnapshotDepth: 5,
		Seed:          a.cfg.Seed,
		Logger:        a.logger,
	}, traders...)
}

func (a *app) simulate(ctx context.Context, args []string) error {
	fs := a.flags("simulate")
	steps := fs.Int("steps", a.cfg.NumSteps, "number of simulation steps")
	traders := fs.Int("traders", a.cfg.NumTraders, "number of automated traders")
	verbose := fs.Bool("verbose", false, "print every step")
	showBook := fs.Bool("show-book", false, "print the final order book")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *steps < 0 || *traders < 0 {
		fmt.Fprintln(a.stderr, "steps and traders must not be negative")
		return errUsage
	}

	sim, err := a.newSimulator(*traders)
	if err != nil {
		return err
	}

	if !*asJSON {
		fmt.Fprintf(a.stdout, "Starting DEX simulation\n  Symbol: %s\n  Initial Price: $%s\n  Traders: %d\n  Steps: %d\n\n",
			a.cfg.Symbol, a.cfg.InitialPrice.StringFixed(2), *traders, *steps)
	}

	var observe func(simulator.StepSnapshot)
	if *verbose && !*asJSON {
		observe = func(snap simulator.StepSnapshot) {
			if err := report.WriteStep(a.stdout, snap); err != nil {
				a.logger.Warn("writing step", slog.String("error", err.Error()))
			}
		}
	}
	if err := sim.Run(ctx, *steps, observe); err != nil {
		return err
	}

	book := sim.Book()
	if *asJSON {
		out := struct {
			Summary simulator.Summary       `json:"summary"`
			Traders []simulator.TraderStats `json:"traders"`
			Book    *engine.Depth           `json:"order_book,omitempty"`
		}{Summary: sim.Summary(), Traders: sim.TraderStats()}
		if *showBook {
			depth := book.Depth(a.cfg.DepthLevels)
			out.Book = &depth
		}
		return report.WriteJSON(a.stdout, out)
	}

	if err := report.WriteSummary(a.stdout, sim.Summary()); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout)
	if err := report.WriteTraders(a.stdout, sim.TraderStats()); err != nil {
		return err
	}
	if *showBook {
		fmt.Fprintln(a.stdout)
		return report.WriteBook(a.stdout, book.Depth(a.cfg.DepthLevels), book.Stats())
	}
	return nil
}

func (a *app) visualize(_ context.Context, args []string) error {
	fs := a.flags("visualize")
	levels := fs.Int("levels", a.cfg.DepthLevels, "price levels to show per side")
	if err := fs.Parse(args); err != nil {
		return err
	}

	book := engine.NewOrderBook(a.cfg.Symbol, a.logger)
	err := simulator.Ladder(book, a.cfg.InitialPrice, decimal.NewFromInt(1), 10,
		func(i int) decimal.Decimal { return decimal.NewFromInt(int64(10 * (10 - i))) },
		func() string { return "seed" })
	if err != nil {
		return err
	}
	return report.WriteBook(a.stdout, book.Depth(*levels), book.Stats())
}

func (a *app) stats(ctx context.Context, args []string) error {
	fs := a.flags("stats")
	steps := fs.Int("steps", 50, "number of simulation steps")
	quoteQty := fs.String("quote", "10", "market order size to quote on each side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	qty, err := decimal.NewFromString(*quoteQty)
	if err != nil || !qty.IsPositive() {
		fmt.Fprintf(a.stderr, "invalid -quote %q\n", *quoteQty)
		return errUsage
	}

	sim, err := a.newSimulator(len(simulator.Strategies))
	if err != nil {
		return err
	}
	if err := sim.Run(ctx, *steps, nil); err != nil {
		return err
	}

	book := sim.Book()
	fmt.Fprintln(a.stdout, "Order Book Statistics:")
	if err := report.WriteStats(a.stdout, book.Stats()); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout)
	for _, side := range []domain.Side{domain.SideBuy, domain.SideSell} {
		if err := report.WriteQuote(a.stdout, book.Quote(side, qty)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) replay(_ context.Context, args []string) error {
	fs := a.flags("replay")
	levels := fs.Int("levels", a.cfg.DepthLevels, "price levels to show per side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(a.stderr, "usage: dexsim replay [-levels N] FILE")
		return errUsage
	}

	sc, err := scenario.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	book := engine.NewOrderBook(a.cfg.Symbol, a.logger)
	res, err := scenario.Run(book, sc)
	if err != nil {
		return err
	}

	if res.Name != "" {
		fmt.Fprintf(a.stdout, "Scenario: %s\n\n", res.Name)
	}
	for _, step := range res.Steps {
		if step.Cancel {
			fmt.Fprintf(a.stdout, "#%d cancel %s: %t\n", step.Index, step.OrderID, step.Cancelled)
			continue
		}
		fmt.Fprintf(a.stdout, "#%d order %s: %s, %d trade(s)\n", step.Index, step.OrderID, step.Status, len(step.Trades))
	}
	fmt.Fprintln(a.stdout)
	if err := report.WriteTrades(a.stdout, res.Trades); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout)
	return report.WriteBook(a.stdout, book.Depth(*levels), book.Stats())
}
