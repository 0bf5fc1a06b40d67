// Package scenario replays scripted order flows from YAML files against an
// order book, for reproducing book behavior deterministically.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
	"github.com/efreitasn/dexsim/internal/simulator"
)

// Scenario is a named list of actions applied to a book in file order.
type Scenario struct {
	Name string `yaml:"name"`
	// InitialPrice and SeedLevels, when both set, pre-seed the book with
	// SeedLevels limit orders a side, 0.5 apart around InitialPrice.
	InitialPrice string  `yaml:"initial_price"`
	SeedLevels   int     `yaml:"seed_levels"`
	SeedQuantity string  `yaml:"seed_quantity"` // defaults to 10
	Actions      []Entry `yaml:"orders"`
}

// Entry is either an order placement or, when Cancel is set, a
// cancellation of a previously placed order id.
type Entry struct {
	Cancel   string `yaml:"cancel"`
	ID       string `yaml:"id"`
	Trader   string `yaml:"trader"`
	Side     string `yaml:"side"`
	Type     string `yaml:"type"` // defaults to limit
	Quantity string `yaml:"quantity"`
	Price    string `yaml:"price"`
}

// IsCancel reports whether the entry cancels an order.
func (e Entry) IsCancel() bool { return e.Cancel != "" }

// Load reads and parses a scenario file.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	return Parse(bytes.NewReader(raw))
}

// Parse decodes a scenario and checks that every entry is well formed.
// Semantic order validation (positive quantity, limit price present) is
// left to the order factory at replay time.
func Parse(r io.Reader) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &domain.ValidationError{Message: "empty scenario"}
		}
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	if sc.InitialPrice != "" {
		if _, err := decimal.NewFromString(sc.InitialPrice); err != nil {
			return &domain.ValidationError{Field: "initial_price", Message: "not a number"}
		}
	}
	if sc.SeedQuantity != "" {
		if _, err := decimal.NewFromString(sc.SeedQuantity); err != nil {
			return &domain.ValidationError{Field: "seed_quantity", Message: "not a number"}
		}
	}
	if sc.SeedLevels < 0 {
		return &domain.ValidationError{Field: "seed_levels", Message: "must not be negative"}
	}
	if sc.SeedLevels > 0 && sc.InitialPrice == "" {
		return &domain.ValidationError{Field: "seed_levels", Message: "requires initial_price"}
	}

	for i, e := range sc.Actions {
		field := func(name string) string { return fmt.Sprintf("orders[%d].%s", i, name) }

		if e.IsCancel() {
			if e.ID != "" || e.Trader != "" || e.Side != "" || e.Type != "" || e.Quantity != "" || e.Price != "" {
				return &domain.ValidationError{Field: field("cancel"), Message: "cancel entries take no other fields"}
			}
			continue
		}

		if e.Trader == "" {
			return &domain.ValidationError{Field: field("trader"), Message: "required"}
		}
		if _, err := domain.ParseSide(e.Side); err != nil {
			return &domain.ValidationError{Field: field("side"), Message: fmt.Sprintf("unknown side %q", e.Side)}
		}
		if e.Type != "" {
			if _, err := domain.ParseOrderType(e.Type); err != nil {
				return &domain.ValidationError{Field: field("type"), Message: fmt.Sprintf("unknown order type %q", e.Type)}
			}
		}
		if _, err := decimal.NewFromString(e.Quantity); err != nil {
			return &domain.ValidationError{Field: field("quantity"), Message: "not a number"}
		}
		if e.Price != "" {
			if _, err := decimal.NewFromString(e.Price); err != nil {
				return &domain.ValidationError{Field: field("price"), Message: "not a number"}
			}
		}
	}
	return nil
}

// StepResult is the outcome of one entry.
type StepResult struct {
	Index     int
	OrderID   string
	Cancel    bool
	Cancelled bool               // cancel entries only
	Status    domain.OrderStatus // placements only
	Trades    []domain.Trade
}

// Result collects every step outcome and the trades they produced.
type Result struct {
	Name   string
	Steps  []StepResult
	Trades []domain.Trade
}

var (
	seedStep        = decimal.RequireFromString("0.5")
	defaultSeedSize = decimal.NewFromInt(10)
)

func seed(book *engine.OrderBook, sc *Scenario) error {
	center, err := decimal.NewFromString(sc.InitialPrice)
	if err != nil {
		return &domain.ValidationError{Field: "initial_price", Message: "not a number"}
	}
	size := defaultSeedSize
	if sc.SeedQuantity != "" {
		if size, err = decimal.NewFromString(sc.SeedQuantity); err != nil {
			return &domain.ValidationError{Field: "seed_quantity", Message: "not a number"}
		}
	}
	return simulator.Ladder(book, center, seedStep, sc.SeedLevels,
		func(int) decimal.Decimal { return size },
		func() string { return "seed" })
}

// Run replays sc against book, seeding it first if the scenario asks to.
// Orders are stamped one millisecond apart in file order, after any seed
// orders, so time priority follows the file. Any placement the book
// rejects aborts the replay with an error naming the entry.
func Run(book *engine.OrderBook, sc *Scenario) (*Result, error) {
	if sc.SeedLevels > 0 {
		if err := seed(book, sc); err != nil {
			return nil, err
		}
	}

	base := time.Now()
	res := &Result{Name: sc.Name}

	for i, e := range sc.Actions {
		if e.IsCancel() {
			res.Steps = append(res.Steps, StepResult{
				Index:     i,
				OrderID:   e.Cancel,
				Cancel:    true,
				Cancelled: book.CancelOrder(e.Cancel),
			})
			continue
		}

		order, err := e.order(base.Add(time.Duration(i) * time.Millisecond))
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		trades, err := book.PlaceOrder(order)
		if err != nil {
			return nil, fmt.Errorf("orders[%d]: %w", i, err)
		}
		res.Steps = append(res.Steps, StepResult{
			Index:   i,
			OrderID: order.ID(),
			Status:  order.Status(),
			Trades:  trades,
		})
		res.Trades = append(res.Trades, trades...)
	}
	return res, nil
}

func (e Entry) order(ts time.Time) (*domain.Order, error) {
	side, err := domain.ParseSide(e.Side)
	if err != nil {
		return nil, err
	}
	orderType := domain.OrderTypeLimit
	if e.Type != "" {
		if orderType, err = domain.ParseOrderType(e.Type); err != nil {
			return nil, err
		}
	}
	qty, err := decimal.NewFromString(e.Quantity)
	if err != nil {
		return nil, fmt.Errorf("%w: quantity %q", domain.ErrInvalidOrder, e.Quantity)
	}

	var price *decimal.Decimal
	if e.Price != "" {
		p, err := decimal.NewFromString(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q", domain.ErrInvalidOrder, e.Price)
		}
		price = &p
	}

	opts := []domain.OrderOption{domain.WithTimestamp(ts)}
	if e.ID != "" {
		opts = append(opts, domain.WithID(e.ID))
	}
	return domain.NewOrder(e.Trader, side, orderType, qty, price, opts...)
}
