package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
	"github.com/efreitasn/dexsim/internal/report"
	"github.com/efreitasn/dexsim/internal/simulator"
)

const manualHelp = `Commands:
  buy <price> <quantity>    place a limit buy order
  sell <price> <quantity>   place a limit sell order
  market buy <quantity>     place a market buy order
  market sell <quantity>    place a market sell order
  cancel <id>               cancel an active order
  status <id>               show one order
  orders [status]           show your recent orders, newest first
  resting                   show resting orders in priority order
  book                      show the order book
  stats                     show book statistics
  trades                    show executed trades
  last                      show the most recent trade
  help                      show this help
  quit                      exit
`

const (
	// firstManualID is the id given to the first order placed by hand.
	firstManualID = 1000
	manualTrader  = "manual"
	ordersShown   = 20
)

func (a *app) manual(ctx context.Context, args []string) error {
	fs := a.flags("manual")
	if err := fs.Parse(args); err != nil {
		return err
	}

	book := engine.NewOrderBook(a.cfg.Symbol, a.logger)
	err := simulator.Ladder(book, a.cfg.InitialPrice, decimal.RequireFromString("0.5"), 5,
		func(int) decimal.Decimal { return decimal.NewFromInt(10) },
		func() string { return "seed" })
	if err != nil {
		return err
	}

	s := &manualSession{book: book, out: a.stdout, levels: a.cfg.DepthLevels, nextID: firstManualID}
	if err := report.WriteBook(a.stdout, book.Depth(s.levels), book.Stats()); err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "\nManual trading mode (%s)\n%s\n", book.Symbol(), manualHelp)
	return s.loop(ctx, a.stdin)
}

// manualSession executes one command per input line against a book.
type manualSession struct {
	book   *engine.OrderBook
	out    io.Writer
	levels int
	nextID int
}

// loop reads commands until quit, end of input, or ctx is done. Lines are
// read on their own goroutine so a cancelled ctx ends the session without
// waiting for the next line; that goroutine stays blocked on in until the
// reader returns.
func (s *manualSession) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(s.out, ">> ")

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			fmt.Fprintln(s.out)
			if err := ctx.Err(); err != nil {
				return err
			}
			return <-scanErr
		}

		quit, err := s.exec(line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		}
	}
}

// exec runs a single command line. Input errors are returned for display
// and never end the session.
func (s *manualSession) exec(line string) (quit bool, err error) {
	parts := strings.Fields(strings.ToLower(line))
	if len(parts) == 0 {
		return false, nil
	}

	switch {
	case parts[0] == "quit" || parts[0] == "exit":
		return true, nil
	case parts[0] == "help":
		fmt.Fprint(s.out, manualHelp)
	case parts[0] == "book":
		err = report.WriteBook(s.out, s.book.Depth(s.levels), s.book.Stats())
	case parts[0] == "stats":
		err = report.WriteStats(s.out, s.book.Stats())
	case parts[0] == "trades":
		err = report.WriteTrades(s.out, s.book.Trades())
	case parts[0] == "last":
		if t, ok := s.book.LastTrade(); ok {
			fmt.Fprintf(s.out, "%s buyer=%s seller=%s\n", t, t.BuyerID, t.SellerID)
		} else {
			fmt.Fprintln(s.out, "No trades.")
		}
	case parts[0] == "resting":
		err = report.WriteOrders(s.out, append(s.book.BuyOrders(), s.book.SellOrders()...))
	case parts[0] == "orders" && len(parts) <= 2:
		err = s.orders(parts[1:])
	case parts[0] == "status" && len(parts) == 2:
		err = s.status(parts[1])
	case parts[0] == "cancel" && len(parts) == 2:
		if s.book.CancelOrder(parts[1]) {
			fmt.Fprintf(s.out, "Order #%s cancelled\n", parts[1])
		} else {
			fmt.Fprintf(s.out, "Order #%s is not active\n", parts[1])
		}
	case (parts[0] == "buy" || parts[0] == "sell") && len(parts) == 3:
		err = s.limit(parts[0], parts[1], parts[2])
	case parts[0] == "market" && len(parts) == 3:
		err = s.market(parts[1], parts[2])
	default:
		err = &domain.ValidationError{Message: fmt.Sprintf("invalid command %q, type 'help' for commands", line)}
	}
	return false, err
}

func (s *manualSession) orders(args []string) error {
	var status *domain.OrderStatus
	if len(args) == 1 {
		st, err := domain.ParseOrderStatus(args[0])
		if err != nil {
			return err
		}
		status = &st
	}
	orders, total := s.book.TraderOrders(manualTrader, status, ordersShown)
	snaps := make([]domain.OrderSnapshot, len(orders))
	for i, o := range orders {
		snaps[i] = o.Snapshot()
	}
	if err := report.WriteOrders(s.out, snaps); err != nil {
		return err
	}
	if total > len(orders) {
		fmt.Fprintf(s.out, "(%d of %d shown)\n", len(orders), total)
	}
	return nil
}

func (s *manualSession) status(id string) error {
	o, err := s.book.Order(id)
	if err != nil {
		return fmt.Errorf("order #%s: %w", id, err)
	}
	return report.WriteOrders(s.out, []domain.OrderSnapshot{o.Snapshot()})
}

func (s *manualSession) limit(sideArg, priceArg, qtyArg string) error {
	side, err := domain.ParseSide(sideArg)
	if err != nil {
		return err
	}
	price, err := parseDecimal("price", priceArg)
	if err != nil {
		return err
	}
	qty, err := parseDecimal("quantity", qtyArg)
	if err != nil {
		return err
	}
	return s.place(side, domain.OrderTypeLimit, qty, &price)
}

func (s *manualSession) market(sideArg, qtyArg string) error {
	side, err := domain.ParseSide(sideArg)
	if err != nil {
		return err
	}
	qty, err := parseDecimal("quantity", qtyArg)
	if err != nil {
		return err
	}
	return s.place(side, domain.OrderTypeMarket, qty, nil)
}

func (s *manualSession) place(side domain.Side, orderType domain.OrderType, qty decimal.Decimal, price *decimal.Decimal) error {
	id := strconv.Itoa(s.nextID)
	order, err := domain.NewOrder(manualTrader, side, orderType, qty, price, domain.WithID(id))
	if err != nil {
		return err
	}
	trades, err := s.book.PlaceOrder(order)
	if err != nil {
		return err
	}
	s.nextID++

	fmt.Fprintf(s.out, "%s %s order placed: #%s (%s)\n", orderType, side, id, order.Status())
	for _, t := range trades {
		fmt.Fprintf(s.out, "   filled %s @ $%s\n", t.Quantity.StringFixed(2), t.Price.StringFixed(2))
	}
	if orderType == domain.OrderTypeMarket && len(trades) == 0 {
		fmt.Fprintln(s.out, "   no matching orders found")
	}
	return nil
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, &domain.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a number", s)}
	}
	return v, nil
}
