// Package report renders books, statistics and simulation results as
// aligned text tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
	"github.com/efreitasn/dexsim/internal/engine"
	"github.com/efreitasn/dexsim/internal/simulator"
)

const absent = "-"

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func price(p decimal.Decimal) string {
	return "$" + p.StringFixed(2)
}

func optPrice(p *decimal.Decimal) string {
	if p == nil {
		return absent
	}
	return price(*p)
}

func qty(q decimal.Decimal) string {
	return q.StringFixed(2)
}

func heading(w io.Writer, title string) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintf(w, "%s\n%s\n%s\n", rule, title, rule)
}

// WriteBook prints the book's headline figures followed by bid and ask
// levels side by side, best prices on the first row.
func WriteBook(w io.Writer, depth engine.Depth, stats engine.Stats) error {
	heading(w, "ORDER BOOK")
	fmt.Fprintf(w, "Best Bid: %s  |  Best Ask: %s  |  Spread: %s  |  Mid: %s\n",
		optPrice(stats.BestBid), optPrice(stats.BestAsk), optPrice(depth.Spread), optPrice(depth.MidPrice))
	fmt.Fprintf(w, "Total Orders: %d  |  Active: %d  |  Trades: %d\n\n",
		stats.TotalOrders, stats.ActiveOrders, stats.TotalTrades)

	tw := newTable(w)
	fmt.Fprintln(tw, "BID QTY\tBID\tORDERS\t|\tASK\tASK QTY\tORDERS")
	rows := max(len(depth.Bids), len(depth.Asks))
	for i := 0; i < rows; i++ {
		bid := []string{"", "", ""}
		if i < len(depth.Bids) {
			l := depth.Bids[i]
			bid = []string{qty(l.Quantity), price(l.Price), fmt.Sprint(l.OrderCount)}
		}
		ask := []string{"", "", ""}
		if i < len(depth.Asks) {
			l := depth.Asks[i]
			ask = []string{price(l.Price), qty(l.Quantity), fmt.Sprint(l.OrderCount)}
		}
		fmt.Fprintf(tw, "%s\t|\t%s\n", strings.Join(bid, "\t"), strings.Join(ask, "\t"))
	}
	if rows == 0 {
		fmt.Fprintln(tw, "(empty)\t\t\t|\t\t\t")
	}
	return tw.Flush()
}

// WriteStats prints every book statistic on its own line.
func WriteStats(w io.Writer, stats engine.Stats) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "Total Orders:\t%d\n", stats.TotalOrders)
	fmt.Fprintf(tw, "Active Orders:\t%d\n", stats.ActiveOrders)
	fmt.Fprintf(tw, "Resting Buys:\t%d\n", stats.BuyOrders)
	fmt.Fprintf(tw, "Resting Sells:\t%d\n", stats.SellOrders)
	fmt.Fprintf(tw, "Total Trades:\t%d\n", stats.TotalTrades)
	fmt.Fprintf(tw, "Total Volume:\t%s\n", qty(stats.TotalVolume))
	fmt.Fprintf(tw, "Best Bid:\t%s\n", optPrice(stats.BestBid))
	fmt.Fprintf(tw, "Best Ask:\t%s\n", optPrice(stats.BestAsk))
	fmt.Fprintf(tw, "Spread:\t%s\n", optPrice(stats.Spread))
	fmt.Fprintf(tw, "Mid Price:\t%s\n", optPrice(stats.MidPrice))
	return tw.Flush()
}

// WriteStep prints one simulation tick.
func WriteStep(w io.Writer, snap simulator.StepSnapshot) error {
	heading(w, fmt.Sprintf("STEP %d", snap.Step))
	tw := newTable(w)
	fmt.Fprintf(tw, "Price:\t%s\n", price(snap.Price))
	fmt.Fprintf(tw, "Volume:\t%s\n", qty(snap.Volume))
	fmt.Fprintf(tw, "Orders Placed:\t%d\n", snap.OrdersPlaced)
	fmt.Fprintf(tw, "Trades Executed:\t%d\n", snap.TradesExecuted)
	fmt.Fprintf(tw, "Active Orders:\t%d\n", snap.Stats.ActiveOrders)
	fmt.Fprintf(tw, "Best Bid:\t%s\n", optPrice(snap.Stats.BestBid))
	fmt.Fprintf(tw, "Best Ask:\t%s\n", optPrice(snap.Stats.BestAsk))
	fmt.Fprintf(tw, "Spread:\t%s\n", optPrice(snap.Stats.Spread))
	return tw.Flush()
}

// WriteSummary prints the totals of a simulation run.
func WriteSummary(w io.Writer, s simulator.Summary) error {
	heading(w, "SIMULATION SUMMARY")
	tw := newTable(w)
	fmt.Fprintf(tw, "Total Steps:\t%d\n", s.TotalSteps)
	fmt.Fprintf(tw, "Initial Price:\t%s\n", price(s.InitialPrice))
	fmt.Fprintf(tw, "Final Price:\t%s\n", price(s.FinalPrice))
	fmt.Fprintf(tw, "Price Change:\t%s (%s%%)\n", price(s.PriceChange), s.PriceChangePct.StringFixed(2))
	fmt.Fprintf(tw, "Total Volume:\t%s\n", qty(s.TotalVolume))
	fmt.Fprintf(tw, "Avg Volume per Step:\t%s\n", qty(s.AvgVolumePerStep))
	fmt.Fprintf(tw, "Total Trades:\t%d\n", s.TotalTrades)
	fmt.Fprintf(tw, "Total Orders:\t%d\n", s.TotalOrders)
	fmt.Fprintf(tw, "Active Orders:\t%d\n", s.ActiveOrders)
	return tw.Flush()
}

// WriteTrades prints one row per trade, oldest first.
func WriteTrades(w io.Writer, trades []domain.Trade) error {
	if len(trades) == 0 {
		_, err := fmt.Fprintln(w, "No trades.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tQTY\tPRICE\tNOTIONAL\tBUYER\tSELLER\tAGGRESSOR")
	for i, t := range trades {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, qty(t.Quantity), price(t.Price), price(t.Notional()), t.BuyerID, t.SellerID, t.AggressorSide)
	}
	return tw.Flush()
}

// WriteOrders prints one row per order in the order given.
func WriteOrders(w io.Writer, orders []domain.OrderSnapshot) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, "No orders.")
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTRADER\tSIDE\tTYPE\tPRICE\tQTY\tFILLED\tSTATUS")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.OrderID, o.TraderID, o.Side, o.OrderType, optPrice(o.Price),
			qty(o.Quantity), qty(o.FilledQuantity), o.Status)
	}
	return tw.Flush()
}

// WriteTraders prints per-trader bookkeeping.
func WriteTraders(w io.Writer, traders []simulator.TraderStats) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "TRADER\tSTRATEGY\tORDERS\tTRADES\tPOSITION")
	for _, t := range traders {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			t.TraderID, t.Strategy, t.OrdersPlaced, t.TradesExecuted, qty(t.Position))
	}
	return tw.Flush()
}

// WriteQuote prints the estimated fill of a market order.
func WriteQuote(w io.Writer, q engine.QuoteResult) error {
	fmt.Fprintf(w, "Market %s %s: ", q.Side, qty(q.QuantityRequested))
	if q.EstimatedAvgPrice == nil {
		_, err := fmt.Fprintln(w, "no liquidity")
		return err
	}
	fill := "fully fillable"
	if !q.FullyFillable {
		fill = "only " + qty(q.QuantityAvailable) + " available"
	}
	_, err := fmt.Fprintf(w, "avg %s, total %s across %d level(s), %s\n",
		optPrice(q.EstimatedAvgPrice), optPrice(q.EstimatedTotal), len(q.PriceLevels), fill)
	return err
}

// WriteJSON encodes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
