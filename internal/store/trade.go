package store

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
)

// TradeStore is a thread-safe, append-only, chronological trade log. It
// keeps a running volume total so statistics don't rescan the log.
type TradeStore struct {
	mu     sync.RWMutex
	trades []domain.Trade
	volume decimal.Decimal
}

// NewTradeStore creates an empty TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		trades: make([]domain.Trade, 0),
		volume: decimal.Zero,
	}
}

// Append adds a trade to the end of the log.
func (s *TradeStore) Append(t domain.Trade) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = append(s.trades, t)
	s.volume = s.volume.Add(t.Quantity)
}

// All returns every trade in chronological order. The returned slice is
// a copy.
func (s *TradeStore) All() []domain.Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Trade, len(s.trades))
	copy(result, s.trades)
	return result
}

// Last returns the most recent trade, or false if the log is empty.
func (s *TradeStore) Last() (domain.Trade, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.trades) == 0 {
		return domain.Trade{}, false
	}
	return s.trades[len(s.trades)-1], true
}

// Len returns the number of trades recorded.
func (s *TradeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades)
}

// Volume returns the cumulative traded quantity.
func (s *TradeStore) Volume() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.volume
}

// Reset empties the log.
func (s *TradeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = make([]domain.Trade, 0)
	s.volume = decimal.Zero
}
