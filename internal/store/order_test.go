package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/dexsim/internal/domain"
)

func newTestOrder(t *testing.T, id, traderID string, ts time.Time) *domain.Order {
	t.Helper()
	price := decimal.NewFromInt(100)
	o, err := domain.NewOrder(traderID, domain.SideBuy, domain.OrderTypeLimit, decimal.NewFromInt(10), &price,
		domain.WithID(id), domain.WithTimestamp(ts))
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	return o
}

func TestOrderStore_Create_and_Get(t *testing.T) {
	s := NewOrderStore()
	o := newTestOrder(t, "order-1", "trader-1", time.Now())

	if err := s.Create(o); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	got, err := s.Get("order-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != o {
		t.Fatal("Get returned a different order")
	}

	if _, err := s.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_Create_Duplicate(t *testing.T) {
	s := NewOrderStore()
	_ = s.Create(newTestOrder(t, "order-1", "trader-1", time.Now()))

	err := s.Create(newTestOrder(t, "order-1", "trader-2", time.Now()))
	if !errors.Is(err, domain.ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 order, got %d", s.Len())
	}
}

func TestOrderStore_CountActive(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	o1 := newTestOrder(t, "o1", "trader-1", now)
	o2 := newTestOrder(t, "o2", "trader-1", now)
	o3 := newTestOrder(t, "o3", "trader-1", now)
	for _, o := range []*domain.Order{o1, o2, o3} {
		_ = s.Create(o)
	}

	_ = o2.Fill(decimal.NewFromInt(10))
	_ = o3.Cancel()

	if got := s.CountActive(); got != 1 {
		t.Fatalf("CountActive() = %d, want 1", got)
	}
}

func TestOrderStore_ListByTrader_NewestFirst(t *testing.T) {
	s := NewOrderStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_ = s.Create(newTestOrder(t, fmt.Sprintf("order-%d", i), "trader-1", base.Add(time.Duration(i)*time.Minute)))
	}

	orders, total := s.ListByTrader("trader-1", nil, 0)
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(orders) != 5 {
		t.Fatalf("expected 5 orders, got %d", len(orders))
	}
	for i := 0; i < len(orders)-1; i++ {
		if !orders[i].Timestamp().After(orders[i+1].Timestamp()) {
			t.Fatalf("orders not in reverse chronological order at index %d", i)
		}
	}
}

func TestOrderStore_ListByTrader_StatusFilter(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	for i := 0; i < 5; i++ {
		o := newTestOrder(t, fmt.Sprintf("order-%d", i), "trader-1", now)
		if i%2 == 1 {
			_ = o.Cancel()
		}
		_ = s.Create(o)
	}

	active := domain.OrderStatusActive
	orders, total := s.ListByTrader("trader-1", &active, 0)
	if total != 3 {
		t.Fatalf("expected total 3 active, got %d", total)
	}
	for _, o := range orders {
		if o.Status() != domain.OrderStatusActive {
			t.Fatalf("expected ACTIVE status, got %s", o.Status())
		}
	}
}

func TestOrderStore_ListByTrader_Limit(t *testing.T) {
	s := NewOrderStore()
	now := time.Now()

	for i := 0; i < 10; i++ {
		_ = s.Create(newTestOrder(t, fmt.Sprintf("order-%d", i), "trader-1", now))
	}

	tests := []struct {
		limit   int
		wantLen int
	}{
		{3, 3},
		{10, 10},
		{25, 10},
		{0, 10},
		{-1, 10},
	}
	for _, tt := range tests {
		orders, total := s.ListByTrader("trader-1", nil, tt.limit)
		if total != 10 {
			t.Fatalf("limit %d: expected total 10, got %d", tt.limit, total)
		}
		if len(orders) != tt.wantLen {
			t.Fatalf("limit %d: expected %d orders, got %d", tt.limit, tt.wantLen, len(orders))
		}
		if orders[0].ID() != "order-9" {
			t.Fatalf("limit %d: expected newest order-9 first, got %s", tt.limit, orders[0].ID())
		}
	}
}

func TestOrderStore_ListByTrader_UnknownTrader(t *testing.T) {
	s := NewOrderStore()

	orders, total := s.ListByTrader("nobody", nil, 0)
	if total != 0 || len(orders) != 0 {
		t.Fatalf("expected no orders, got %d (total %d)", len(orders), total)
	}
}

func TestOrderStore_Reset(t *testing.T) {
	s := NewOrderStore()
	_ = s.Create(newTestOrder(t, "o1", "trader-1", time.Now()))

	s.Reset()

	if s.Len() != 0 {
		t.Fatalf("expected empty store after Reset, got %d", s.Len())
	}
	if _, total := s.ListByTrader("trader-1", nil, 0); total != 0 {
		t.Fatalf("expected trader index cleared, got %d", total)
	}
}

func TestOrderStore_ConcurrentAccess(t *testing.T) {
	s := NewOrderStore()
	var wg sync.WaitGroup
	base := time.Now()

	orders := make([]*domain.Order, 100)
	for i := range orders {
		orders[i] = newTestOrder(t, fmt.Sprintf("order-%d", i), fmt.Sprintf("trader-%d", i%5), base)
	}

	for _, o := range orders {
		wg.Add(2)
		go func(o *domain.Order) {
			defer wg.Done()
			_ = s.Create(o)
		}(o)
		go func() {
			defer wg.Done()
			s.ListByTrader("trader-0", nil, 10)
		}()
	}
	wg.Wait()

	for b := 0; b < 5; b++ {
		_, total := s.ListByTrader(fmt.Sprintf("trader-%d", b), nil, 0)
		if total != 20 {
			t.Fatalf("trader-%d expected 20 orders, got %d", b, total)
		}
	}
}
