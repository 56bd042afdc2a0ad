package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/shopspring/decimal"
)

func order(id, customer string, items ledger.Contents, st ledger.Status) ledger.Order {
	return ledger.Order{ID: id, CustomerID: customer, Contents: items, Total: decimal.NewFromInt(10), Status: st}
}

func sampleOrders() []ledger.Order {
	return []ledger.Order{
		order("010124bob1", "bob", ledger.Contents{"Pizza": 2}, ledger.StatusPending),
		order("010124carol1", "carol", ledger.Contents{"Garlic Bread": 1}, ledger.StatusPreparing),
		order("010124bob2", "bob", ledger.Contents{"Soda": 1}, ledger.StatusPending),
		order("020124dave1", "dave", ledger.Contents{"Mango Lassi": 1, "Pizza": 1}, ledger.StatusDelivered),
	}
}

func ids(orders []ledger.Order) string {
	s := ""
	for i, o := range orders {
		if i > 0 {
			s += ","
		}
		s += o.ID
	}
	return s
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name string
		term string
		want string
	}{
		{"empty term keeps all", "", "010124bob1,010124carol1,010124bob2,020124dave1"},
		{"order id", "bob2", "010124bob2"},
		{"customer id ignores case", "CAROL", "010124carol1"},
		{"item name", "pizza", "010124bob1,020124dave1"},
		{"item substring", "lass", "020124dave1"},
		{"date prefix", "020124", "020124dave1"},
		{"no match", "sushi", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ids(Search(sampleOrders(), tt.term)); got != tt.want {
				t.Errorf("Search(%q) = %s, want %s", tt.term, got, tt.want)
			}
		})
	}
}

func TestFilterStatusAndMostRecentFirst(t *testing.T) {
	pending := FilterStatus(sampleOrders(), ledger.StatusPending)
	if got := ids(pending); got != "010124bob1,010124bob2" {
		t.Errorf("FilterStatus = %s", got)
	}
	if got := ids(MostRecentFirst(sampleOrders())); got != "020124dave1,010124bob2,010124carol1,010124bob1" {
		t.Errorf("MostRecentFirst = %s", got)
	}
}

func TestPaginate(t *testing.T) {
	var orders []ledger.Order
	for i := 1; i <= 14; i++ {
		orders = append(orders, order(fmt.Sprintf("010124bob%d", i), "bob", ledger.Contents{"Soda": 1}, ledger.StatusPending))
	}

	tests := []struct {
		name     string
		page     int
		perPage  int
		wantPage int
		wantLen  int
		wantID   string
	}{
		{"first page default size", 1, 0, 1, 6, "010124bob1"},
		{"last partial page", 3, 0, 3, 2, "010124bob13"},
		{"page past end clamps", 9, 0, 3, 2, "010124bob13"},
		{"page zero clamps", 0, 0, 1, 6, "010124bob1"},
		{"custom size", 2, 10, 2, 4, "010124bob11"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Paginate(orders, tt.page, tt.perPage)
			if p.Page != tt.wantPage || len(p.Orders) != tt.wantLen || p.Orders[0].ID != tt.wantID {
				t.Errorf("Paginate(%d, %d) = page %d, %d orders, first %s", tt.page, tt.perPage, p.Page, len(p.Orders), p.Orders[0].ID)
			}
			if p.Total != 14 {
				t.Errorf("total: got %d", p.Total)
			}
		})
	}

	empty := Paginate(nil, 1, 0)
	if empty.Pages != 1 || len(empty.Orders) != 0 {
		t.Errorf("empty: %+v", empty)
	}
}

func TestPollerRefreshesImmediatelyAndOnInterval(t *testing.T) {
	var calls atomic.Int32
	refreshed := make(chan int, 10)

	p := &Poller{
		Interval: 10 * time.Millisecond,
		Fetch: func(ctx context.Context) ([]ledger.Order, error) {
			calls.Add(1)
			return sampleOrders(), nil
		},
		OnRefresh: func(orders []ledger.Order) { refreshed <- len(orders) },
	}
	h := p.Start(context.Background())
	defer h.Stop()

	for i := 0; i < 3; i++ {
		select {
		case n := <-refreshed:
			if n != 4 {
				t.Errorf("refresh %d: %d orders", i, n)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("refresh %d never happened", i)
		}
	}
}

func TestPollerSkipsTicksWhilePaused(t *testing.T) {
	var paused atomic.Bool
	paused.Store(true)
	var calls atomic.Int32

	p := &Poller{
		Interval: 5 * time.Millisecond,
		Paused:   paused.Load,
		Fetch: func(ctx context.Context) ([]ledger.Order, error) {
			calls.Add(1)
			return nil, nil
		},
	}
	h := p.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Errorf("fetches while paused: got %d, want only the initial one", got)
	}

	paused.Store(false)
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Stop()
	if calls.Load() < 2 {
		t.Error("poller did not resume after pause")
	}
}

func TestPollerReportsErrorsAndStops(t *testing.T) {
	var mu sync.Mutex
	var errs []error
	boom := errors.New("store unavailable")

	p := &Poller{
		Interval: time.Hour,
		Fetch: func(ctx context.Context) ([]ledger.Order, error) {
			return nil, boom
		},
		OnRefresh: func([]ledger.Order) { t.Error("OnRefresh called after failed fetch") },
		OnError: func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		},
	}
	h := p.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(errs)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	default:
		t.Error("Done not closed after Stop")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(errs) != 1 || !errors.Is(errs[0], boom) {
		t.Errorf("errors: %v", errs)
	}
}
