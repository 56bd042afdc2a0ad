package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// --- Mock implementations ---

// mockLedger implements OrderLedger with configurable behavior.
type mockLedger struct {
	nextIDFn func(ctx context.Context, customerID string, today time.Time) (string, error)
	appendFn func(ctx context.Context, o ledger.Order) error
}

func (m *mockLedger) NextID(ctx context.Context, customerID string, today time.Time) (string, error) {
	return m.nextIDFn(ctx, customerID, today)
}
func (m *mockLedger) Append(ctx context.Context, o ledger.Order) error {
	return m.appendFn(ctx, o)
}

// mockPrices implements PriceList.
type mockPrices struct {
	prices map[string]decimal.Decimal
	err    error
}

func (m *mockPrices) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	return m.prices, m.err
}

// --- Test helpers ---

func defaultPrices() *mockPrices {
	return &mockPrices{prices: map[string]decimal.Decimal{
		"Pizza": decimal.NewFromInt(150),
		"Soda":  decimal.NewFromInt(40),
		"Tea":   decimal.RequireFromString("12.25"),
	}}
}

// defaultLedger hands out sequential ids and records every appended order.
func defaultLedger(appended *[]ledger.Order) *mockLedger {
	seq := 0
	return &mockLedger{
		nextIDFn: func(ctx context.Context, customerID string, today time.Time) (string, error) {
			seq++
			return fmt.Sprintf("%s%d", ledger.IDPrefix(customerID, today), seq), nil
		},
		appendFn: func(ctx context.Context, o ledger.Order) error {
			*appended = append(*appended, o)
			return nil
		},
	}
}

func newTestService(l OrderLedger, p PriceList) *CheckoutService {
	svc := NewCheckoutService(l, p)
	svc.now = func() time.Time { return time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

// =====================
// Validation tests
// =====================

func TestCheckout_EmptyItems(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{CustomerID: "bob"})
	if !errors.Is(err, ErrEmptyItems) {
		t.Fatalf("expected ErrEmptyItems, got: %v", err)
	}
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput kind, got: %v", err)
	}
}

func TestCheckout_ZeroQuantity(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 0}},
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got: %v", err)
	}
}

func TestCheckout_BlankItemName(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "  ", Quantity: 1}},
	})
	if !errors.Is(err, ErrInvalidItemName) {
		t.Fatalf("expected ErrInvalidItemName, got: %v", err)
	}
}

func TestCheckout_ItemNotOnMenu(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Sushi", Quantity: 1}},
	})
	if !errors.Is(err, ErrItemNotOnMenu) {
		t.Fatalf("expected ErrItemNotOnMenu, got: %v", err)
	}
	if len(appended) != 0 {
		t.Errorf("order written despite unknown item")
	}
}

func TestCheckout_InvalidCustomer(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "../bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 1}},
	})
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got: %v", err)
	}
}

// =====================
// Pricing tests
// =====================

func TestCheckout_TotalIsPriceTimesQuantity(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items: []CheckoutItem{
			{Name: "Pizza", Quantity: 2},
			{Name: "Soda", Quantity: 1},
			{Name: "Tea", Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 2*150 + 1*40 + 3*12.25 = 376.75
	if o.Total.StringFixed(2) != "376.75" {
		t.Errorf("total: got %s, want 376.75", o.Total.StringFixed(2))
	}
	if o.ID != "010124bob1" {
		t.Errorf("id: got %s, want 010124bob1", o.ID)
	}
	if o.Status != ledger.StatusPending {
		t.Errorf("status: got %s, want Pending", o.Status)
	}
	if len(appended) != 1 || !appended[0].Equal(o) {
		t.Errorf("appended: %+v", appended)
	}
}

func TestCheckout_MergesDuplicateLines(t *testing.T) {
	var appended []ledger.Order
	svc := newTestService(defaultLedger(&appended), defaultPrices())

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items: []CheckoutItem{
			{Name: "Pizza", Quantity: 1},
			{Name: " Pizza ", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Contents["Pizza"] != 3 || len(o.Contents) != 1 {
		t.Errorf("contents: %v", o.Contents)
	}
	if o.Total.StringFixed(2) != "450.00" {
		t.Errorf("total: got %s, want 450.00", o.Total.StringFixed(2))
	}
}

func TestCheckout_MenuUnavailable(t *testing.T) {
	var appended []ledger.Order
	prices := &mockPrices{err: apperr.ErrStoreUnavailable}
	svc := newTestService(defaultLedger(&appended), prices)

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 1}},
	})
	if !errors.Is(err, apperr.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got: %v", err)
	}
}

// =====================
// Retry on duplicate id (concurrent checkout)
// =====================

func TestCheckout_RetryOnDuplicateOrder(t *testing.T) {
	var appended []ledger.Order
	l := defaultLedger(&appended)
	callCount := 0
	l.appendFn = func(ctx context.Context, o ledger.Order) error {
		callCount++
		if callCount == 1 {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateOrder, o.ID)
		}
		appended = append(appended, o)
		return nil
	}
	svc := newTestService(l, defaultPrices())

	o, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error after retry: %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected 2 append calls, got %d", callCount)
	}
	if o.ID != "010124bob2" {
		t.Errorf("id after retry: got %s, want 010124bob2", o.ID)
	}
}

func TestCheckout_RetryExhausted(t *testing.T) {
	var appended []ledger.Order
	l := defaultLedger(&appended)
	callCount := 0
	l.appendFn = func(ctx context.Context, o ledger.Order) error {
		callCount++
		return fmt.Errorf("%w: %s", apperr.ErrDuplicateOrder, o.ID)
	}
	svc := newTestService(l, defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 1}},
	})
	if !errors.Is(err, apperr.ErrDuplicateOrder) {
		t.Fatalf("expected ErrDuplicateOrder, got: %v", err)
	}
	if callCount != maxOrderIDRetries {
		t.Errorf("expected %d attempts, got %d", maxOrderIDRetries, callCount)
	}
}

func TestCheckout_NoRetryOnOtherErrors(t *testing.T) {
	var appended []ledger.Order
	l := defaultLedger(&appended)
	callCount := 0
	l.appendFn = func(ctx context.Context, o ledger.Order) error {
		callCount++
		return &ledger.PartialError{OrderID: o.ID, Written: ledger.Global, Failed: ledger.CustomerStore("bob"), Err: errors.New("disk full")}
	}
	svc := newTestService(l, defaultPrices())

	_, err := svc.Checkout(context.Background(), CheckoutRequest{
		CustomerID: "bob",
		Items:      []CheckoutItem{{Name: "Pizza", Quantity: 1}},
	})
	if !errors.Is(err, apperr.ErrPartialConsistency) {
		t.Fatalf("expected ErrPartialConsistency, got: %v", err)
	}
	if callCount != 1 {
		t.Errorf("non-duplicate errors should not retry: expected 1 call, got %d", callCount)
	}
}

// =====================
// Against the real ledger
// =====================

func TestCheckout_WithLedger(t *testing.T) {
	l, err := ledger.New(t.TempDir(), ledger.WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }))
	if err != nil {
		t.Fatal(err)
	}
	svc := newTestService(l, defaultPrices())
	ctx := context.Background()

	for want := 1; want <= 2; want++ {
		o, err := svc.Checkout(ctx, CheckoutRequest{
			CustomerID: "bob",
			Items:      []CheckoutItem{{Name: "Pizza", Quantity: 2}, {Name: "Soda", Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("checkout %d: %v", want, err)
		}
		if o.ID != fmt.Sprintf("010124bob%d", want) || o.Total.StringFixed(2) != "340.00" {
			t.Errorf("checkout %d: id %s total %s", want, o.ID, o.Total.StringFixed(2))
		}
	}

	pending, err := l.ReadPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("pending: got %d, want 2", len(pending))
	}
}
