package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/ledger"
	"github.com/shopspring/decimal"
)

const maxOrderIDRetries = 3

// Errors returned by the checkout service.
var (
	ErrEmptyItems      = fmt.Errorf("%w: items are required", apperr.ErrInvalidInput)
	ErrInvalidQuantity = fmt.Errorf("%w: quantity must be > 0", apperr.ErrInvalidInput)
	ErrInvalidItemName = fmt.Errorf("%w: item name is required", apperr.ErrInvalidInput)
	ErrItemNotOnMenu   = fmt.Errorf("%w: item not on the menu", apperr.ErrInvalidInput)
)

// OrderLedger defines the ledger methods needed to place orders.
// Satisfied by *ledger.Ledger; narrow interface for testability.
type OrderLedger interface {
	NextID(ctx context.Context, customerID string, today time.Time) (string, error)
	Append(ctx context.Context, o ledger.Order) error
}

// PriceList resolves menu prices by item name.
// Satisfied by *menu.Catalog.
type PriceList interface {
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// CheckoutRequest is the cart a customer submits.
type CheckoutRequest struct {
	CustomerID string
	Items      []CheckoutItem
}

// CheckoutItem is one line of the cart.
type CheckoutItem struct {
	Name     string
	Quantity int
}

// CheckoutService prices a cart against the menu and records it as a new
// Pending order.
type CheckoutService struct {
	ledger OrderLedger
	prices PriceList
	now    func() time.Time
}

// NewCheckoutService creates a new CheckoutService.
func NewCheckoutService(l OrderLedger, prices PriceList) *CheckoutService {
	return &CheckoutService{ledger: l, prices: prices, now: time.Now}
}

// Checkout validates the cart, computes the total as the sum of price times
// quantity, and writes the order. Lines naming the same item are merged.
// Retries up to maxOrderIDRetries times when a concurrent checkout took the
// allocated id first.
func (s *CheckoutService) Checkout(ctx context.Context, req CheckoutRequest) (ledger.Order, error) {
	if err := ledger.ValidateCustomerID(req.CustomerID); err != nil {
		return ledger.Order{}, err
	}
	if len(req.Items) == 0 {
		return ledger.Order{}, ErrEmptyItems
	}

	contents := make(ledger.Contents, len(req.Items))
	for i, item := range req.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return ledger.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidItemName)
		}
		if item.Quantity <= 0 {
			return ledger.Order{}, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		contents[name] += item.Quantity
	}

	prices, err := s.prices.Prices(ctx)
	if err != nil {
		return ledger.Order{}, fmt.Errorf("load menu prices: %w", err)
	}
	total := decimal.Zero
	for _, name := range contents.Names() {
		price, ok := prices[name]
		if !ok {
			return ledger.Order{}, fmt.Errorf("%q: %w", name, ErrItemNotOnMenu)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(contents[name]))))
	}
	total = total.Round(2)

	var lastErr error
	for attempt := 0; attempt < maxOrderIDRetries; attempt++ {
		id, err := s.ledger.NextID(ctx, req.CustomerID, s.now())
		if err != nil {
			return ledger.Order{}, fmt.Errorf("next order id: %w", err)
		}
		o := ledger.Order{
			ID:         id,
			CustomerID: req.CustomerID,
			Contents:   contents,
			Total:      total,
			Status:     ledger.StatusPending,
		}
		err = s.ledger.Append(ctx, o)
		if err == nil {
			return o, nil
		}
		if errors.Is(err, apperr.ErrDuplicateOrder) {
			lastErr = err
			continue
		}
		return ledger.Order{}, err
	}
	return ledger.Order{}, lastErr
}
