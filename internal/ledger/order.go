package ledger

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/enum"
	"github.com/shopspring/decimal"
)

// Status is the only mutable field of an order.
type Status string

const (
	StatusPending   Status = enum.OrderStatusPending
	StatusPreparing Status = enum.OrderStatusPreparing
	StatusDelivered Status = enum.OrderStatusDelivered
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusPreparing, StatusDelivered}

// ParseStatus accepts a status name in any letter case.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if strings.EqualFold(strings.TrimSpace(s), string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidInput, s)
}

// Contents maps an item name to the ordered quantity.
type Contents map[string]int

// Validate checks that c is non-empty with valid names and positive quantities.
func (c Contents) Validate() error {
	if len(c) == 0 {
		return fmt.Errorf("%w: contents are empty", apperr.ErrInvalidInput)
	}
	for name, qty := range c {
		if strings.TrimSpace(name) == "" || !utf8.ValidString(name) {
			return fmt.Errorf("%w: invalid item name %q", apperr.ErrInvalidInput, name)
		}
		if qty <= 0 {
			return fmt.Errorf("%w: quantity for %q must be > 0", apperr.ErrInvalidInput, name)
		}
	}
	return nil
}

// Names returns the item names in sorted order.
func (c Contents) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Equal reports whether c and o hold the same items and quantities.
func (c Contents) Equal(o Contents) bool {
	if len(c) != len(o) {
		return false
	}
	for name, qty := range c {
		if oq, ok := o[name]; !ok || oq != qty {
			return false
		}
	}
	return true
}

// Order is one row of a ledger.
type Order struct {
	ID         string
	CustomerID string
	Contents   Contents
	Total      decimal.Decimal
	Status     Status
}

// Equal compares every field; totals compare by value.
func (o Order) Equal(p Order) bool {
	return o.ID == p.ID &&
		o.CustomerID == p.CustomerID &&
		o.Contents.Equal(p.Contents) &&
		o.Total.Equal(p.Total) &&
		o.Status == p.Status
}

// validate checks o and rewrites its status in canonical form.
func (o *Order) validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: order id is required", apperr.ErrInvalidInput)
	}
	if err := ValidateCustomerID(o.CustomerID); err != nil {
		return err
	}
	if err := o.Contents.Validate(); err != nil {
		return err
	}
	if o.Total.IsNegative() {
		return fmt.Errorf("%w: total must not be negative", apperr.ErrInvalidInput)
	}
	st, err := ParseStatus(string(o.Status))
	if err != nil {
		return err
	}
	o.Status = st
	return nil
}

// ValidateCustomerID rejects ids that cannot safely name a store file.
func ValidateCustomerID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: customer id is required", apperr.ErrInvalidInput)
	case id != strings.TrimSpace(id):
		return fmt.Errorf("%w: customer id has surrounding spaces", apperr.ErrInvalidInput)
	case id == "." || id == ".." || strings.ContainsAny(id, `/\:`):
		return fmt.Errorf("%w: customer id %q is not a valid name", apperr.ErrInvalidInput, id)
	}
	for _, r := range id {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: customer id contains control characters", apperr.ErrInvalidInput)
		}
	}
	return nil
}
