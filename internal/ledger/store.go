package ledger

import (
	"fmt"
	"strings"

	"github.com/kiwari-pos/orderledger/internal/csvstore"
	"github.com/shopspring/decimal"
)

// Column names of both ledgers.
const (
	ColOrderID    = "OrderID"
	ColCustomerID = "CustomerID"
	ColContents   = "Contents"
	ColTotal      = "Total"
	ColStatus     = "Status"
)

// Header is the column layout used when a ledger file is created.
var Header = []string{ColOrderID, ColCustomerID, ColContents, ColTotal, ColStatus}

const (
	globalFile     = "orders.csv"
	customerSuffix = "_orders.csv"
)

// Store names one ledger: the global one or a single customer's.
type Store struct {
	customerID string
}

// Global is the ledger holding every order.
var Global = Store{}

// CustomerStore names the ledger of one customer.
func CustomerStore(customerID string) Store {
	return Store{customerID: customerID}
}

func (s Store) IsGlobal() bool     { return s.customerID == "" }
func (s Store) CustomerID() string { return s.customerID }

// FileName is the file the store lives in, relative to the data directory.
func (s Store) FileName() string {
	if s.IsGlobal() {
		return globalFile
	}
	return s.customerID + customerSuffix
}

func (s Store) String() string {
	if s.IsGlobal() {
		return "global ledger"
	}
	return fmt.Sprintf("ledger of customer %q", s.customerID)
}

func (s Store) validate() error {
	if s.IsGlobal() {
		return nil
	}
	return ValidateCustomerID(s.customerID)
}

// customerFromFile is the inverse of FileName for customer stores.
func customerFromFile(name string) (string, bool) {
	id, ok := strings.CutSuffix(name, customerSuffix)
	if !ok || ValidateCustomerID(id) != nil {
		return "", false
	}
	return id, true
}

func encodeOrder(o Order) map[string]string {
	return map[string]string{
		ColOrderID:    o.ID,
		ColCustomerID: o.CustomerID,
		ColContents:   EncodeContents(o.Contents),
		ColTotal:      o.Total.StringFixed(2),
		ColStatus:     string(o.Status),
	}
}

func decodeRow(t *csvstore.Table, r csvstore.Row) (Order, error) {
	if !t.Complete(r) {
		return Order{}, fmt.Errorf("line %d: got %d fields, want %d", r.Line, len(r.Fields), len(t.Header))
	}

	o := Order{
		ID:         t.Get(r, ColOrderID),
		CustomerID: t.Get(r, ColCustomerID),
	}
	if strings.TrimSpace(o.ID) == "" {
		return Order{}, fmt.Errorf("line %d: empty order id", r.Line)
	}
	if o.CustomerID == "" {
		return Order{}, fmt.Errorf("line %d: empty customer id", r.Line)
	}

	contents, err := DecodeContents(t.Get(r, ColContents))
	if err != nil {
		return Order{}, fmt.Errorf("line %d: %w", r.Line, err)
	}
	o.Contents = contents

	total, err := decimal.NewFromString(strings.TrimSpace(t.Get(r, ColTotal)))
	if err != nil {
		return Order{}, fmt.Errorf("line %d: total %q: %w", r.Line, t.Get(r, ColTotal), err)
	}
	if total.IsNegative() {
		return Order{}, fmt.Errorf("line %d: negative total %s", r.Line, total)
	}
	o.Total = total

	status, err := ParseStatus(t.Get(r, ColStatus))
	if err != nil {
		return Order{}, fmt.Errorf("line %d: %w", r.Line, err)
	}
	o.Status = status
	return o, nil
}
