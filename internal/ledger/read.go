package ledger

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/kiwari-pos/orderledger/internal/apperr"
)

// SkippedRow is a line of a store that could not be decoded.
type SkippedRow struct {
	Line int
	Err  error
}

// ScanResult holds the decoded orders of a store in file order, plus the rows
// that were skipped.
type ScanResult struct {
	Orders  []Order
	Skipped []SkippedRow
}

// Scan reads every order of s. Malformed rows do not fail the scan; each one is
// logged and listed in Skipped. A missing store has no orders.
func (l *Ledger) Scan(ctx context.Context, s Store) (*ScanResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}

	unlock := l.locks.Lock(l.Path(s))
	t, _, err := l.load(ctx, s)
	unlock()
	if err != nil {
		return nil, err
	}

	res := &ScanResult{Orders: make([]Order, 0, len(t.Rows))}
	for _, line := range t.Unparsed {
		res.Skipped = append(res.Skipped, SkippedRow{
			Line: line,
			Err:  fmt.Errorf("%w: line %d: not valid CSV", apperr.ErrMalformedRecord, line),
		})
	}
	for _, r := range t.Rows {
		o, err := decodeRow(t, r)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedRow{Line: r.Line, Err: malformed(s, "read", err)})
			continue
		}
		res.Orders = append(res.Orders, o)
	}
	sort.SliceStable(res.Skipped, func(i, j int) bool { return res.Skipped[i].Line < res.Skipped[j].Line })

	for _, sk := range res.Skipped {
		l.logger.Printf("WARN: %s line %d skipped: %v", s, sk.Line, sk.Err)
	}
	return res, nil
}

// ReadAll returns every well-formed order of s in file order.
func (l *Ledger) ReadAll(ctx context.Context, s Store) ([]Order, error) {
	res, err := l.Scan(ctx, s)
	if err != nil {
		return nil, err
	}
	return res.Orders, nil
}

// ReadPending returns the Pending orders of the global ledger in file order.
func (l *Ledger) ReadPending(ctx context.Context) ([]Order, error) {
	all, err := l.ReadAll(ctx, Global)
	if err != nil {
		return nil, err
	}
	pending := make([]Order, 0, len(all))
	for _, o := range all {
		if o.Status == StatusPending {
			pending = append(pending, o)
		}
	}
	return pending, nil
}

// Find returns the order with orderID from the global ledger.
func (l *Ledger) Find(ctx context.Context, orderID string) (Order, error) {
	all, err := l.ReadAll(ctx, Global)
	if err != nil {
		return Order{}, err
	}
	for _, o := range all {
		if o.ID == orderID {
			return o, nil
		}
	}
	return Order{}, notFound(Global, "find", orderID)
}

// Customers lists the customers that have a store file, sorted.
func (l *Ledger) Customers(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, unavailable(Global, "list customers", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if id, ok := customerFromFile(e.Name()); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
