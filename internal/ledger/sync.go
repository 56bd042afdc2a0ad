package ledger

import (
	"context"
	"fmt"

	"github.com/kiwari-pos/orderledger/internal/csvstore"
)

// UpdateStatus sets the status of orderID in the global ledger and in the
// ledger of customerID. Both stores are read and checked before either is
// rewritten; a store whose row already carries status is left untouched.
// Any status may follow any other.
func (l *Ledger) UpdateStatus(ctx context.Context, orderID, customerID string, status Status) error {
	st, err := ParseStatus(string(status))
	if err != nil {
		return err
	}
	if err := ValidateCustomerID(customerID); err != nil {
		return err
	}
	cust := CustomerStore(customerID)

	unlock := l.locks.Lock(l.Path(Global), l.Path(cust))
	defer unlock()

	gt, gChanged, err := l.prepareStatus(ctx, Global, orderID, st)
	if err != nil {
		return err
	}
	ct, cChanged, err := l.prepareStatus(ctx, cust, orderID, st)
	if err != nil {
		return err
	}

	if gChanged {
		if err := l.rewrite(ctx, Global, gt); err != nil {
			return err
		}
	}
	if cChanged {
		if err := l.rewrite(ctx, cust, ct); err != nil {
			if !gChanged {
				return err
			}
			perr := &PartialError{OrderID: orderID, Written: Global, Failed: cust, Err: err}
			l.logger.Printf("ERROR: %v", perr)
			return perr
		}
	}
	return nil
}

// prepareStatus loads s and sets the status of every row with orderID in
// memory. It reports whether any row changed.
func (l *Ledger) prepareStatus(ctx context.Context, s Store, orderID string, st Status) (*csvstore.Table, bool, error) {
	t, exists, err := l.load(ctx, s)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, notFound(s, "update status", orderID)
	}

	found, changed := false, false
	for i := range t.Rows {
		r := &t.Rows[i]
		if t.Get(*r, ColOrderID) != orderID {
			continue
		}
		found = true
		if t.Get(*r, ColStatus) == string(st) {
			continue
		}
		if !t.Set(r, ColStatus, string(st)) {
			return nil, false, malformed(s, "update status", fmt.Errorf("line %d: row has no status field", r.Line))
		}
		changed = true
	}
	if !found {
		return nil, false, notFound(s, "update status", orderID)
	}
	if changed && len(t.Unparsed) > 0 {
		return nil, false, malformed(s, "update status",
			fmt.Errorf("lines %v are not valid CSV and would be lost by a rewrite", t.Unparsed))
	}
	return t, changed, nil
}

func (l *Ledger) rewrite(ctx context.Context, s Store, t *csvstore.Table) error {
	return l.withRetry(ctx, func() error {
		if err := l.writeTable(l.Path(s), t); err != nil {
			return unavailable(s, "rewrite", err)
		}
		return nil
	})
}
