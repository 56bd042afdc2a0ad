package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/kiwari-pos/orderledger/internal/csvstore"
	"golang.org/x/sync/errgroup"
)

// Problem classifies a disagreement between the global and a customer ledger.
type Problem string

const (
	MissingInCustomer Problem = "missing_in_customer"
	MissingInGlobal   Problem = "missing_in_global"
	Mismatch          Problem = "mismatch"
)

// auditWorkers bounds how many customer ledgers are read at once.
const auditWorkers = 4

// Discrepancy is one order the two ledgers disagree on.
type Discrepancy struct {
	CustomerID string
	OrderID    string
	Problem    Problem
	Global     *Order
	Customer   *Order
}

// AuditReport is the result of comparing every customer ledger with the
// global one.
type AuditReport struct {
	Customers     int
	Orders        int
	Discrepancies []Discrepancy
}

// Consistent reports whether the audit found nothing to fix.
func (r *AuditReport) Consistent() bool { return len(r.Discrepancies) == 0 }

// Audit compares each customer ledger with that customer's orders in the
// global ledger. Stores are read one at a time, so writes running during the
// audit may show up as discrepancies.
func (l *Ledger) Audit(ctx context.Context) (*AuditReport, error) {
	global, err := l.ReadAll(ctx, Global)
	if err != nil {
		return nil, err
	}

	byCustomer := make(map[string]map[string]Order)
	for _, o := range global {
		if byCustomer[o.CustomerID] == nil {
			byCustomer[o.CustomerID] = make(map[string]Order)
		}
		byCustomer[o.CustomerID][o.ID] = o
	}

	files, err := l.Customers(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[string]bool, len(files)+len(byCustomer))
	for _, id := range files {
		set[id] = true
	}
	for id := range byCustomer {
		if ValidateCustomerID(id) == nil {
			set[id] = true
		}
	}
	customers := make([]string, 0, len(set))
	for id := range set {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	results := make([][]Discrepancy, len(customers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditWorkers)
	for i, id := range customers {
		g.Go(func() error {
			orders, err := l.ReadAll(gctx, CustomerStore(id))
			if err != nil {
				return err
			}
			results[i] = compare(id, byCustomer[id], orders)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &AuditReport{Customers: len(customers), Orders: len(global)}
	for _, ds := range results {
		report.Discrepancies = append(report.Discrepancies, ds...)
	}
	return report, nil
}

func compare(customerID string, want map[string]Order, got []Order) []Discrepancy {
	var out []Discrepancy
	seen := make(map[string]bool, len(got))
	for _, o := range got {
		seen[o.ID] = true
		g, ok := want[o.ID]
		switch {
		case !ok:
			out = append(out, Discrepancy{CustomerID: customerID, OrderID: o.ID, Problem: MissingInGlobal, Customer: &o})
		case !g.Equal(o):
			out = append(out, Discrepancy{CustomerID: customerID, OrderID: o.ID, Problem: Mismatch, Global: &g, Customer: &o})
		}
	}

	ids := make([]string, 0, len(want))
	for id := range want {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		g := want[id]
		out = append(out, Discrepancy{CustomerID: customerID, OrderID: id, Problem: MissingInCustomer, Global: &g})
	}
	return out
}

// Repair brings customer ledgers back in line with the global ledger for the
// discrepancies in report. Orders missing from the global ledger are only
// reported. It returns the number of orders fixed.
func (l *Ledger) Repair(ctx context.Context, report *AuditReport) (int, error) {
	work := make(map[string][]Discrepancy)
	for _, d := range report.Discrepancies {
		if d.Problem == MissingInGlobal {
			l.logger.Printf("WARN: order %s of customer %s is missing from the global ledger; left as is", d.OrderID, d.CustomerID)
			continue
		}
		work[d.CustomerID] = append(work[d.CustomerID], d)
	}

	customers := make([]string, 0, len(work))
	for id := range work {
		customers = append(customers, id)
	}
	sort.Strings(customers)

	fixed := 0
	for _, id := range customers {
		n, err := l.repairCustomer(ctx, id, work[id])
		fixed += n
		if err != nil {
			return fixed, err
		}
	}
	return fixed, nil
}

func (l *Ledger) repairCustomer(ctx context.Context, customerID string, ds []Discrepancy) (int, error) {
	s := CustomerStore(customerID)
	unlock := l.locks.Lock(l.Path(s))
	defer unlock()

	t, _, err := l.load(ctx, s)
	if err != nil {
		return 0, err
	}
	if len(t.Unparsed) > 0 {
		return 0, malformed(s, "repair", fmt.Errorf("lines %v are not valid CSV", t.Unparsed))
	}

	fixed := 0
	for _, d := range ds {
		values := encodeOrder(*d.Global)
		switch d.Problem {
		case MissingInCustomer:
			if hasID(t, d.OrderID) {
				continue
			}
			t.Add(values)
			fixed++
		case Mismatch:
			for i := range t.Rows {
				if t.Get(t.Rows[i], ColOrderID) == d.OrderID {
					t.Rows[i] = csvstore.Row{Line: t.Rows[i].Line, Fields: t.Record(values)}
					fixed++
				}
			}
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	if err := l.rewrite(ctx, s, t); err != nil {
		return 0, err
	}
	l.logger.Printf("INFO: repaired %d orders in %s", fixed, s)
	return fixed, nil
}
