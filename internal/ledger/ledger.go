// Package ledger keeps the order ledgers of the restaurant: one global CSV file
// with every order and one CSV file per customer. Each order is written to both
// files and the two copies are kept in step on every status change.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/csvstore"
	"github.com/shopspring/decimal"
)

// Ledger reads and writes the order stores under one data directory.
// It is safe for concurrent use within a process.
type Ledger struct {
	dir    string
	locks  *csvstore.Locker
	logger *log.Logger
	now    func() time.Time

	retries    int
	retryDelay time.Duration

	// File operations; replaced in tests to inject failures.
	readTable  func(path string) (*csvstore.Table, error)
	writeTable func(path string, t *csvstore.Table) error
	appendRows func(path string, header []string, records ...[]string) error
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger used for skipped rows and partial writes.
func WithLogger(l *log.Logger) Option {
	return func(lg *Ledger) { lg.logger = l }
}

// WithClock sets the clock that dates new order ids.
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) { lg.now = now }
}

// WithRetry retries reads and full rewrites that fail with a store error up to
// attempts more times, waiting delay between tries. Appends are never retried.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(lg *Ledger) {
		lg.retries = attempts
		lg.retryDelay = delay
	}
}

// New creates a Ledger over dir. The directory is created if needed.
func New(dir string, opts ...Option) (*Ledger, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: data directory is required", apperr.ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	l := &Ledger{
		dir:        dir,
		locks:      csvstore.NewLocker(),
		logger:     log.Default(),
		now:        time.Now,
		readTable:  csvstore.Read,
		writeTable: csvstore.WriteAtomic,
		appendRows: csvstore.Append,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Dir returns the data directory.
func (l *Ledger) Dir() string { return l.dir }

// Path returns the file backing s.
func (l *Ledger) Path(s Store) string {
	return filepath.Join(l.dir, s.FileName())
}

// load reads the table of s. A missing or empty file yields an empty table with
// the default header and exists=false.
func (l *Ledger) load(ctx context.Context, s Store) (t *csvstore.Table, exists bool, err error) {
	err = l.withRetry(ctx, func() error {
		tbl, rerr := l.readTable(l.Path(s))
		if errors.Is(rerr, os.ErrNotExist) {
			t, exists = csvstore.New(Header), false
			return nil
		}
		if rerr != nil {
			return unavailable(s, "read", rerr)
		}
		if len(tbl.Header) == 0 {
			t, exists = csvstore.New(Header), false
			return nil
		}
		if herr := csvstore.CheckHeader(tbl.Header, Header); herr != nil {
			return unavailable(s, "read", herr)
		}
		t, exists = tbl, true
		return nil
	})
	return t, exists, err
}

func (l *Ledger) withRetry(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l.retries <= 0 {
		return op()
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(l.retryDelay), uint64(l.retries)),
		ctx,
	)
	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		l.logger.Printf("WARN: store operation failed, retrying in %s: %v", wait, err)
	})
}

// NextID returns the id the next order of customerID would get on today's
// date. It does not reserve the id; Checkout allocates and writes atomically.
func (l *Ledger) NextID(ctx context.Context, customerID string, today time.Time) (string, error) {
	if err := ValidateCustomerID(customerID); err != nil {
		return "", err
	}
	cust := CustomerStore(customerID)

	unlock := l.locks.Lock(l.Path(Global), l.Path(cust))
	defer unlock()

	ct, _, err := l.load(ctx, cust)
	if err != nil {
		return "", err
	}
	gt, _, err := l.load(ctx, Global)
	if err != nil {
		return "", err
	}
	return allocate(customerID, today, ct, gt), nil
}

// Checkout allocates a fresh id for customerID and appends the new Pending
// order to both stores.
func (l *Ledger) Checkout(ctx context.Context, customerID string, contents Contents, total decimal.Decimal) (Order, error) {
	o := Order{ID: "pending", CustomerID: customerID, Contents: contents, Total: total, Status: StatusPending}
	if err := o.validate(); err != nil {
		return Order{}, err
	}
	cust := CustomerStore(customerID)

	unlock := l.locks.Lock(l.Path(Global), l.Path(cust))
	defer unlock()

	gt, _, err := l.load(ctx, Global)
	if err != nil {
		return Order{}, err
	}
	ct, _, err := l.load(ctx, cust)
	if err != nil {
		return Order{}, err
	}

	o.ID = allocate(customerID, l.now(), ct, gt)
	if err := l.appendBoth(o, gt, ct); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Append writes a fully formed order to the global store, then to the
// customer's store. An id already present in either store is rejected.
func (l *Ledger) Append(ctx context.Context, o Order) error {
	if err := o.validate(); err != nil {
		return err
	}
	cust := CustomerStore(o.CustomerID)

	unlock := l.locks.Lock(l.Path(Global), l.Path(cust))
	defer unlock()

	gt, _, err := l.load(ctx, Global)
	if err != nil {
		return err
	}
	ct, _, err := l.load(ctx, cust)
	if err != nil {
		return err
	}
	for _, t := range []*csvstore.Table{gt, ct} {
		if hasID(t, o.ID) {
			return fmt.Errorf("%w: %s", apperr.ErrDuplicateOrder, o.ID)
		}
	}
	return l.appendBoth(o, gt, ct)
}

// appendBoth must be called with both store locks held and after both tables
// loaded without error, so a failure here is never a bad header or a bad row.
func (l *Ledger) appendBoth(o Order, gt, ct *csvstore.Table) error {
	cust := CustomerStore(o.CustomerID)
	values := encodeOrder(o)

	if err := l.appendRows(l.Path(Global), gt.Header, gt.Record(values)); err != nil {
		return unavailable(Global, "append", err)
	}

	if err := l.appendRows(l.Path(cust), ct.Header, ct.Record(values)); err != nil {
		perr := &PartialError{OrderID: o.ID, Written: Global, Failed: cust, Err: unavailable(cust, "append", err)}
		l.logger.Printf("ERROR: %v", perr)
		return perr
	}
	return nil
}

func hasID(t *csvstore.Table, id string) bool {
	for _, r := range t.Rows {
		if t.Get(r, ColOrderID) == id {
			return true
		}
	}
	return false
}
