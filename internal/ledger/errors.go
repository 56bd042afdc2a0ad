package ledger

import (
	"errors"
	"fmt"

	"github.com/kiwari-pos/orderledger/internal/apperr"
	"github.com/kiwari-pos/orderledger/internal/csvstore"
)

// StoreError ties a failure to the store and operation it happened in.
type StoreError struct {
	Store Store
	Op    string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Store, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// PartialError reports a two-store write where the global ledger was updated
// and the customer ledger was not. The stores disagree until repaired.
type PartialError struct {
	OrderID string
	Written Store
	Failed  Store
	Err     error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("order %s written to %s but not to %s: %v", e.OrderID, e.Written, e.Failed, e.Err)
}

func (e *PartialError) Unwrap() []error {
	return []error{apperr.ErrPartialConsistency, e.Err}
}

func unavailable(s Store, op string, err error) error {
	return &StoreError{Store: s, Op: op, Err: fmt.Errorf("%w: %w", apperr.ErrStoreUnavailable, err)}
}

func malformed(s Store, op string, err error) error {
	return &StoreError{Store: s, Op: op, Err: fmt.Errorf("%w: %w", apperr.ErrMalformedRecord, err)}
}

func notFound(s Store, op, orderID string) error {
	return &StoreError{Store: s, Op: op, Err: fmt.Errorf("%w: %s", apperr.ErrOrderNotFound, orderID)}
}

// retryable reports whether err is a transient store failure. A wrong header
// will not fix itself.
func retryable(err error) bool {
	return errors.Is(err, apperr.ErrStoreUnavailable) && !errors.Is(err, csvstore.ErrHeaderMismatch)
}
