// Package apperr defines the error kinds shared by the ledger, the catalog and
// the front ends, and maps them to machine kinds, HTTP statuses and messages.
package apperr

import (
	"context"
	"errors"
	"net/http"
)

// Ledger failure kinds.
var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrMalformedRecord    = errors.New("malformed record")
	ErrOrderNotFound      = errors.New("order not found")
	ErrPartialConsistency = errors.New("partial consistency")
)

// Request and lookup failures.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateOrder     = errors.New("duplicate order id")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("already exists")
)

// Kind returns a stable identifier for err, suitable for JSON bodies and logs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""

	// Partial writes usually wrap a store failure, so they are matched first.
	case errors.Is(err, ErrPartialConsistency):
		return "partial_consistency"

	case errors.Is(err, ErrOrderNotFound):
		return "order_not_found"

	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"

	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"

	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"

	case errors.Is(err, ErrDuplicateOrder):
		return "duplicate_order"

	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

// HTTPStatus maps err to the response status used by the API.
func HTTPStatus(err error) int {
	switch Kind(err) {
	case "":
		return http.StatusOK
	case "invalid_input":
		return http.StatusBadRequest
	case "invalid_credentials":
		return http.StatusUnauthorized
	case "order_not_found", "not_found":
		return http.StatusNotFound
	case "duplicate_order", "conflict":
		return http.StatusConflict
	case "store_unavailable":
		return http.StatusServiceUnavailable
	case "timeout":
		return http.StatusGatewayTimeout
	case "canceled":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Message returns a sentence an operator can act on. Validation errors carry
// their own detail, so their full text is returned.
func Message(err error) string {
	switch Kind(err) {
	case "":
		return ""
	case "partial_consistency":
		return "order saved to the main ledger but not to the customer ledger; run an audit to reconcile"
	case "order_not_found":
		return "order not found"
	case "malformed_record":
		return "stored record could not be read"
	case "store_unavailable":
		return "order storage is unavailable, try again later"
	case "invalid_input", "not_found", "conflict":
		return err.Error()
	case "duplicate_order":
		return "order id already in use, try again"
	case "invalid_credentials":
		return "invalid username or password"
	case "timeout":
		return "request timed out"
	case "canceled":
		return "request canceled"
	default:
		return "internal error"
	}
}
