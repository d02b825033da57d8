package game

import (
	"context"
	"errors"
	"net/http"

	"github.com/moneypool/payout-engine/internal/gate"
	"github.com/moneypool/payout-engine/internal/lucky"
	"github.com/moneypool/payout-engine/internal/stake"
	"github.com/moneypool/payout-engine/internal/store"
)

// ValidationError reports malformed input rejected at the boundary.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Msg: msg}
}

// StorageError wraps a ledger failure. The original cause stays reachable
// through errors.Is / errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// storageErr keeps the sentinels that callers branch on and wraps the rest.
func storageErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrVersionConflict) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// statusFor maps a service error to its HTTP status.
func statusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, stake.ErrInvalidStake),
		errors.Is(err, stake.ErrInsufficientFunds),
		errors.Is(err, lucky.ErrInvalidPicks):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, gate.ErrBusy), errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// reason is the metrics label for a rejected play.
func reason(err error) string {
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		if errors.Is(err, gate.ErrBusy) {
			return "busy"
		}
		return "conflict"
	case http.StatusServiceUnavailable:
		return "timeout"
	default:
		return "storage"
	}
}
