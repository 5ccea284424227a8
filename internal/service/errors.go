// Package service holds the reservation, payment and quote use cases. Every
// domain violation is reported as one of the sentinel errors below, wrapped
// with context; handlers match them with errors.Is. Any other error comes
// from infrastructure and is returned unmodified.
package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/venue-reservation/internal/store"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrConflict          = errors.New("conflict")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	// ErrPaymentDeclined is returned by Process after the gateway refused the
	// charge and the payment was marked FAILED.
	ErrPaymentDeclined = errors.New("payment declined")
)

func validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalTransition, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// notFound converts store.ErrNotFound into ErrNotFound for the named entity
// and passes every other error through.
func notFound(err error, entity string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, entity)
	}
	return err
}
