// Package errors defines the domain error taxonomy of the event-graph core.
// Adapters translate store faults into these values at the boundary; nothing
// above the adapter layer ever sees a gorm or pg error.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("item not found")
	ErrAlreadyExists       = errors.New("item already exists")
	ErrConflict            = errors.New("conflict")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNoSeatsAvailable    = errors.New("no seats available")
	ErrAlreadyReserved     = errors.New("seat already reserved")
	ErrCapacityConflict    = errors.New("capacity below occupied seats")
	ErrInsufficientOptions = errors.New("poll would have fewer than two options")
	ErrReservedName        = errors.New("attribute name is reserved")
	ErrRateLimited         = errors.New("rate limited")
	ErrConcurrencyConflict = errors.New("concurrent modification")
	ErrTokenReused         = errors.New("refresh token already rotated")
	ErrUnchanged           = errors.New("not modified")
	ErrStoreUnavailable    = errors.New("store unavailable")
	ErrInternal            = errors.New("internal error")
)

// InvalidError carries the offending field so the transport layer can build
// a field-level 400 response.
type InvalidError struct {
	Field   string
	Message string
}

func (e InvalidError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func Invalid(field, message string) error {
	return InvalidError{Field: field, Message: message}
}

func IsInvalid(err error) bool {
	var invalid InvalidError
	return errors.As(err, &invalid)
}

// HTTPStatus is the contract the external transport layer maps with. The
// core does not serve HTTP; the table lives here so the mapping stays next
// to the taxonomy it covers.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return 200
	case IsInvalid(err):
		return 400
	case errors.Is(err, ErrNotFound):
		return 404
	case errors.Is(err, ErrUnauthorized):
		return 401
	case errors.Is(err, ErrForbidden):
		return 403
	case errors.Is(err, ErrUnchanged):
		return 304
	case errors.Is(err, ErrRateLimited):
		return 429
	case errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNoSeatsAvailable),
		errors.Is(err, ErrAlreadyReserved),
		errors.Is(err, ErrCapacityConflict),
		errors.Is(err, ErrInsufficientOptions),
		errors.Is(err, ErrConcurrencyConflict),
		errors.Is(err, ErrTokenReused):
		return 409
	case errors.Is(err, ErrReservedName):
		return 400
	case errors.Is(err, ErrStoreUnavailable):
		return 503
	default:
		return 500
	}
}
