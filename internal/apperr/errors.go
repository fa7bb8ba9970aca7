package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalid signals malformed input.
	ErrInvalid = errors.New("invalid input")
	// ErrInvalidItems signals a malformed or unknown order line.
	ErrInvalidItems = errors.New("invalid items")
	// ErrForbidden signals that the actor lacks the role or ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated signals a missing or broken credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidState signals an operation that is not legal in the current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrOutOfStock signals an inventory guard failure.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInsufficientStock is the ledger-level name of ErrOutOfStock.
	ErrInsufficientStock = ErrOutOfStock
	// ErrDriverUnavailable signals a failed assignment guard.
	ErrDriverUnavailable = errors.New("driver unavailable")
	// ErrOutsideGeofence signals a completion attempt too far from the destination.
	ErrOutsideGeofence = errors.New("outside geofence")
	// ErrNotFound signals that the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrGateway signals that the payment provider call failed.
	ErrGateway = errors.New("gateway error")
	// ErrConflict signals a uniqueness conflict.
	ErrConflict = errors.New("conflict")
)

// StockError carries the shortage of a single product.
type StockError struct {
	ProductID int64
	Name      string
	Requested int
	Available int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("out of stock: product %d (%s) requested %d, available %d",
		e.ProductID, e.Name, e.Requested, e.Available)
}

// Is reports ErrOutOfStock.
func (e *StockError) Is(target error) bool { return target == ErrOutOfStock }

// GeofenceError carries the measured distance and the allowed radius.
type GeofenceError struct {
	DistanceKm float64
	RadiusKm   float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("outside geofence: %.3f km away, allowed %.3f km", e.DistanceKm, e.RadiusKm)
}

// Is reports ErrOutsideGeofence.
func (e *GeofenceError) Is(target error) bool { return target == ErrOutsideGeofence }

// ItemError names the offending order line.
type ItemError struct {
	ProductID int64
	Reason    string
}

func (e *ItemError) Error() string {
	if e.ProductID == 0 {
		return "invalid items: " + e.Reason
	}
	return fmt.Sprintf("invalid items: product %d: %s", e.ProductID, e.Reason)
}

// Is reports ErrInvalidItems.
func (e *ItemError) Is(target error) bool { return target == ErrInvalidItems }

// Gateway wraps a provider failure so that it matches ErrGateway.
func Gateway(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrGateway, err)
}

// Kind returns the stable error kind used in API payloads.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidItems):
		return "invalid_items"
	case errors.Is(err, ErrInvalid):
		return "invalid_input"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrDriverUnavailable):
		return "driver_unavailable"
	case errors.Is(err, ErrOutsideGeofence):
		return "outside_geofence"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrGateway):
		return "gateway_error"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
