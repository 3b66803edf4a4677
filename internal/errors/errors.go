package errors

import (
	"errors"
	"fmt"
)

// Expected negative outcomes. These are not failures: callers report them as
// completed-without-delivery instead of propagating.
var (
	ErrNotFound = errors.New("not found")
	ErrDisabled = errors.New("disabled")
)

// ErrInvalid marks rejected input. The boundary renders it as a client error.
var ErrInvalid = errors.New("invalid input")

func NewInvalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalid)
}

// ConnectionError means the backing store could not be reached or kept alive.
// Retryable at the boundary, surfaced as "service unavailable".
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("store connection: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func NewConnection(err error) error {
	return &ConnectionError{Err: err}
}

// StoreError wraps a query failure. Not retried; surfaced as a processing
// error by the boundary.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func NewStore(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// DeliveryError is a terminal per-attempt webhook failure. StatusCode and
// Body carry the remote response when one was received; both are zero-valued
// for transport-level failures.
type DeliveryError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook delivery: %v", e.Err)
	}
	return fmt.Sprintf("webhook delivery: unexpected status %d", e.StatusCode)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

func IsDisabled(err error) bool {
	return errors.Is(err, ErrDisabled)
}

func IsConnection(err error) bool {
	var ce *ConnectionError
	return errors.As(err, &ce)
}

func IsStore(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// AsDelivery returns the DeliveryError inside err, or nil.
func AsDelivery(err error) *DeliveryError {
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	return nil
}
