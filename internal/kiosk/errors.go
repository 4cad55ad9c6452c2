package kiosk

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart blocks submission locally; no request is sent.
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidTransition  = errors.New("operation not allowed in current screen")
	ErrSubmitInFlight     = errors.New("order submission already in flight")
	ErrUnknownMenuItem    = errors.New("unknown menu item")
	ErrPhoneRequired      = errors.New("phone number is required")
	ErrRegistrationFailed = errors.New("registration failed")
	ErrControllerStopped  = errors.New("kiosk is shutting down")
)

// IndexOutOfRangeError reports a cart removal at a position that does not exist.
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("cart index %d out of range (len %d)", e.Index, e.Len)
}

// OrderRejectedError means the backend answered the order request with a
// non-success status. The cart is left untouched.
type OrderRejectedError struct {
	StatusCode int
	Body       string
}

func (e *OrderRejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("order rejected with status %d", e.StatusCode)
	}
	return fmt.Sprintf("order rejected with status %d: %s", e.StatusCode, e.Body)
}

// TransportError wraps network and decoding failures talking to the backend.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
