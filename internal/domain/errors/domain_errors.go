package errors

import (
	"errors"
	"fmt"
)

var (
	// Subscription errors
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrSubscriberNotFound    = errors.New("subscriber not found")
	ErrInvalidState          = errors.New("subscription is not in the required state")
	ErrSubscriptionCancelled = errors.New("subscription has been cancelled")

	// Payment errors
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrNoSavedPaymentCard = errors.New("no saved payment method")

	// Infrastructure errors
	ErrDatabase                   = errors.New("database error")
	ErrExternalServiceUnavailable = errors.New("external service unavailable")
)

// NotFoundError wraps an error with not found context
type NotFoundError struct {
	Entity string
	ID     string
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with id '%s' not found: %v", e.Entity, e.ID, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// NewSubscriptionNotFound returns a NotFoundError for a subscription id
func NewSubscriptionNotFound(id string) *NotFoundError {
	return &NotFoundError{Entity: "subscription", ID: id, Err: ErrSubscriptionNotFound}
}

// InvalidStateError is returned when an operation requires a different subscription state
type InvalidStateError struct {
	Operation string
	Current   string
	Required  string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: subscription is %s, requires %s", e.Operation, e.Current, e.Required)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// DatabaseError marks a failure in the persistence layer. It is recoverable:
// callers log it and continue with the failure path.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database error during %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() []error {
	return []error{ErrDatabase, e.Err}
}

// NewDatabaseError wraps err unless it is nil or already classified
func NewDatabaseError(op string, err error) error {
	if err == nil {
		return nil
	}
	var nf *NotFoundError
	var db *DatabaseError
	if errors.As(err, &nf) || errors.As(err, &db) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

// IsNotFound reports whether err is any not-found error
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDatabase reports whether err originated in the persistence layer
func IsDatabase(err error) bool {
	return errors.Is(err, ErrDatabase)
}
