// Package booking composes slot legality, the reservation guard and the
// payment gateway into the direct and payment-gated booking flows.
package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation                = errors.New("booking: invalid request")
	ErrForbidden                 = errors.New("booking: caller may not perform this booking")
	ErrBookingConflict           = errors.New("booking: slot already booked")
	ErrPaymentVerificationFailed = errors.New("booking: payment verification failed")
	ErrPostPaymentConflict       = errors.New("booking: payment captured but slot was lost")
	ErrUpstreamGateway           = errors.New("booking: payment gateway unavailable")
	ErrOrderNotFound             = errors.New("booking: payment order not found or expired")
	ErrRateLimited               = errors.New("booking: too many payment orders")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PostPaymentError carries what support needs to refund a payment whose
// slot went to another booking while the payment was in flight.
type PostPaymentError struct {
	OrderID        string
	PaymentID      string
	ClientID       uuid.UUID
	ProfessionalID uuid.UUID
	StartsAt       time.Time
	Amount         int64
	Currency       string
}

func (e *PostPaymentError) Error() string {
	return fmt.Sprintf("booking: payment %s for order %s captured but slot %s with professional %s was taken",
		e.PaymentID, e.OrderID, e.StartsAt.UTC().Format(time.RFC3339), e.ProfessionalID)
}

func (e *PostPaymentError) Is(target error) bool {
	return target == ErrPostPaymentConflict
}
