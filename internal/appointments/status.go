package appointments

import (
	"errors"
	"fmt"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Active statuses hold their slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

// ErrInvalidTransition is returned for any move the lifecycle does not allow.
var ErrInvalidTransition = errors.New("appointments: invalid status transition")

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Entry names how an appointment enters the lifecycle.
type Entry string

const (
	// EntryDirect is a pro-bono booking with no payment gate.
	EntryDirect Entry = "direct"
	// EntryPaymentVerified is a paid booking created after its payment callback verified.
	EntryPaymentVerified Entry = "payment_verified"
)

// InitialStatus is the status a new appointment is created in for the entry.
func (e Entry) InitialStatus() (Status, error) {
	switch e {
	case EntryDirect, EntryPaymentVerified:
		return StatusConfirmed, nil
	default:
		return "", fmt.Errorf("%w: unknown entry %q", ErrInvalidReservation, e)
	}
}

func (e Entry) requiresPayment() bool {
	return e == EntryPaymentVerified
}
