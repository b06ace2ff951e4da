package booking

import (
	"errors"
	"fmt"

	"slotcore/internal/domain"
)

// ErrInvalidState marks a mutation attempted on a terminal (cancelled or
// rescheduled) appointment.
var ErrInvalidState = errors.New("appointment is in a terminal state")

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// ConflictError reports that a candidate interval overlaps one or more
// confirmed appointments. The colliding records are attached so the caller
// can render a useful message; the coordinator never silently picks an
// alternative slot.
type ConflictError struct {
	Conflicts []domain.Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("requested interval overlaps %d confirmed appointment(s)", len(e.Conflicts))
}
