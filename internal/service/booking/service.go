// Package booking is the only mutation entry point for appointments. Every
// write runs its conflict check and its commit inside one schedule
// transaction, so the no-overlap invariant holds even with simultaneous
// callers.
package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"slotcore/internal/conflict"
	"slotcore/internal/domain"
	"slotcore/internal/store"
)

const (
	maxOwnerNameLen = 100
	maxNotesLen     = 500
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type Service struct {
	store store.AppointmentStore
}

func NewService(st store.AppointmentStore) *Service {
	return &Service{store: st}
}

type CreateInput struct {
	OwnerEmail string
	OwnerName  string
	Notes      string
	StartTime  time.Time
	EndTime    time.Time
}

// Create validates the input and inserts a confirmed appointment. The
// conflict check and the insert are one atomic unit; on overlap the colliding
// appointments are returned inside a *ConflictError.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	email := strings.TrimSpace(in.OwnerEmail)
	if !emailPattern.MatchString(email) {
		return domain.Appointment{}, validationError("owner_email is not a valid email address")
	}

	name := strings.TrimSpace(in.OwnerName)
	if name == "" {
		return domain.Appointment{}, validationError("owner_name is required")
	}
	if utf8.RuneCountInString(name) > maxOwnerNameLen {
		return domain.Appointment{}, validationError("owner_name must be at most 100 characters")
	}
	if utf8.RuneCountInString(in.Notes) > maxNotesLen {
		return domain.Appointment{}, validationError("notes must be at most 500 characters")
	}

	ival, err := domain.NewInterval(in.StartTime, in.EndTime)
	if err != nil {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	var out domain.Appointment
	err = s.mutate(ctx, ival, uuid.Nil, func(ctx context.Context, tx store.ScheduleTx) error {
		det := conflict.NewDetector(tx)
		conflicts, err := det.ListConflicts(ctx, ival, uuid.Nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		created, err := tx.Insert(ctx, domain.Appointment{
			OwnerEmail: email,
			OwnerName:  name,
			Notes:      in.Notes,
			StartTime:  ival.Start,
			EndTime:    ival.End,
			Status:     domain.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	return s.store.GetByID(ctx, id)
}

// List returns confirmed appointments intersecting [from, to), ordered by
// start time.
func (s *Service) List(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	from = from.UTC()
	to = to.UTC()
	if !to.After(from) {
		return nil, validationError("to must be after from")
	}
	return s.store.ListByDateRange(ctx, from, to)
}

type UpdateInput struct {
	StartTime *time.Time
	EndTime   *time.Time
	Notes     *string
}

// Update changes an appointment's interval and/or notes. An interval change
// is re-checked against every other confirmed appointment, excluding the
// record itself so an unchanged or shrunk interval never conflicts with its
// own booking.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	if (in.StartTime == nil) != (in.EndTime == nil) {
		return domain.Appointment{}, validationError("start_time and end_time must be provided together")
	}
	if in.StartTime == nil && in.Notes == nil {
		return domain.Appointment{}, validationError("nothing to update")
	}
	if in.Notes != nil && utf8.RuneCountInString(*in.Notes) > maxNotesLen {
		return domain.Appointment{}, validationError("notes must be at most 500 characters")
	}

	var newIval *domain.Interval
	if in.StartTime != nil {
		iv, err := domain.NewInterval(*in.StartTime, *in.EndTime)
		if err != nil {
			return domain.Appointment{}, validationError("end_time must be after start_time")
		}
		newIval = &iv
	}

	checkIval := domain.Interval{}
	if newIval != nil {
		checkIval = *newIval
	}

	var out domain.Appointment
	err := s.mutate(ctx, checkIval, id, func(ctx context.Context, tx store.ScheduleTx) error {
		cur, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return ErrInvalidState
		}

		patch := store.AppointmentPatch{Notes: in.Notes}
		if newIval != nil {
			det := conflict.NewDetector(tx)
			conflicts, err := det.ListConflicts(ctx, *newIval, id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}
			patch.StartTime = &newIval.Start
			patch.EndTime = &newIval.End
		}

		updated, err := tx.Update(ctx, id, patch)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// Cancel marks the appointment cancelled. Cancelling an already cancelled
// appointment returns the current state instead of erroring, which keeps
// client retries simple. A rescheduled appointment cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}

	var out domain.Appointment
	err := s.store.InScheduleTransaction(ctx, func(ctx context.Context, tx store.ScheduleTx) error {
		cur, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status == domain.StatusCancelled {
			out = cur
			return nil
		}
		if cur.Status == domain.StatusRescheduled {
			return ErrInvalidState
		}

		cancelled := domain.StatusCancelled
		updated, err := tx.Update(ctx, id, store.AppointmentPatch{Status: &cancelled})
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// Reschedule atomically marks the existing record rescheduled and creates a
// new confirmed record for the new interval, inheriting owner and notes. If
// the new interval conflicts, nothing changes.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, startTime, endTime time.Time) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("id is required")
	}
	ival, err := domain.NewInterval(startTime, endTime)
	if err != nil {
		return domain.Appointment{}, validationError("end_time must be after start_time")
	}

	var out domain.Appointment
	err = s.mutate(ctx, ival, id, func(ctx context.Context, tx store.ScheduleTx) error {
		cur, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status.Terminal() {
			return ErrInvalidState
		}

		det := conflict.NewDetector(tx)
		conflicts, err := det.ListConflicts(ctx, ival, id)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}

		rescheduled := domain.StatusRescheduled
		if _, err := tx.Update(ctx, id, store.AppointmentPatch{Status: &rescheduled}); err != nil {
			return err
		}

		created, err := tx.Insert(ctx, domain.Appointment{
			OwnerEmail: cur.OwnerEmail,
			OwnerName:  cur.OwnerName,
			Notes:      cur.Notes,
			StartTime:  ival.Start,
			EndTime:    ival.End,
			Status:     domain.StatusConfirmed,
		})
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// mutate runs fn in a schedule transaction. If the store's overlap guard
// fires at commit time despite the in-transaction check, fn is retried once
// with a fresh check; a second failure surfaces as *ConflictError so callers
// see the same error kind as a pre-write conflict.
func (s *Service) mutate(ctx context.Context, ival domain.Interval, excludeID uuid.UUID, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	err := s.store.InScheduleTransaction(ctx, fn)
	if !errors.Is(err, store.ErrStoreConflict) {
		return err
	}

	err = s.store.InScheduleTransaction(ctx, fn)
	if !errors.Is(err, store.ErrStoreConflict) {
		return err
	}

	conflicts, lookupErr := s.store.FindOverlapping(ctx, ival, excludeID)
	if lookupErr != nil {
		return &ConflictError{}
	}
	return &ConflictError{Conflicts: conflicts}
}
