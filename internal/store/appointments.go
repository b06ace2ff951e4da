package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slotcore/internal/domain"
)

// AppointmentPatch is a partial update. Nil fields are left untouched;
// updated_at is always set by the store.
type AppointmentPatch struct {
	StartTime *time.Time
	EndTime   *time.Time
	Notes     *string
	Status    *domain.AppointmentStatus
}

// OverlapFinder is the read surface the conflict detector needs. Both the
// store itself and an in-flight ScheduleTx satisfy it, so the same detector
// runs inside and outside a mutation transaction.
type OverlapFinder interface {
	// FindOverlapping returns every confirmed appointment whose half-open
	// interval overlaps ival, ordered by start time. excludeID, when not
	// uuid.Nil, removes that record from consideration.
	FindOverlapping(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error)
}

// ScheduleTx is the mutation surface available inside a calendar transaction.
type ScheduleTx interface {
	OverlapFinder

	Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	Update(ctx context.Context, id uuid.UUID, patch AppointmentPatch) (domain.Appointment, error)
}

// AppointmentStore is the durable record of appointments. Mutations go
// through InScheduleTransaction, which serializes the conflict check and the
// write into one indivisible unit.
type AppointmentStore interface {
	OverlapFinder

	GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error)

	// ListByDateRange returns confirmed appointments intersecting
	// [from, to), ordered by start time ascending.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Appointment, error)

	// InScheduleTransaction runs fn holding the calendar write lock. No
	// other mutation can observe a state between fn's reads and its writes.
	InScheduleTransaction(ctx context.Context, fn func(ctx context.Context, tx ScheduleTx) error) error
}
