// Package conflict decides whether a candidate interval collides with any
// confirmed appointment. It never mutates state; overlap is reported as data,
// not as an error.
package conflict

import (
	"context"

	"github.com/google/uuid"

	"slotcore/internal/domain"
	"slotcore/internal/store"
)

// Detector answers overlap questions against an appointment source. The
// source may be the store itself or an in-flight schedule transaction, so the
// booking path and the availability path share one definition of "conflict".
type Detector struct {
	finder store.OverlapFinder
}

func NewDetector(finder store.OverlapFinder) *Detector {
	return &Detector{finder: finder}
}

// HasConflict reports whether any confirmed appointment overlaps ival.
// Touching boundaries are not conflicts (half-open semantics).
func (d *Detector) HasConflict(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) (bool, error) {
	conflicts, err := d.finder.FindOverlapping(ctx, ival, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}

// ListConflicts returns the colliding appointments, ordered by start time, so
// callers can tell the user exactly what is in the way.
func (d *Detector) ListConflicts(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return d.finder.FindOverlapping(ctx, ival, excludeID)
}
