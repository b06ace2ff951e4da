package conflict

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"slotcore/internal/domain"
)

type fakeFinder struct {
	findFn func(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error)
}

func (f *fakeFinder) FindOverlapping(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return f.findFn(ctx, ival, excludeID)
}

func TestHasConflict(t *testing.T) {
	base := time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC)
	ival := domain.Interval{Start: base, End: base.Add(time.Hour)}

	t.Run("no rows means no conflict", func(t *testing.T) {
		det := NewDetector(&fakeFinder{
			findFn: func(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
				return nil, nil
			},
		})

		got, err := det.HasConflict(context.Background(), ival, uuid.Nil)
		if err != nil {
			t.Fatalf("HasConflict error: %v", err)
		}
		if got {
			t.Fatalf("HasConflict = true, want false")
		}
	})

	t.Run("any row means conflict", func(t *testing.T) {
		det := NewDetector(&fakeFinder{
			findFn: func(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
				return []domain.Appointment{{ID: uuid.New()}}, nil
			},
		})

		got, err := det.HasConflict(context.Background(), ival, uuid.Nil)
		if err != nil {
			t.Fatalf("HasConflict error: %v", err)
		}
		if !got {
			t.Fatalf("HasConflict = false, want true")
		}
	})

	t.Run("propagates store errors", func(t *testing.T) {
		boom := errors.New("boom")
		det := NewDetector(&fakeFinder{
			findFn: func(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
				return nil, boom
			},
		})

		_, err := det.HasConflict(context.Background(), ival, uuid.Nil)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})
}

func TestListConflicts_PassesExcludeID(t *testing.T) {
	base := time.Date(2024, 12, 15, 10, 0, 0, 0, time.UTC)
	ival := domain.Interval{Start: base, End: base.Add(time.Hour)}
	exclude := uuid.New()

	var gotExclude uuid.UUID
	det := NewDetector(&fakeFinder{
		findFn: func(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
			gotExclude = excludeID
			return nil, nil
		},
	})

	if _, err := det.ListConflicts(context.Background(), ival, exclude); err != nil {
		t.Fatalf("ListConflicts error: %v", err)
	}
	if gotExclude != exclude {
		t.Fatalf("excludeID = %s, want %s", gotExclude, exclude)
	}
}
