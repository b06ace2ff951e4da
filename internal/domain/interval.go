package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidInterval = errors.New("end time must be after start time")

// Interval is a half-open [Start, End) time range. Both bounds are stored
// normalized to UTC; the end instant itself is excluded, so back-to-back
// intervals do not overlap.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval normalizes both bounds to UTC and rejects empty or inverted
// ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether the two half-open ranges share any instant.
// Touching boundaries (i.End == o.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
