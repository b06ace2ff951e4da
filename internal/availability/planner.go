// Package availability produces calendar views of bookable slots. It is a
// pure function over (date, operating hours, existing appointments): no
// ambient clock, the reference date always arrives as a parameter.
package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"slotcore/internal/conflict"
	"slotcore/internal/domain"
)

var (
	ErrInvalidSlotDuration   = errors.New("slot duration must be positive")
	ErrInvalidOperatingHours = errors.New("operating hours must close after they open")
	ErrInvalidDate           = errors.New("invalid calendar date")
)

// DayTime is a wall-clock time of day in the caller's timezone.
type DayTime struct {
	Hour   int
	Minute int
}

func (t DayTime) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

type OperatingHours struct {
	Open  DayTime
	Close DayTime
}

// Slot is a display-only candidate interval; it is never stored. Times are
// UTC.
type Slot struct {
	StartTime                time.Time  `json:"startTime"`
	EndTime                  time.Time  `json:"endTime"`
	Available                bool       `json:"isAvailable"`
	ConflictingAppointmentID *uuid.UUID `json:"conflictingAppointmentId,omitempty"`
}

type DaySummary struct {
	Day             int          `json:"day"`
	Weekday         time.Weekday `json:"weekday"`
	HasAppointments bool         `json:"hasAppointments"`
}

type DayRequest struct {
	Year         int
	Month        time.Month
	Day          int
	Location     *time.Location
	Hours        OperatingHours
	SlotDuration time.Duration
}

type MonthRequest struct {
	Year     int
	Month    time.Month
	Location *time.Location
	Hours    OperatingHours
}

// Planner enumerates slots and delegates every availability decision to the
// conflict detector, so the planner and the booking path can never disagree
// about what counts as a conflict.
type Planner struct {
	det *conflict.Detector
}

func NewPlanner(det *conflict.Detector) *Planner {
	return &Planner{det: det}
}

// DaySlots generates contiguous slots of SlotDuration between the operating
// hours of the given calendar day. The last slot never runs past closing
// time. Each slot is checked with the half-open overlap rule; an unavailable
// slot carries the id of the first conflicting appointment.
func (p *Planner) DaySlots(ctx context.Context, req DayRequest) ([]Slot, error) {
	if req.SlotDuration <= 0 {
		return nil, ErrInvalidSlotDuration
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	if !validDate(req.Year, req.Month, req.Day) {
		return nil, ErrInvalidDate
	}

	open := time.Date(req.Year, req.Month, req.Day, req.Hours.Open.Hour, req.Hours.Open.Minute, 0, 0, loc)
	close := time.Date(req.Year, req.Month, req.Day, req.Hours.Close.Hour, req.Hours.Close.Minute, 0, 0, loc)
	if !close.After(open) {
		return nil, ErrInvalidOperatingHours
	}

	var slots []Slot
	for cur := open; !cur.Add(req.SlotDuration).After(close); cur = cur.Add(req.SlotDuration) {
		ival, err := domain.NewInterval(cur, cur.Add(req.SlotDuration))
		if err != nil {
			return nil, err
		}

		conflicts, err := p.det.ListConflicts(ctx, ival, uuid.Nil)
		if err != nil {
			return nil, err
		}

		slot := Slot{
			StartTime: ival.Start,
			EndTime:   ival.End,
			Available: len(conflicts) == 0,
		}
		if len(conflicts) > 0 {
			id := conflicts[0].ID
			slot.ConflictingAppointmentID = &id
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// MonthOverview reports for each calendar day whether at least one confirmed
// appointment falls inside the day's operating window. Month lengths are
// calendar-correct, leap years included. Callers fetch slot detail lazily via
// DaySlots.
func (p *Planner) MonthOverview(ctx context.Context, req MonthRequest) ([]DaySummary, error) {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	if req.Month < time.January || req.Month > time.December {
		return nil, ErrInvalidDate
	}

	// day 0 of the next month is the last day of this one
	daysInMonth := time.Date(req.Year, req.Month+1, 0, 0, 0, 0, 0, loc).Day()

	out := make([]DaySummary, 0, daysInMonth)
	for day := 1; day <= daysInMonth; day++ {
		open := time.Date(req.Year, req.Month, day, req.Hours.Open.Hour, req.Hours.Open.Minute, 0, 0, loc)
		close := time.Date(req.Year, req.Month, day, req.Hours.Close.Hour, req.Hours.Close.Minute, 0, 0, loc)
		if !close.After(open) {
			return nil, ErrInvalidOperatingHours
		}

		ival, err := domain.NewInterval(open, close)
		if err != nil {
			return nil, err
		}

		busy, err := p.det.HasConflict(ctx, ival, uuid.Nil)
		if err != nil {
			return nil, err
		}

		out = append(out, DaySummary{
			Day:             day,
			Weekday:         open.Weekday(),
			HasAppointments: busy,
		})
	}
	return out, nil
}

func validDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 {
		return false
	}
	return day <= time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
