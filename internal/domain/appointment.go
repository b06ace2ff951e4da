package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// Terminal reports whether the status permits no further transitions.
// Only confirmed appointments block other bookings.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCancelled || s == StatusRescheduled
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid" json:"id"`
	OwnerEmail string            `bun:"owner_email,notnull" json:"ownerEmail"`
	OwnerName  string            `bun:"owner_name,notnull" json:"ownerName"`
	Notes      string            `bun:"notes" json:"notes,omitempty"`
	StartTime  time.Time         `bun:"start_time,notnull" json:"startTime"`
	EndTime    time.Time         `bun:"end_time,notnull" json:"endTime"`
	Status     AppointmentStatus `bun:"status,notnull" json:"status"`
	CreatedAt  time.Time         `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull" json:"updatedAt"`
}

// Interval returns the appointment's half-open [start, end) range.
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartTime, End: a.EndTime}
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Status == "" {
			a.Status = StatusConfirmed
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}
