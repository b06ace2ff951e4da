package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"slotcore/internal/domain"
	"slotcore/internal/store"
)

// AppointmentRepo is the embedded-store twin of the postgres repository.
// SQLite has no exclusion constraints, so the conflict check performed inside
// InScheduleTransaction is authoritative; a repo-level mutex serializes all
// mutations (single-writer model).
type AppointmentRepo struct {
	db *bun.DB
	mu sync.Mutex
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

// Migrate creates the appointments table. CHECK constraints mirror the
// postgres schema where SQLite supports them.
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewRaw(`
		CREATE TABLE IF NOT EXISTS appointments (
			id TEXT PRIMARY KEY,
			owner_email TEXT NOT NULL,
			owner_name TEXT NOT NULL,
			notes TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'confirmed'
				CHECK (status IN ('confirmed', 'cancelled', 'rescheduled')),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			CHECK (end_time > start_time)
		)`).Exec(ctx)
	if err != nil {
		return err
	}
	_, err = db.NewRaw(`
		CREATE INDEX IF NOT EXISTS idx_appointments_range
			ON appointments (start_time, end_time)`).Exec(ctx)
	return err
}

func (r *AppointmentRepo) FindOverlapping(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return findOverlapping(ctx, r.db, ival, excludeID)
}

func (r *AppointmentRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getByID(ctx, r.db, id)
}

func (r *AppointmentRepo) ListByDateRange(ctx context.Context, from, to time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("status = ?", domain.StatusConfirmed).
		Where("start_time < ?", to.UTC()).
		Where("end_time > ?", from.UTC()).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) InScheduleTransaction(ctx context.Context, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, scheduleTx{tx: tx})
	})
}

type scheduleTx struct {
	tx bun.Tx
}

func (t scheduleTx) FindOverlapping(ctx context.Context, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	return findOverlapping(ctx, t.tx, ival, excludeID)
}

func (t scheduleTx) GetByID(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	return getByID(ctx, t.tx, id)
}

func (t scheduleTx) Insert(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return domain.Appointment{}, store.ErrDuplicateID
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (t scheduleTx) Update(ctx context.Context, id uuid.UUID, patch store.AppointmentPatch) (domain.Appointment, error) {
	q := t.tx.NewUpdate().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", id).
		Set("updated_at = ?", time.Now().UTC())

	if patch.StartTime != nil {
		q = q.Set("start_time = ?", patch.StartTime.UTC())
	}
	if patch.EndTime != nil {
		q = q.Set("end_time = ?", patch.EndTime.UTC())
	}
	if patch.Notes != nil {
		q = q.Set("notes = ?", *patch.Notes)
	}
	if patch.Status != nil {
		q = q.Set("status = ?", *patch.Status)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return getByID(ctx, t.tx, id)
}

func findOverlapping(ctx context.Context, idb bun.IDB, ival domain.Interval, excludeID uuid.UUID) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := idb.NewSelect().
		Model(&rows).
		Where("status = ?", domain.StatusConfirmed).
		Where("start_time < ?", ival.End).
		Where("end_time > ?", ival.Start)
	if excludeID != uuid.Nil {
		q = q.Where("id != ?", excludeID)
	}
	err := q.OrderExpr("start_time ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getByID(ctx context.Context, idb bun.IDB, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := idb.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
}
