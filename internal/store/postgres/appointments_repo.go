package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"slotcore/internal/domain"
	"slotcore/internal/store"
)

// calendarLockKey names the advisory lock that serializes all calendar
// mutations. There is a single shared calendar, so one key suffices.
const calendarLockKey = "slotcore:appointments"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
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
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCalendar(ctx, tx); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockCalendar(ctx context.Context, tx bun.Tx) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", calendarLockKey).Exec(ctx)
	return err
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
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, store.ErrStoreConflict
			}
			if pgErr.Code == "23505" {
				return domain.Appointment{}, store.ErrDuplicateID
			}
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

	var out domain.Appointment
	err := q.Returning("*").Scan(ctx, &out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
			return domain.Appointment{}, store.ErrStoreConflict
		}
		return domain.Appointment{}, err
	}
	return out, nil
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
