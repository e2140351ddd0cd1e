package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

const holidayColumns = "id, holiday_date, holiday_name, holiday_type, is_active, created_by, created_at"

// HolidayRepo persists non-trading days. At most one active holiday exists
// per date.
type HolidayRepo struct{ db *sqlx.DB }

func NewHolidayRepo(db *sqlx.DB) *HolidayRepo { return &HolidayRepo{db: db} }

// ListByYear returns the active holidays of a year ordered by date.
func (r *HolidayRepo) ListByYear(ctx context.Context, year int) ([]model.Holiday, error) {
	from := model.NewDate(year, time.January, 1)
	return r.ListBetween(ctx, from, model.NewDate(year, time.December, 31))
}

// ListByMonth returns the active holidays of a month ordered by date.
func (r *HolidayRepo) ListByMonth(ctx context.Context, year int, month time.Month) ([]model.Holiday, error) {
	from := model.NewDate(year, month, 1)
	return r.ListBetween(ctx, from, model.Date{Time: from.AddDate(0, 1, -1)})
}

// ListBetween returns the active holidays in [from, to] ordered by date.
func (r *HolidayRepo) ListBetween(ctx context.Context, from, to model.Date) ([]model.Holiday, error) {
	hs := []model.Holiday{}
	if err := r.db.SelectContext(ctx, &hs,
		"SELECT "+holidayColumns+" FROM holidays WHERE holiday_date BETWEEN ? AND ? AND "+active("")+
			" ORDER BY holiday_date, id", from, to); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return hs, nil
}

// Create inserts a holiday. ErrConflict is returned when the date already
// has an active holiday; uq_holidays_active_date enforces it.
func (r *HolidayRepo) Create(ctx context.Context, h *model.Holiday) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO holidays (holiday_date, holiday_name, holiday_type, created_by) VALUES (?, ?, ?, ?)",
		h.HolidayDate, h.HolidayName, h.HolidayType, h.CreatedBy)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert holiday: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert holiday: %w", err)
	}
	h.ID = uint64(id)
	h.IsActive = true
	return nil
}

// CreateMissing inserts the given holidays, skipping dates that already
// have an active holiday, and reports how many rows were added.
func (r *HolidayRepo) CreateMissing(ctx context.Context, hs []model.Holiday) (int, error) {
	added := 0
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, h := range hs {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO holidays (holiday_date, holiday_name, holiday_type, created_by)
				 SELECT ?, ?, ?, ? FROM DUAL
				 WHERE NOT EXISTS (SELECT 1 FROM holidays WHERE holiday_date = ? AND is_active = TRUE)`,
				h.HolidayDate, h.HolidayName, h.HolidayType, h.CreatedBy, h.HolidayDate)
			if err != nil {
				// another writer took the date after the NOT EXISTS check
				if isDuplicate(err) {
					continue
				}
				return fmt.Errorf("insert holiday %s: %w", h.HolidayDate, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("insert holiday %s: %w", h.HolidayDate, err)
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// SoftDelete deactivates an active holiday and returns it as it was.
func (r *HolidayRepo) SoftDelete(ctx context.Context, id uint64) (*model.Holiday, error) {
	var h model.Holiday
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &h,
			"SELECT "+holidayColumns+" FROM holidays WHERE id = ? AND "+active("")+" FOR UPDATE", id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock holiday: %w", err)
		}
		_, err := tx.ExecContext(ctx, "UPDATE holidays SET is_active = FALSE, updated_at = NOW() WHERE id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &h, nil
}
