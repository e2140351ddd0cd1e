package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// ProductRepo persists products and their open-date and reservation-period
// rules. Rules are replaced as a whole on every upsert.
type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

const productSelect = `SELECT p.id, p.product_code, p.product_name, p.description, p.is_active,
	p.created_by, u.real_name AS created_by_name,
	(SELECT COUNT(*) FROM product_open_dates pod
	  WHERE pod.product_id = p.id AND pod.is_active = TRUE) AS open_dates_count,
	p.created_at, p.updated_at
FROM products p
LEFT JOIN users u ON u.id = p.created_by`

// List returns a page of active products and the total number of matches.
// Search matches code or name by substring.
func (r *ProductRepo) List(ctx context.Context, q model.ProductQuery) ([]model.Product, int64, error) {
	where := " WHERE " + active("p")
	var args []any
	if s := strings.TrimSpace(q.Search); s != "" {
		where += " AND (p.product_code LIKE ? OR p.product_name LIKE ?)"
		like := "%" + s + "%"
		args = append(args, like, like)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products p"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	products := []model.Product{}
	err := r.db.SelectContext(ctx, &products,
		productSelect+where+" ORDER BY p.created_at DESC, p.id DESC LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// Get returns an active product with its active rules.
func (r *ProductRepo) Get(ctx context.Context, id uint64) (*model.ProductDetail, error) {
	var d model.ProductDetail
	if err := r.db.GetContext(ctx, &d.Product, productSelect+" WHERE p.id = ? AND "+active("p"), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	d.OpenDates = []model.OpenDateRule{}
	if err := r.db.SelectContext(ctx, &d.OpenDates,
		`SELECT id, product_id, open_type, open_date, period_start_days, period_end_days
		 FROM product_open_dates WHERE product_id = ? AND `+active("")+` ORDER BY open_date, id`, id); err != nil {
		return nil, fmt.Errorf("get open dates: %w", err)
	}
	d.ReservationPeriods = []model.ReservationPeriodRule{}
	if err := r.db.SelectContext(ctx, &d.ReservationPeriods,
		`SELECT id, product_id, open_type, period_start_date, period_end_date
		 FROM product_reservation_periods WHERE product_id = ? AND `+active("")+` ORDER BY period_start_date, id`, id); err != nil {
		return nil, fmt.Errorf("get reservation periods: %w", err)
	}
	return &d, nil
}

// Upsert creates the product identified by in.ProductCode, or updates the
// active one, and replaces its rules with exactly the supplied sets. The
// previous rules are soft-deleted. All of it commits or none of it does.
//
// Two first-time upserts of one code race on uq_products_active_code; the
// loser is retried once and then takes the update path.
func (r *ProductRepo) Upsert(ctx context.Context, in model.ProductInput, actorID uint64) (uint64, bool, error) {
	var (
		id      uint64
		created bool
		err     error
	)
	for attempt := 0; attempt <= upsertRetries; attempt++ {
		id, created, err = r.upsertOnce(ctx, in, actorID)
		if err == nil || !isRetryable(err) {
			break
		}
	}
	if err != nil {
		if isDuplicate(err) {
			return 0, false, ErrConflict
		}
		return 0, false, err
	}
	return id, created, nil
}

const upsertRetries = 1

func (r *ProductRepo) upsertOnce(ctx context.Context, in model.ProductInput, actorID uint64) (id uint64, created bool, err error) {
	err = withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &id,
			"SELECT id FROM products WHERE product_code = ? AND "+active("")+" LIMIT 1 FOR UPDATE", in.ProductCode)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				"INSERT INTO products (product_code, product_name, description, created_by) VALUES (?, ?, ?, ?)",
				in.ProductCode, in.ProductName, in.Description, actorID)
			if err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			id, created = uint64(newID), true
		case err != nil:
			return fmt.Errorf("lock product: %w", err)
		default:
			if _, err := tx.ExecContext(ctx,
				"UPDATE products SET product_name = ?, description = ?, updated_at = NOW() WHERE id = ?",
				in.ProductName, in.Description, id); err != nil {
				return fmt.Errorf("update product: %w", err)
			}
			for _, table := range []string{"product_open_dates", "product_reservation_periods"} {
				if _, err := tx.ExecContext(ctx,
					"UPDATE "+table+" SET is_active = FALSE WHERE product_id = ? AND "+active(""), id); err != nil {
					return fmt.Errorf("deactivate %s: %w", table, err)
				}
			}
		}

		if err := insertOpenDatesTx(ctx, tx, id, actorID, in.OpenDates); err != nil {
			return err
		}
		return insertPeriodsTx(ctx, tx, id, actorID, in.ReservationPeriods)
	})
	if err != nil {
		return 0, false, err
	}
	return id, created, nil
}

func insertOpenDatesTx(ctx context.Context, tx *sqlx.Tx, productID, actorID uint64, rules []model.OpenDateRule) error {
	if len(rules) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO product_open_dates
		(product_id, open_type, open_date, period_start_days, period_end_days, created_by) VALUES `)
	args := make([]any, 0, len(rules)*6)
	for i, rule := range rules {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, productID, rule.OpenType, rule.OpenDate, rule.PeriodStartDays, rule.PeriodEndDays, actorID)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert open dates: %w", err)
	}
	return nil
}

func insertPeriodsTx(ctx context.Context, tx *sqlx.Tx, productID, actorID uint64, rules []model.ReservationPeriodRule) error {
	if len(rules) == 0 {
		return nil
	}
	var sb strings.Builder
	sb.WriteString(`INSERT INTO product_reservation_periods
		(product_id, open_type, period_start_date, period_end_date, created_by) VALUES `)
	args := make([]any, 0, len(rules)*5)
	for i, rule := range rules {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, productID, rule.OpenType, rule.PeriodStartDate, rule.PeriodEndDate, actorID)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert reservation periods: %w", err)
	}
	return nil
}

// SoftDelete deactivates an active product and returns it as it was.
// Its rules stay in place for history and are hidden by the product filter.
func (r *ProductRepo) SoftDelete(ctx context.Context, id uint64) (*model.Product, error) {
	var p model.Product
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &p,
			productSelect+" WHERE p.id = ? AND "+active("p")+" FOR UPDATE", id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock product: %w", err)
		}
		_, err := tx.ExecContext(ctx, "UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = ?", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// candidateProducts selects products with an active open date or an active
// reservation period starting inside [from, to].
const candidateProducts = `SELECT product_id FROM product_open_dates
	WHERE is_active = TRUE AND open_date BETWEEN ? AND ?
	UNION
	SELECT product_id FROM product_reservation_periods
	WHERE is_active = TRUE AND period_start_date BETWEEN ? AND ?`

// CalendarRules loads the raw inputs of a calendar month: every active
// open-date rule and every active reservation period of the active products
// that touch [from, to]. Rows outside the range are included; filtering by
// month is the aggregator's job.
func (r *ProductRepo) CalendarRules(ctx context.Context, from, to model.Date) ([]model.CalendarRow, []model.ReservationPeriodRule, error) {
	rows := []model.CalendarRow{}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT p.id AS product_id, p.product_code, p.product_name,
		        pod.open_type, pod.open_date, pod.period_start_days, pod.period_end_days
		 FROM products p
		 JOIN product_open_dates pod ON pod.product_id = p.id
		 WHERE `+active("p")+` AND `+active("pod")+`
		   AND p.id IN (`+candidateProducts+`)
		 ORDER BY pod.open_date, pod.id`,
		from, to, from, to); err != nil {
		return nil, nil, fmt.Errorf("calendar open dates: %w", err)
	}

	periods := []model.ReservationPeriodRule{}
	if err := r.db.SelectContext(ctx, &periods,
		`SELECT prp.id, prp.product_id, prp.open_type, prp.period_start_date, prp.period_end_date
		 FROM product_reservation_periods prp
		 JOIN products p ON p.id = prp.product_id
		 WHERE `+active("p")+` AND `+active("prp")+`
		   AND prp.product_id IN (`+candidateProducts+`)
		 ORDER BY prp.period_start_date, prp.id`,
		from, to, from, to); err != nil {
		return nil, nil, fmt.Errorf("calendar reservation periods: %w", err)
	}
	return rows, periods, nil
}
