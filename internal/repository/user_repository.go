package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/utils"
)

const userColumns = `id, phone, password_hash, password_salt, role, real_name, email,
	is_active, last_login, created_at, updated_at`

// UserRepo persists accounts. A phone number is unique among active users.
type UserRepo struct{ db *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// Create hashes the password and inserts the user, returning its id.
// ErrConflict is returned when an active user already owns the phone.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	u.Phone = strings.TrimSpace(u.Phone)
	u.PasswordHash = hash
	u.PasswordSalt = utils.SaltOf(hash)
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	// uq_users_active_phone rejects a second active owner of the phone.
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (phone, password_hash, password_salt, real_name, email, role)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Phone, u.PasswordHash, u.PasswordSalt, u.RealName, u.Email, u.Role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrConflict
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	u.ID = uint64(id)
	u.IsActive = true
	return u.ID, nil
}

// GetByPhone fetches an active user by phone number.
func (r *UserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE phone = ? AND "+active("")+" LIMIT 1",
		strings.TrimSpace(phone))
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? AND "+active("")+" LIMIT 1", id)
}

func (r *UserRepo) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	if err := r.db.GetContext(ctx, &u, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// List returns every user, including deactivated ones, newest first.
func (r *UserRepo) List(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	if err := r.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+" FROM users ORDER BY created_at DESC, id DESC"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// TouchLastLogin records a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE users SET last_login = NOW() WHERE id = ?", id)
	return err
}

// UpdatePassword replaces the password of an active user and returns the
// updated record.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, password string, cost int) (*model.User, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, password_salt = ?, updated_at = NOW() WHERE id = ? AND "+active(""),
		hash, utils.SaltOf(hash), id)
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update password: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}
