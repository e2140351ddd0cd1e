package model

import "time"

// Roles accepted in the users.role column and the JWT role claim.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User mirrors a row of the users table. The password columns never leave
// the server.
type User struct {
	ID           uint64     `db:"id" json:"id"`
	Phone        string     `db:"phone" json:"phone"`
	PasswordHash string     `db:"password_hash" json:"-"`
	PasswordSalt string     `db:"password_salt" json:"-"`
	Role         string     `db:"role" json:"role"`
	RealName     *string    `db:"real_name" json:"realName"`
	Email        *string    `db:"email" json:"email"`
	IsActive     bool       `db:"is_active" json:"isActive"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
