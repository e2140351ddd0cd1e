// Package repository defines the data access layer and the error values
// shared across repositories. Handlers translate ErrNotFound into 404 and
// ErrConflict into 409; every other error is unexpected.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the referenced active row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation would break a uniqueness rule
// among active rows, such as a second active holiday on the same date.
var ErrConflict = errors.New("conflict")

// MySQL server error numbers.
const (
	erDupEntry     = 1062 // ER_DUP_ENTRY
	erLockDeadlock = 1213 // ER_LOCK_DEADLOCK
)

func mysqlErrno(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrno(err) == erDupEntry }

// isRetryable reports errors after which re-running the whole transaction
// can succeed, such as losing a race to create the same row.
func isRetryable(err error) bool {
	n := mysqlErrno(err)
	return n == erDupEntry || n == erLockDeadlock
}
