package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// AuditRepo stores operation logs. Rows are append-only.
type AuditRepo struct{ db *sqlx.DB }

func NewAuditRepo(db *sqlx.DB) *AuditRepo { return &AuditRepo{db: db} }

// Write appends one operation log.
func (r *AuditRepo) Write(ctx context.Context, l model.OperationLog) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_operation_logs (user_id, operation_type, operation_detail, ip_address, user_agent)
		 VALUES (?, ?, ?, ?, ?)`,
		l.UserID, l.OperationType, l.OperationDetail, l.IPAddress, l.UserAgent)
	if err != nil {
		return fmt.Errorf("insert operation log: %w", err)
	}
	return nil
}

// List returns a page of logs, newest first, with the total row count.
func (r *AuditRepo) List(ctx context.Context, page, limit int) ([]model.OperationLog, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM user_operation_logs"); err != nil {
		return nil, 0, fmt.Errorf("count operation logs: %w", err)
	}
	logs := []model.OperationLog{}
	if err := r.db.SelectContext(ctx, &logs,
		`SELECT id, user_id, operation_type,
		        COALESCE(operation_detail, '') AS operation_detail,
		        COALESCE(ip_address, '') AS ip_address,
		        COALESCE(user_agent, '') AS user_agent,
		        created_at
		 FROM user_operation_logs
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, (page-1)*limit); err != nil {
		return nil, 0, fmt.Errorf("list operation logs: %w", err)
	}
	return logs, total, nil
}
