package model

import "time"

// OperationLog mirrors a row of user_operation_logs.
type OperationLog struct {
	ID              uint64    `db:"id" json:"id"`
	UserID          *uint64   `db:"user_id" json:"userId"`
	OperationType   string    `db:"operation_type" json:"operationType"`
	OperationDetail string    `db:"operation_detail" json:"operationDetail"`
	IPAddress       string    `db:"ip_address" json:"ipAddress"`
	UserAgent       string    `db:"user_agent" json:"userAgent"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// Page describes a paginated listing in API responses.
type Page struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// NewPage computes the page count for total rows.
func NewPage(page, limit int, total int64) Page {
	p := Page{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.Pages = (total + int64(limit) - 1) / int64(limit)
	}
	return p
}
