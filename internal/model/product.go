package model

import "time"

// Open types shared by open-date and reservation-period rules.
const (
	OpenTypeBoth      = "both"
	OpenTypeSubscribe = "subscribe"
	OpenTypeRedeem    = "redeem"
)

// Product is a fund product identified by its unique code.
type Product struct {
	ID             uint64    `db:"id" json:"id"`
	ProductCode    string    `db:"product_code" json:"productCode"`
	ProductName    string    `db:"product_name" json:"productName"`
	Description    *string   `db:"description" json:"description"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedBy      *uint64   `db:"created_by" json:"createdBy"`
	CreatedByName  *string   `db:"created_by_name" json:"createdByName"`
	OpenDatesCount int       `db:"open_dates_count" json:"openDatesCount"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// OpenDateRule is a single open date of a product.
type OpenDateRule struct {
	ID              uint64 `db:"id" json:"-"`
	ProductID       uint64 `db:"product_id" json:"-"`
	OpenType        string `db:"open_type" json:"openType"`
	OpenDate        Date   `db:"open_date" json:"openDate"`
	PeriodStartDays int    `db:"period_start_days" json:"periodStartDays"`
	PeriodEndDays   int    `db:"period_end_days" json:"periodEndDays"`
}

// ReservationPeriodRule is a date range during which advance requests are
// accepted. It relates to open-date rules only through (ProductID, OpenType).
type ReservationPeriodRule struct {
	ID              uint64 `db:"id" json:"-"`
	ProductID       uint64 `db:"product_id" json:"-"`
	OpenType        string `db:"open_type" json:"openType"`
	PeriodStartDate Date   `db:"period_start_date" json:"periodStartDate"`
	PeriodEndDate   Date   `db:"period_end_date" json:"periodEndDate"`
}

// ProductDetail is a product together with its active rules.
type ProductDetail struct {
	Product            Product                 `json:"product"`
	OpenDates          []OpenDateRule          `json:"openDates"`
	ReservationPeriods []ReservationPeriodRule `json:"reservationPeriods"`
}

// ProductInput is the full desired state of a product for an upsert.
type ProductInput struct {
	ProductCode        string
	ProductName        string
	Description        *string
	OpenDates          []OpenDateRule
	ReservationPeriods []ReservationPeriodRule
}

// ProductQuery filters and paginates the product list.
type ProductQuery struct {
	Page   int
	Limit  int
	Search string
}

// Offset is the number of rows skipped for the requested page.
func (q ProductQuery) Offset() int { return (q.Page - 1) * q.Limit }
