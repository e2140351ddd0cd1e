package model

import "time"

// Holiday types.
const (
	HolidayWeekend  = "weekend"
	HolidayNational = "national"
	HolidayOther    = "other"
)

// Holiday is a non-trading day. At most one active holiday exists per date.
type Holiday struct {
	ID          uint64    `db:"id" json:"id"`
	HolidayDate Date      `db:"holiday_date" json:"holidayDate"`
	HolidayName string    `db:"holiday_name" json:"holidayName"`
	HolidayType string    `db:"holiday_type" json:"holidayType"`
	IsActive    bool      `db:"is_active" json:"-"`
	CreatedBy   *uint64   `db:"created_by" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"-"`
}
