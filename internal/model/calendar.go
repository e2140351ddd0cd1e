package model

// CalendarRow is one open-date rule of an active product, as read for the
// calendar view. Reservation periods are joined to it in memory.
type CalendarRow struct {
	ProductID       uint64 `db:"product_id"`
	ProductCode     string `db:"product_code"`
	ProductName     string `db:"product_name"`
	OpenType        string `db:"open_type"`
	OpenDate        Date   `db:"open_date"`
	PeriodStartDays int    `db:"period_start_days"`
	PeriodEndDays   int    `db:"period_end_days"`
}

// CalendarMonth is the unified view of a single month.
type CalendarMonth struct {
	Year     int                         `json:"year"`
	Month    int                         `json:"month"`
	Holidays map[string]string           `json:"holidays"`
	Products map[string]*ProductCalendar `json:"products"`
}

// ProductCalendar groups a product's open dates and reservation periods.
type ProductCalendar struct {
	Name               string                   `json:"name"`
	OpenDates          map[string]OpenDateEntry `json:"openDates"`
	ReservationPeriods map[string]PeriodEntry   `json:"reservationPeriods"`
}

type OpenDateEntry struct {
	OpenType        string `json:"openType"`
	PeriodStartDays int    `json:"periodStartDays"`
	PeriodEndDays   int    `json:"periodEndDays"`
}

type PeriodEntry struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	OpenType  string `json:"openType"`
}
