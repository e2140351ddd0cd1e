package service

import (
	"time"

	"github.com/rickar/cal/v2"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// WeekendName is the holiday name given to generated weekend days.
const WeekendName = "Weekend"

// WeekendHolidays returns a weekend holiday for every Saturday and Sunday of
// the year, in date order.
func WeekendHolidays(year int, createdBy uint64) []model.Holiday {
	bc := cal.NewBusinessCalendar()
	var out []model.Holiday
	for d := model.NewDate(year, time.January, 1); d.Year() == year; d = (model.Date{Time: d.AddDate(0, 0, 1)}) {
		if bc.IsWorkday(d.Time) {
			continue
		}
		by := createdBy
		out = append(out, model.Holiday{
			HolidayDate: d,
			HolidayName: WeekendName,
			HolidayType: model.HolidayWeekend,
			CreatedBy:   &by,
		})
	}
	return out
}
