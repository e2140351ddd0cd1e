// Package service holds the calendar aggregation logic that sits between
// the repositories and the HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/metrics"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// ErrInvalidPeriod is returned for a year or month outside the supported range.
var ErrInvalidPeriod = errors.New("invalid calendar period")

// HolidaySource provides the active holidays of a month.
type HolidaySource interface {
	ListByMonth(ctx context.Context, year int, month time.Month) ([]model.Holiday, error)
}

// ScheduleSource provides the open-date and reservation-period rules of
// every active product touching [from, to].
type ScheduleSource interface {
	CalendarRules(ctx context.Context, from, to model.Date) ([]model.CalendarRow, []model.ReservationPeriodRule, error)
}

// CalendarService builds the unified month view.
type CalendarService struct {
	holidays HolidaySource
	schedule ScheduleSource
	minYear  int
	maxYear  int
	log      zerolog.Logger
}

func NewCalendarService(h HolidaySource, s ScheduleSource, cfg config.CalendarConfig, log zerolog.Logger) *CalendarService {
	return &CalendarService{
		holidays: h,
		schedule: s,
		minYear:  cfg.MinYear,
		maxYear:  cfg.MaxYear,
		log:      log.With().Str("component", "calendar").Logger(),
	}
}

// Validate checks that year and month address a supported calendar month.
func (s *CalendarService) Validate(year, month int) error {
	if year < s.minYear || year > s.maxYear {
		return fmt.Errorf("%w: year must be between %d and %d", ErrInvalidPeriod, s.minYear, s.maxYear)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("%w: month must be between 1 and 12", ErrInvalidPeriod)
	}
	return nil
}

// Month returns the calendar of the given month. The two repository reads
// are not isolated from each other; a concurrent upsert may be seen by one
// and not the other.
func (s *CalendarService) Month(ctx context.Context, year, month int) (cm *model.CalendarMonth, err error) {
	if err := s.Validate(year, month); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "failure"
		}
		metrics.ObserveCalendarBuild(status, time.Since(start))
	}()

	m := time.Month(month)
	holidays, err := s.holidays.ListByMonth(ctx, year, m)
	if err != nil {
		return nil, fmt.Errorf("load holidays: %w", err)
	}
	from := model.NewDate(year, m, 1)
	to := model.Date{Time: from.AddDate(0, 1, -1)}
	rows, periods, err := s.schedule.CalendarRules(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	cm = Aggregate(year, month, holidays, rows, periods)
	s.log.Debug().
		Int("year", year).
		Int("month", month).
		Int("holidays", len(cm.Holidays)).
		Int("products", len(cm.Products)).
		Msg("calendar built")
	return cm, nil
}

type periodKey struct {
	productID uint64
	openType  string
}

// Aggregate joins open-date rules to reservation periods on
// (product, open type) and groups the result by product code.
//
// A joined pair is kept when the open date or the period start falls in the
// month; an open date without a matching period is kept only when it falls in
// the month. Open dates are unique by date and periods by start and end; the
// first occurrence wins. For holidays the last row wins.
func Aggregate(year, month int, holidays []model.Holiday, rows []model.CalendarRow, periods []model.ReservationPeriodRule) *model.CalendarMonth {
	m := time.Month(month)
	cm := &model.CalendarMonth{
		Year:     year,
		Month:    month,
		Holidays: make(map[string]string, len(holidays)),
		Products: map[string]*model.ProductCalendar{},
	}
	for _, h := range holidays {
		cm.Holidays[h.HolidayDate.String()] = h.HolidayName
	}

	byKey := make(map[periodKey][]model.ReservationPeriodRule)
	for _, p := range periods {
		k := periodKey{p.ProductID, p.OpenType}
		byKey[k] = append(byKey[k], p)
	}

	for _, row := range rows {
		openInMonth := row.OpenDate.InMonth(year, m)
		matches := byKey[periodKey{row.ProductID, row.OpenType}]
		if len(matches) == 0 {
			if openInMonth {
				addOpenDate(cm, row)
			}
			continue
		}
		for _, p := range matches {
			if !openInMonth && !p.PeriodStartDate.InMonth(year, m) {
				continue
			}
			pc := addOpenDate(cm, row)
			key := p.PeriodStartDate.String() + "_" + p.PeriodEndDate.String()
			if _, ok := pc.ReservationPeriods[key]; !ok {
				pc.ReservationPeriods[key] = model.PeriodEntry{
					StartDate: p.PeriodStartDate.String(),
					EndDate:   p.PeriodEndDate.String(),
					OpenType:  row.OpenType,
				}
			}
		}
	}
	return cm
}

func addOpenDate(cm *model.CalendarMonth, row model.CalendarRow) *model.ProductCalendar {
	pc, ok := cm.Products[row.ProductCode]
	if !ok {
		pc = &model.ProductCalendar{
			Name:               row.ProductName,
			OpenDates:          map[string]model.OpenDateEntry{},
			ReservationPeriods: map[string]model.PeriodEntry{},
		}
		cm.Products[row.ProductCode] = pc
	}
	date := row.OpenDate.String()
	if _, ok := pc.OpenDates[date]; !ok {
		pc.OpenDates[date] = model.OpenDateEntry{
			OpenType:        row.OpenType,
			PeriodStartDays: row.PeriodStartDays,
			PeriodEndDays:   row.PeriodEndDays,
		}
	}
	return pc
}
