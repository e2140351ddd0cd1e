package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

type mockHolidays struct{ mock.Mock }

func (m *mockHolidays) ListByMonth(ctx context.Context, year int, month time.Month) ([]model.Holiday, error) {
	args := m.Called(ctx, year, month)
	hs, _ := args.Get(0).([]model.Holiday)
	return hs, args.Error(1)
}

type mockSchedule struct{ mock.Mock }

func (m *mockSchedule) CalendarRules(ctx context.Context, from, to model.Date) ([]model.CalendarRow, []model.ReservationPeriodRule, error) {
	args := m.Called(ctx, from, to)
	rows, _ := args.Get(0).([]model.CalendarRow)
	periods, _ := args.Get(1).([]model.ReservationPeriodRule)
	return rows, periods, args.Error(2)
}

func newService(h HolidaySource, s ScheduleSource) *CalendarService {
	return NewCalendarService(h, s, config.CalendarConfig{MinYear: 2020, MaxYear: 2030}, zerolog.Nop())
}

func row(id uint64, code, openType, date string, start, end int) model.CalendarRow {
	return model.CalendarRow{
		ProductID:       id,
		ProductCode:     code,
		ProductName:     "Fund " + code,
		OpenType:        openType,
		OpenDate:        model.MustParseDate(date),
		PeriodStartDays: start,
		PeriodEndDays:   end,
	}
}

func period(id uint64, openType, start, end string) model.ReservationPeriodRule {
	return model.ReservationPeriodRule{
		ProductID:       id,
		OpenType:        openType,
		PeriodStartDate: model.MustParseDate(start),
		PeriodEndDate:   model.MustParseDate(end),
	}
}

func holiday(date, name string) model.Holiday {
	return model.Holiday{HolidayDate: model.MustParseDate(date), HolidayName: name, HolidayType: model.HolidayNational}
}

func TestAggregate_EmptyMonth(t *testing.T) {
	cm := Aggregate(2024, 2, nil, nil, nil)

	require.NotNil(t, cm.Holidays)
	require.NotNil(t, cm.Products)
	assert.Empty(t, cm.Holidays)
	assert.Empty(t, cm.Products)
	assert.Equal(t, 2024, cm.Year)
	assert.Equal(t, 2, cm.Month)
}

func TestAggregate_OpenDateWithPeriod(t *testing.T) {
	rows := []model.CalendarRow{row(1, "P001", model.OpenTypeBoth, "2024-06-15", 5, 1)}
	periods := []model.ReservationPeriodRule{period(1, model.OpenTypeBoth, "2024-06-10", "2024-06-14")}

	cm := Aggregate(2024, 6, nil, rows, periods)

	require.Contains(t, cm.Products, "P001")
	pc := cm.Products["P001"]
	assert.Equal(t, "Fund P001", pc.Name)
	assert.Equal(t, model.OpenDateEntry{OpenType: "both", PeriodStartDays: 5, PeriodEndDays: 1}, pc.OpenDates["2024-06-15"])
	assert.Equal(t, model.PeriodEntry{StartDate: "2024-06-10", EndDate: "2024-06-14", OpenType: "both"},
		pc.ReservationPeriods["2024-06-10_2024-06-14"])
}

func TestAggregate_OpenDateWithoutPeriod(t *testing.T) {
	rows := []model.CalendarRow{
		row(1, "P001", model.OpenTypeRedeem, "2024-06-20", 0, 0),
		row(1, "P001", model.OpenTypeRedeem, "2024-07-20", 0, 0),
	}

	cm := Aggregate(2024, 6, nil, rows, nil)

	pc := cm.Products["P001"]
	require.NotNil(t, pc)
	assert.Len(t, pc.OpenDates, 1)
	assert.Contains(t, pc.OpenDates, "2024-06-20")
	assert.NotNil(t, pc.ReservationPeriods)
	assert.Empty(t, pc.ReservationPeriods)
}

func TestAggregate_PeriodStartingInMonthPullsOpenDate(t *testing.T) {
	rows := []model.CalendarRow{row(1, "P001", model.OpenTypeSubscribe, "2024-07-02", 3, 1)}
	periods := []model.ReservationPeriodRule{period(1, model.OpenTypeSubscribe, "2024-06-28", "2024-07-01")}

	cm := Aggregate(2024, 6, nil, rows, periods)

	pc := cm.Products["P001"]
	require.NotNil(t, pc)
	assert.Contains(t, pc.OpenDates, "2024-07-02")
	assert.Contains(t, pc.ReservationPeriods, "2024-06-28_2024-07-01")
}

func TestAggregate_RowsOutsideMonthDropped(t *testing.T) {
	rows := []model.CalendarRow{row(1, "P001", model.OpenTypeBoth, "2024-07-15", 0, 0)}
	periods := []model.ReservationPeriodRule{period(1, model.OpenTypeBoth, "2024-07-10", "2024-07-14")}

	cm := Aggregate(2024, 6, nil, rows, periods)

	assert.NotContains(t, cm.Products, "P001")
}

func TestAggregate_JoinRequiresSameOpenType(t *testing.T) {
	rows := []model.CalendarRow{row(1, "P001", model.OpenTypeSubscribe, "2024-06-15", 0, 0)}
	periods := []model.ReservationPeriodRule{
		period(1, model.OpenTypeRedeem, "2024-06-10", "2024-06-12"),
		period(2, model.OpenTypeSubscribe, "2024-06-01", "2024-06-03"),
	}

	cm := Aggregate(2024, 6, nil, rows, periods)

	pc := cm.Products["P001"]
	require.NotNil(t, pc)
	assert.Contains(t, pc.OpenDates, "2024-06-15")
	assert.Empty(t, pc.ReservationPeriods)
}

func TestAggregate_DeduplicationFirstWins(t *testing.T) {
	rows := []model.CalendarRow{
		row(1, "P001", model.OpenTypeBoth, "2024-06-15", 5, 1),
		row(1, "P001", model.OpenTypeSubscribe, "2024-06-15", 9, 9),
		row(1, "P001", model.OpenTypeSubscribe, "2024-06-20", 2, 2),
	}
	periods := []model.ReservationPeriodRule{
		period(1, model.OpenTypeBoth, "2024-06-10", "2024-06-14"),
		period(1, model.OpenTypeSubscribe, "2024-06-10", "2024-06-14"),
	}

	cm := Aggregate(2024, 6, nil, rows, periods)

	pc := cm.Products["P001"]
	require.NotNil(t, pc)
	assert.Len(t, pc.OpenDates, 2)
	assert.Equal(t, "both", pc.OpenDates["2024-06-15"].OpenType)
	assert.Equal(t, 5, pc.OpenDates["2024-06-15"].PeriodStartDays)
	require.Len(t, pc.ReservationPeriods, 1)
	assert.Equal(t, "both", pc.ReservationPeriods["2024-06-10_2024-06-14"].OpenType)
}

func TestAggregate_HolidayLastWins(t *testing.T) {
	hs := []model.Holiday{
		holiday("2024-06-10", "Dragon Boat Festival"),
		holiday("2024-06-10", "Duanwu"),
		holiday("2024-06-01", "Children's Day"),
	}

	cm := Aggregate(2024, 6, hs, nil, nil)

	assert.Equal(t, map[string]string{"2024-06-10": "Duanwu", "2024-06-01": "Children's Day"}, cm.Holidays)
}

func TestAggregate_GroupsByProductCode(t *testing.T) {
	rows := []model.CalendarRow{
		row(1, "P001", model.OpenTypeBoth, "2024-06-03", 0, 0),
		row(2, "P002", model.OpenTypeRedeem, "2024-06-04", 0, 0),
	}

	cm := Aggregate(2024, 6, nil, rows, nil)

	assert.Len(t, cm.Products, 2)
	assert.Contains(t, cm.Products["P002"].OpenDates, "2024-06-04")
	assert.NotContains(t, cm.Products["P001"].OpenDates, "2024-06-04")
}

func TestCalendarService_Validate(t *testing.T) {
	svc := newService(nil, nil)

	cases := []struct {
		year, month int
		ok          bool
	}{
		{2019, 12, false},
		{2031, 1, false},
		{2024, 13, false},
		{2024, 0, false},
		{2020, 1, true},
		{2030, 12, true},
	}
	for _, tc := range cases {
		err := svc.Validate(tc.year, tc.month)
		if tc.ok {
			assert.NoError(t, err, "%d/%d", tc.year, tc.month)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPeriod, "%d/%d", tc.year, tc.month)
		}
	}
}

func TestCalendarService_Month(t *testing.T) {
	ctx := context.Background()
	h := &mockHolidays{}
	s := &mockSchedule{}
	h.On("ListByMonth", ctx, 2024, time.June).
		Return([]model.Holiday{holiday("2024-06-10", "Dragon Boat Festival")}, nil)
	s.On("CalendarRules", ctx, model.MustParseDate("2024-06-01"), model.MustParseDate("2024-06-30")).
		Return([]model.CalendarRow{row(1, "P001", model.OpenTypeBoth, "2024-06-15", 5, 1)},
			[]model.ReservationPeriodRule{period(1, model.OpenTypeBoth, "2024-06-10", "2024-06-14")}, nil)

	cm, err := newService(h, s).Month(ctx, 2024, 6)

	require.NoError(t, err)
	assert.Equal(t, "Dragon Boat Festival", cm.Holidays["2024-06-10"])
	assert.Contains(t, cm.Products["P001"].ReservationPeriods, "2024-06-10_2024-06-14")
	h.AssertExpectations(t)
	s.AssertExpectations(t)
}

func TestCalendarService_MonthRejectsBeforeReading(t *testing.T) {
	h := &mockHolidays{}
	s := &mockSchedule{}

	_, err := newService(h, s).Month(context.Background(), 2019, 12)

	assert.ErrorIs(t, err, ErrInvalidPeriod)
	h.AssertNotCalled(t, "ListByMonth", mock.Anything, mock.Anything, mock.Anything)
	s.AssertNotCalled(t, "CalendarRules", mock.Anything, mock.Anything, mock.Anything)
}

func TestCalendarService_MonthPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	h := &mockHolidays{}
	h.On("ListByMonth", ctx, 2024, time.June).Return(nil, boom)

	_, err := newService(h, &mockSchedule{}).Month(ctx, 2024, 6)

	assert.ErrorIs(t, err, boom)
}
