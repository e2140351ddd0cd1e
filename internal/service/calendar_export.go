package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// Workbook builds the month calendar and renders it as a spreadsheet.
// The caller owns the returned file and must Close it.
func (s *CalendarService) Workbook(ctx context.Context, year, month int) (*excelize.File, error) {
	cm, err := s.Month(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return BuildWorkbook(cm)
}

// BuildWorkbook lays out one sheet named YYYY-MM with a row per day. The
// first three columns hold the date, weekday and holiday name; then one
// column per product code, sorted, holding the open type on open dates and
// "reservation(<type>)" on days covered by a reservation period.
func BuildWorkbook(cm *model.CalendarMonth) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := fmt.Sprintf("%04d-%02d", cm.Year, cm.Month)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	codes := make([]string, 0, len(cm.Products))
	for code := range cm.Products {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	header := []any{"Date", "Weekday", "Holiday"}
	for _, code := range codes {
		header = append(header, code+" "+cm.Products[code].Name)
	}
	if err := writeRow(f, sheet, 1, header); err != nil {
		_ = f.Close()
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end, _ := excelize.CoordinatesToCellName(len(header), 1)
		_ = f.SetCellStyle(sheet, "A1", end, style)
	}

	first := model.NewDate(cm.Year, time.Month(cm.Month), 1)
	days := first.AddDate(0, 1, -1).Day()
	for d := 0; d < days; d++ {
		day := model.Date{Time: first.AddDate(0, 0, d)}
		key := day.String()
		row := []any{key, day.Weekday().String(), cm.Holidays[key]}
		for _, code := range codes {
			row = append(row, dayCell(cm.Products[code], day))
		}
		if err := writeRow(f, sheet, d+2, row); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func dayCell(pc *model.ProductCalendar, day model.Date) string {
	if od, ok := pc.OpenDates[day.String()]; ok {
		return od.OpenType
	}
	keys := make([]string, 0, len(pc.ReservationPeriods))
	for k := range pc.ReservationPeriods {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := pc.ReservationPeriods[k]
		if p.StartDate <= day.String() && day.String() <= p.EndDate {
			return "reservation(" + p.OpenType + ")"
		}
	}
	return ""
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}
