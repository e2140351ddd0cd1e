package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// CalendarHandler serves the month calendar as JSON and as a workbook.
type CalendarHandler struct {
	base
	calendar CalendarView
}

func NewCalendarHandler(d Deps) *CalendarHandler {
	return &CalendarHandler{base: newBase(d), calendar: d.Calendar}
}

func yearMonth(c echo.Context) (int, int, error) {
	year, err1 := strconv.Atoi(c.Param("year"))
	month, err2 := strconv.Atoi(c.Param("month"))
	if err1 != nil || err2 != nil {
		return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "year and month must be integers")
	}
	return year, month, nil
}

// Month returns holidays and product schedules of one month.
func (h *CalendarHandler) Month(c echo.Context) error {
	year, month, err := yearMonth(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	cm, err := h.calendar.Month(ctx, year, month)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cm)
}

// Export streams the month as an .xlsx attachment.
func (h *CalendarHandler) Export(c echo.Context) error {
	year, month, err := yearMonth(c)
	if err != nil {
		return err
	}
	if err := h.calendar.Validate(year, month); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	f, err := h.calendar.Workbook(ctx, year, month)
	if err != nil {
		return err
	}
	defer f.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, xlsxContentType)
	res.Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="calendar-%04d-%02d.xlsx"`, year, month))
	res.WriteHeader(http.StatusOK)
	return f.Write(res)
}
