package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
	"github.com/grx1242064203-bit/fund-calendar/internal/service"
)

// HolidayHandler serves the holiday endpoints.
type HolidayHandler struct {
	base
	holidays HolidayStore
	years    config.CalendarConfig
	now      func() time.Time
}

func NewHolidayHandler(d Deps) *HolidayHandler {
	return &HolidayHandler{base: newBase(d), holidays: d.Holidays, years: d.Config.Calendar, now: time.Now}
}

type holidayReq struct {
	HolidayDate string `json:"holidayDate" validate:"required,datetime=2006-01-02"`
	HolidayName string `json:"holidayName" validate:"required,max=100"`
	HolidayType string `json:"holidayType" validate:"required,oneof=weekend national other"`
}

func (r *holidayReq) trim() {
	r.HolidayDate = strings.TrimSpace(r.HolidayDate)
	r.HolidayName = strings.TrimSpace(r.HolidayName)
	r.HolidayType = strings.TrimSpace(r.HolidayType)
}

type weekendsReq struct {
	Year int `json:"year" validate:"required"`
}

// List returns the active holidays of ?year= (default current year),
// optionally narrowed to ?month=.
func (h *HolidayHandler) List(c echo.Context) error {
	year := h.now().Year()
	if s := strings.TrimSpace(c.QueryParam("year")); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "year must be an integer")
		}
		year = y
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	var (
		hs  []model.Holiday
		err error
	)
	if s := strings.TrimSpace(c.QueryParam("month")); s != "" {
		m, convErr := strconv.Atoi(s)
		if convErr != nil || m < 1 || m > 12 {
			return echo.NewHTTPError(http.StatusBadRequest, "month must be between 1 and 12")
		}
		hs, err = h.holidays.ListByMonth(ctx, year, time.Month(m))
	} else {
		hs, err = h.holidays.ListByYear(ctx, year)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"holidays": hs})
}

// Create adds a holiday. A date holds at most one active holiday.
func (h *HolidayHandler) Create(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	var req holidayReq
	if err := bind(c, &req); err != nil {
		return err
	}
	date, err := model.ParseDate(req.HolidayDate)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "holidayDate must be a date in YYYY-MM-DD format")
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	createdBy := who.UserID
	hol := &model.Holiday{
		HolidayDate: date,
		HolidayName: req.HolidayName,
		HolidayType: req.HolidayType,
		CreatedBy:   &createdBy,
	}
	if err := h.holidays.Create(ctx, hol); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "a holiday already exists on this date"})
		}
		return err
	}
	h.record(c, who.UserID, audit.OpHolidayCreate, echo.Map{
		"holidayId":   hol.ID,
		"holidayDate": hol.HolidayDate.String(),
		"holidayName": hol.HolidayName,
		"holidayType": hol.HolidayType,
	})
	return c.JSON(http.StatusCreated, echo.Map{"message": "holiday created", "holidayId": hol.ID})
}

// GenerateWeekends marks every Saturday and Sunday of a year as a weekend
// holiday, skipping dates that already have one.
func (h *HolidayHandler) GenerateWeekends(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	var req weekendsReq
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Year < h.years.MinYear || req.Year > h.years.MaxYear {
		return echo.NewHTTPError(http.StatusBadRequest,
			fmt.Sprintf("year must be between %d and %d", h.years.MinYear, h.years.MaxYear))
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	n, err := h.holidays.CreateMissing(ctx, service.WeekendHolidays(req.Year, who.UserID))
	if err != nil {
		return err
	}
	h.record(c, who.UserID, audit.OpHolidayWeekends, echo.Map{"year": req.Year, "inserted": n})
	return c.JSON(http.StatusCreated, echo.Map{"message": "weekends generated", "inserted": n})
}

// Delete soft-deletes a holiday.
func (h *HolidayHandler) Delete(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	hol, err := h.holidays.SoftDelete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "holiday not found"})
		}
		return err
	}
	h.record(c, who.UserID, audit.OpHolidayDelete, echo.Map{
		"holidayId":   hol.ID,
		"holidayDate": hol.HolidayDate.String(),
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "holiday deleted"})
}
