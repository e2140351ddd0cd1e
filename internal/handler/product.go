package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
)

// ProductHandler serves the product schedule endpoints.
type ProductHandler struct {
	base
	products ProductStore
}

func NewProductHandler(d Deps) *ProductHandler {
	return &ProductHandler{base: newBase(d), products: d.Products}
}

type openDateReq struct {
	OpenType        string `json:"openType" validate:"required,oneof=both subscribe redeem"`
	OpenDate        string `json:"openDate" validate:"required,datetime=2006-01-02"`
	PeriodStartDays int    `json:"periodStartDays" validate:"min=0"`
	PeriodEndDays   int    `json:"periodEndDays" validate:"min=0"`
}

type reservationPeriodReq struct {
	OpenType        string `json:"openType" validate:"required,oneof=both subscribe redeem"`
	PeriodStartDate string `json:"periodStartDate" validate:"required,datetime=2006-01-02"`
	PeriodEndDate   string `json:"periodEndDate" validate:"required,datetime=2006-01-02"`
}

type productReq struct {
	ProductCode        string                 `json:"productCode" validate:"required,max=64"`
	ProductName        string                 `json:"productName" validate:"required,max=255"`
	Description        *string                `json:"description"`
	OpenDates          []openDateReq          `json:"openDates" validate:"dive"`
	ReservationPeriods []reservationPeriodReq `json:"reservationPeriods" validate:"dive"`
}

func (r *productReq) trim() {
	r.ProductCode = strings.TrimSpace(r.ProductCode)
	r.ProductName = strings.TrimSpace(r.ProductName)
	for i := range r.OpenDates {
		r.OpenDates[i].OpenType = strings.TrimSpace(r.OpenDates[i].OpenType)
		r.OpenDates[i].OpenDate = strings.TrimSpace(r.OpenDates[i].OpenDate)
	}
	for i := range r.ReservationPeriods {
		p := &r.ReservationPeriods[i]
		p.OpenType = strings.TrimSpace(p.OpenType)
		p.PeriodStartDate = strings.TrimSpace(p.PeriodStartDate)
		p.PeriodEndDate = strings.TrimSpace(p.PeriodEndDate)
	}
}

// input converts a validated request into the repository input.
func (r productReq) input() (model.ProductInput, error) {
	in := model.ProductInput{
		ProductCode:        r.ProductCode,
		ProductName:        r.ProductName,
		Description:        r.Description,
		OpenDates:          make([]model.OpenDateRule, 0, len(r.OpenDates)),
		ReservationPeriods: make([]model.ReservationPeriodRule, 0, len(r.ReservationPeriods)),
	}
	for _, od := range r.OpenDates {
		d, err := model.ParseDate(od.OpenDate)
		if err != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "openDate must be a date in YYYY-MM-DD format")
		}
		in.OpenDates = append(in.OpenDates, model.OpenDateRule{
			OpenType:        od.OpenType,
			OpenDate:        d,
			PeriodStartDays: od.PeriodStartDays,
			PeriodEndDays:   od.PeriodEndDays,
		})
	}
	for _, p := range r.ReservationPeriods {
		start, err1 := model.ParseDate(p.PeriodStartDate)
		end, err2 := model.ParseDate(p.PeriodEndDate)
		if err1 != nil || err2 != nil {
			return in, echo.NewHTTPError(http.StatusBadRequest, "reservation period dates must be in YYYY-MM-DD format")
		}
		if start.After(end.Time) {
			return in, echo.NewHTTPError(http.StatusBadRequest, "periodStartDate must not be after periodEndDate")
		}
		in.ReservationPeriods = append(in.ReservationPeriods, model.ReservationPeriodRule{
			OpenType:        p.OpenType,
			PeriodStartDate: start,
			PeriodEndDate:   end,
		})
	}
	return in, nil
}

// List returns a page of active products.
func (h *ProductHandler) List(c echo.Context) error {
	page, limit, err := pagination(c, 10, 100)
	if err != nil {
		return err
	}
	q := model.ProductQuery{Page: page, Limit: limit, Search: c.QueryParam("search")}

	ctx, cancel := h.ctx(c)
	defer cancel()

	products, total, err := h.products.List(ctx, q)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"products":   products,
		"pagination": model.NewPage(page, limit, total),
	})
}

// Get returns one product with its rules.
func (h *ProductHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	d, err := h.products.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Upsert creates or replaces a product and its rules, keyed by product code.
func (h *ProductHandler) Upsert(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	var req productReq
	if err := bind(c, &req); err != nil {
		return err
	}
	in, err := req.input()
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	id, created, err := h.products.Upsert(ctx, in, who.UserID)
	if err != nil {
		return err
	}
	h.record(c, who.UserID, audit.OpProductUpsert, echo.Map{
		"productId":          id,
		"productCode":        in.ProductCode,
		"created":            created,
		"openDates":          len(in.OpenDates),
		"reservationPeriods": len(in.ReservationPeriods),
	})

	if created {
		return c.JSON(http.StatusCreated, echo.Map{"message": "product created", "productId": id})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "product updated", "productId": id})
}

// Delete soft-deletes a product.
func (h *ProductHandler) Delete(c echo.Context) error {
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

	p, err := h.products.SoftDelete(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
		}
		return err
	}
	h.record(c, who.UserID, audit.OpProductDelete, echo.Map{"productId": p.ID, "productCode": p.ProductCode})
	return c.JSON(http.StatusOK, echo.Map{"message": "product deleted"})
}
