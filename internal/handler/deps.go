package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/middleware"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// UserStore is the account storage used by auth and admin endpoints.
type UserStore interface {
	Create(ctx context.Context, u *model.User, password string, cost int) (uint64, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	TouchLastLogin(ctx context.Context, id uint64) error
	UpdatePassword(ctx context.Context, id uint64, password string, cost int) (*model.User, error)
}

// ProductStore is the product schedule storage.
type ProductStore interface {
	List(ctx context.Context, q model.ProductQuery) ([]model.Product, int64, error)
	Get(ctx context.Context, id uint64) (*model.ProductDetail, error)
	Upsert(ctx context.Context, in model.ProductInput, actorID uint64) (uint64, bool, error)
	SoftDelete(ctx context.Context, id uint64) (*model.Product, error)
}

// HolidayStore is the holiday storage.
type HolidayStore interface {
	ListByYear(ctx context.Context, year int) ([]model.Holiday, error)
	ListByMonth(ctx context.Context, year int, month time.Month) ([]model.Holiday, error)
	Create(ctx context.Context, h *model.Holiday) error
	CreateMissing(ctx context.Context, hs []model.Holiday) (int, error)
	SoftDelete(ctx context.Context, id uint64) (*model.Holiday, error)
}

// LogStore lists stored operation logs.
type LogStore interface {
	List(ctx context.Context, page, limit int) ([]model.OperationLog, int64, error)
}

// CalendarView builds month calendars.
type CalendarView interface {
	Validate(year, month int) error
	Month(ctx context.Context, year, month int) (*model.CalendarMonth, error)
	Workbook(ctx context.Context, year, month int) (*excelize.File, error)
}

// Recorder accepts audit entries without blocking.
type Recorder interface {
	Record(e audit.Entry)
}

// Deps wires the handlers to their collaborators.
type Deps struct {
	Config   config.Config
	Users    UserStore
	Products ProductStore
	Holidays HolidayStore
	Logs     LogStore
	Calendar CalendarView
	Audit    Recorder
	Log      zerolog.Logger
}

// base carries what every handler needs: the per-request storage deadline
// and the audit recorder.
type base struct {
	timeout time.Duration
	audit   Recorder
}

func newBase(d Deps) base {
	timeout := d.Config.DB.AcquireTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return base{timeout: timeout, audit: d.Audit}
}

// ctx bounds storage calls made while serving c.
func (b base) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), b.timeout)
}

// record audits an operation performed by actorID on behalf of c.
func (b base) record(c echo.Context, actorID uint64, op string, detail any) {
	if b.audit == nil {
		return
	}
	b.audit.Record(audit.Entry{
		ActorID:   actorID,
		Operation: op,
		Detail:    detail,
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	})
}

// actor returns the authenticated identity. Routes using it sit behind
// JWTAuth, so a missing identity is a wiring error.
func actor(c echo.Context) (middleware.Identity, error) {
	id, ok := middleware.CurrentIdentity(c)
	if !ok {
		return id, echo.NewHTTPError(http.StatusUnauthorized, "access token required")
	}
	return id, nil
}

func paramID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// pagination reads page and limit query parameters. page defaults to 1 and
// limit to def; limit is capped at max.
func pagination(c echo.Context, def, max int) (page, limit int, err error) {
	page, limit = 1, def
	if s := strings.TrimSpace(c.QueryParam("page")); s != "" {
		if page, err = strconv.Atoi(s); err != nil || page < 1 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "page must be a positive integer")
		}
	}
	if s := strings.TrimSpace(c.QueryParam("limit")); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit < 1 {
			return 0, 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	if limit > max {
		limit = max
	}
	return page, limit, nil
}
