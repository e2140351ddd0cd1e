// Package router builds the echo instance and registers every route.
package router

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/grx1242064203-bit/fund-calendar/internal/handler"
	"github.com/grx1242064203-bit/fund-calendar/internal/middleware"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// Options carries the optional infrastructure of the server.
type Options struct {
	// Redis backs the shared rate limiter. Nil selects the in-process one.
	Redis *redis.Client
	// Checks are run by /readyz.
	Checks map[string]handler.Check
}

// New returns a fully configured echo instance.
func New(d handler.Deps, opts Options) *echo.Echo {
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: func() string { return uuid.NewString() },
	}))
	e.Use(middleware.Metrics())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.Secure())
	cors := echomw.CORSConfig{
		AllowOrigins: []string{cfg.App.FrontendURL},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}
	if cfg.App.FrontendURL != "*" {
		cors.AllowCredentials = true
	}
	e.Use(echomw.CORSWithConfig(cors))
	e.Use(echomw.BodyLimit(cfg.App.BodyLimit))

	RegisterRoutes(e, opts.Checks)

	api := e.Group("/api", middleware.RateLimit(cfg.RateLimit, opts.Redis, d.Log))
	auth := middleware.JWTAuth(cfg.JWT.Secret)
	admin := middleware.RequireRole(model.RoleAdmin)

	RegisterAuth(api, handler.NewAuthHandler(d), auth)
	RegisterProducts(api, handler.NewProductHandler(d), auth, admin)
	RegisterHolidays(api, handler.NewHolidayHandler(d), auth, admin)
	RegisterCalendar(api, handler.NewCalendarHandler(d), auth)
	RegisterAdmin(api, handler.NewAdminHandler(d), auth, admin)
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(checks))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers registration, login and the current-user route.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, auth echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.GET("/me", a.Me, auth)
}

// RegisterProducts registers product reads for any user and writes for admins.
func RegisterProducts(api *echo.Group, p *handler.ProductHandler, auth, admin echo.MiddlewareFunc) {
	g := api.Group("/products", auth)
	g.GET("", p.List)
	g.GET("/:id", p.Get)
	g.POST("", p.Upsert, admin)
	g.DELETE("/:id", p.Delete, admin)
}

// RegisterHolidays registers holiday reads for any user and writes for admins.
func RegisterHolidays(api *echo.Group, h *handler.HolidayHandler, auth, admin echo.MiddlewareFunc) {
	g := api.Group("/holidays", auth)
	g.GET("", h.List)
	g.POST("", h.Create, admin)
	g.POST("/weekends", h.GenerateWeekends, admin)
	g.DELETE("/:id", h.Delete, admin)
}

// RegisterCalendar registers the month view and its workbook export.
func RegisterCalendar(api *echo.Group, h *handler.CalendarHandler, auth echo.MiddlewareFunc) {
	g := api.Group("/calendar", auth)
	g.GET("/:year/:month", h.Month)
	g.GET("/:year/:month/export", h.Export)
}

// RegisterAdmin registers the admin-only management routes.
func RegisterAdmin(api *echo.Group, h *handler.AdminHandler, auth, admin echo.MiddlewareFunc) {
	g := api.Group("/admin", auth, admin)
	g.GET("/users", h.Users)
	g.POST("/users/:id/reset-password", h.ResetPassword)
	g.GET("/logs", h.Logs)
}
