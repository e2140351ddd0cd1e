package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
)

// AdminHandler serves user management and the operation log.
type AdminHandler struct {
	base
	cfg   config.Config
	users UserStore
	logs  LogStore
}

func NewAdminHandler(d Deps) *AdminHandler {
	return &AdminHandler{base: newBase(d), cfg: d.Config, users: d.Users, logs: d.Logs}
}

type resetPasswordReq struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// Users lists every account, including deactivated ones.
func (h *AdminHandler) Users(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()

	users, err := h.users.List(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// ResetPassword sets a new password for an active user.
func (h *AdminHandler) ResetPassword(c echo.Context) error {
	who, err := actor(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req resetPasswordReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.users.UpdatePassword(ctx, id, req.NewPassword, h.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return err
	}
	h.record(c, who.UserID, audit.OpResetPassword, echo.Map{"targetUserId": u.ID, "phone": u.Phone})
	return c.JSON(http.StatusOK, echo.Map{"message": "password reset"})
}

// Logs returns a page of operation logs, newest first.
func (h *AdminHandler) Logs(c echo.Context) error {
	page, limit, err := pagination(c, 50, 200)
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	logs, total, err := h.logs.List(ctx, page, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"logs":       logs,
		"pagination": model.NewPage(page, limit, total),
	})
}
