package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/grx1242064203-bit/fund-calendar/internal/audit"
	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/repository"
	"github.com/grx1242064203-bit/fund-calendar/internal/utils"
)

// AuthHandler serves registration, login and the current-user endpoint.
type AuthHandler struct {
	base
	cfg   config.Config
	users UserStore
	log   zerolog.Logger
}

func NewAuthHandler(d Deps) *AuthHandler {
	return &AuthHandler{base: newBase(d), cfg: d.Config, users: d.Users, log: d.Log}
}

// ----- DTOs -----

type registerReq struct {
	Phone    string  `json:"phone" validate:"required,cnphone"`
	Password string  `json:"password" validate:"required,min=6"`
	RealName *string `json:"realName" validate:"omitempty,max=50"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

func (r *registerReq) trim() { r.Phone = strings.TrimSpace(r.Phone) }

type loginReq struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (r *loginReq) trim() { r.Phone = strings.TrimSpace(r.Phone) }

func (h *AuthHandler) issue(u *model.User) (string, error) {
	realName := ""
	if u.RealName != nil {
		realName = *u.RealName
	}
	tok, err := utils.NewAccessToken(h.cfg.JWT.Secret, u.ID, u.Phone, u.Role, realName, h.cfg.JWT.ExpiresIn)
	if err != nil {
		return "", err
	}
	return tok.Token, nil
}

// Register creates a regular user and signs them in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u := &model.User{Phone: req.Phone, Role: model.RoleUser, RealName: req.RealName, Email: req.Email}
	id, err := h.users.Create(ctx, u, req.Password, h.cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "phone number already registered"})
		}
		return err
	}

	token, err := h.issue(u)
	if err != nil {
		return err
	}
	h.record(c, id, audit.OpRegister, echo.Map{"phone": u.Phone})

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "registration successful",
		"userId":  id,
		"token":   token,
		"user":    u,
	})
}

// Login verifies phone and password and returns an access token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.users.GetByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid phone number or password"})
		}
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid phone number or password"})
	}

	if err := h.users.TouchLastLogin(ctx, u.ID); err != nil {
		h.log.Warn().Err(err).Uint64("user_id", u.ID).Msg("update last login failed")
	}
	token, err := h.issue(u)
	if err != nil {
		return err
	}
	h.record(c, u.ID, audit.OpLogin, echo.Map{"phone": u.Phone})

	return c.JSON(http.StatusOK, echo.Map{
		"message": "login successful",
		"token":   token,
		"user":    u,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := actor(c)
	if err != nil {
		return err
	}

	ctx, cancel := h.ctx(c)
	defer cancel()

	u, err := h.users.GetByID(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}
