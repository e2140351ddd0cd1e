package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/utils"
)

const identityKey = "identity"

// Identity is the authenticated caller as described by the access token.
type Identity struct {
	UserID   uint64
	Phone    string
	Role     string
	RealName string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == model.RoleAdmin }

// CurrentIdentity returns the identity stored by JWTAuth.
func CurrentIdentity(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}

// JWTAuth validates the Bearer access token and stores the caller's
// Identity in the context. Missing or invalid tokens get 401.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "access token required"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}

			c.Set(identityKey, Identity{
				UserID:   claims.UserID,
				Phone:    claims.Phone,
				Role:     claims.Role,
				RealName: claims.RealName,
			})
			return next(c)
		}
	}
}
