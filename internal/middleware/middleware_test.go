package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grx1242064203-bit/fund-calendar/internal/config"
	"github.com/grx1242064203-bit/fund-calendar/internal/model"
	"github.com/grx1242064203-bit/fund-calendar/internal/utils"
)

const testSecret = "test-secret"

func newGatedServer() *echo.Echo {
	e := echo.New()
	auth := JWTAuth(testSecret)
	e.GET("/me", func(c echo.Context) error {
		id, _ := CurrentIdentity(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id.UserID, "role": id.Role})
	}, auth)
	e.GET("/admin", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	}, auth, RequireRole(model.RoleAdmin))
	return e
}

func bearer(t *testing.T, secret string, id uint64, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, "13800000000", role, "Tester", ttl)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func do(e *echo.Echo, method, path, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set(echo.HeaderAuthorization, authz)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := newGatedServer()

	tests := []struct {
		name   string
		authz  string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"wrong secret", bearer(t, "other", 1, model.RoleUser, time.Hour), http.StatusUnauthorized},
		{"expired", bearer(t, testSecret, 1, model.RoleUser, -time.Minute), http.StatusUnauthorized},
		{"valid", bearer(t, testSecret, 7, model.RoleUser, time.Hour), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodGet, "/me", tt.authz)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":7,"role":"user"}`, rec.Body.String())
			} else {
				assert.Contains(t, rec.Body.String(), `"error"`)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := newGatedServer()

	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusForbidden,
		do(e, http.MethodGet, "/admin", bearer(t, testSecret, 2, model.RoleUser, time.Hour)).Code)
	assert.Equal(t, http.StatusNoContent,
		do(e, http.MethodGet, "/admin", bearer(t, testSecret, 1, model.RoleAdmin, time.Hour)).Code)
}

func limitedServer(cfg config.RateLimitConfig, rdb *redis.Client) *echo.Echo {
	e := echo.New()
	e.Use(RateLimit(cfg, rdb, zerolog.Nop()))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })
	return e
}

func testRateConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       3,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            5 * time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
}

func assertBucket(t *testing.T, e *echo.Echo) {
	t.Helper()
	for i := 0; i < 3; i++ {
		rec := do(e, http.MethodGet, "/ping", "")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(2-i), rec.Header().Get("X-RateLimit-Remaining"))
	}
	rec := do(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	assertBucket(t, limitedServer(testRateConfig(), rdb))
	assert.True(t, mr.Exists("rl:ip:192.0.2.1"))
}

func TestRateLimit_Local(t *testing.T) {
	assertBucket(t, limitedServer(testRateConfig(), nil))
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	e := limitedServer(testRateConfig(), rdb)
	mr.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/ping", "").Code)
	}
}

func TestRateLimit_Disabled(t *testing.T) {
	cfg := testRateConfig()
	cfg.Enabled = false
	e := limitedServer(cfg, nil)

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/ping", "").Code)
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/products")
	c.Set(identityKey, Identity{UserID: 5, Role: model.RoleUser})

	cfg := testRateConfig()
	assert.Equal(t, "rl:ip:192.0.2.1", buildRateKey(cfg, c))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:5", buildRateKey(cfg, c))
	cfg.KeyStrategy = "ip_route"
	assert.Equal(t, "rl:ip:192.0.2.1:route:GET /api/products", buildRateKey(cfg, c))
}
