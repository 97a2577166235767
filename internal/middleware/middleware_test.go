package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tournament-registration/internal/config"
	"github.com/iliyamo/tournament-registration/internal/utils"
)

const testSecret = "test-secret"

func newProtected(roles ...string) *echo.Echo {
	e := echo.New()
	g := e.Group("/v1", JWTAuth(testSecret), RequireRole(roles...))
	g.GET("/whoami", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"user_id": c.Get(ContextUserID), "role": c.Get(ContextRole)})
	})
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 42, "ORGANIZER", 5)
	require.NoError(t, err)

	rec := do(newProtected("ORGANIZER", "ADMIN"), tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 42, body["user_id"])
	assert.Equal(t, "ORGANIZER", body["role"])
}

func TestJWTAuthRejects(t *testing.T) {
	e := newProtected("USER")

	assert.Equal(t, http.StatusUnauthorized, do(e, "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, "not-a-jwt").Code)

	wrong, err := utils.NewAccessToken("other-secret", 1, "USER", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, wrong.Token).Code)

	expired, err := utils.NewAccessToken(testSecret, 1, "USER", -5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, expired.Token).Code)

	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "7"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, do(e, noRole).Code)
}

func TestRequireRole(t *testing.T) {
	tok, err := utils.NewAccessToken(testSecret, 3, "USER", 5)
	require.NoError(t, err)
	rec := do(newProtected("ADMIN"), tok.Token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "FORBIDDEN")
}

func TestSubjectID(t *testing.T) {
	for _, tc := range []struct {
		in   interface{}
		want uint64
		ok   bool
	}{
		{float64(12), 12, true},
		{"12", 12, true},
		{float64(1.5), 0, false},
		{float64(-1), 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{nil, 0, false},
	} {
		got, ok := subjectID(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.Equal(t, tc.want, got, "%v", tc.in)
	}
}

func TestKeysFollowStrategy(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/tournaments/9/registrations?x=1", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/tournaments/:id/registrations")
	c.Set(ContextUserID, uint64(5))

	rl := config.RateLimitConfig{Prefix: "trn:rl", KeyStrategy: "user_route"}
	assert.Equal(t, "trn:rl:user:5:route:POST /v1/tournaments/:id/registrations", rateKey(rl, c))
	rl.KeyStrategy = "ip"
	assert.Equal(t, "trn:rl:ip:10.0.0.1", rateKey(rl, c))

	cc := config.CacheConfig{Prefix: "trn:cache", KeyStrategy: "route_query"}
	k1 := cacheKey(cc, c)
	assert.Contains(t, k1, "trn:cache:")

	other := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/tournaments/10/registrations?x=1", nil), httptest.NewRecorder())
	other.SetPath("/v1/tournaments/:id/registrations")
	assert.NotEqual(t, k1, cacheKey(cc, other))
	cc.KeyStrategy = "route"
	assert.Equal(t, cacheKey(cc, c), cacheKey(cc, other))
}

func TestDisabledRedisMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.Use(NewRedisCache(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewCachePurger(config.CacheConfig{Enabled: true}, nil))
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestLocalLimiterFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "trn:rl",
	}
	e := echo.New()
	e.POST("/v1/tournaments/:id/registrations", func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	}, NewTokenBucket(cfg, nil))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/tournaments/1/registrations", nil)
		req.Header.Set(echo.HeaderXRealIP, ip)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusCreated, send("10.0.0.1").Code)
	blocked := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "3600", blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), "TOO_MANY_REQUESTS")

	// buckets are per key
	assert.Equal(t, http.StatusCreated, send("10.0.0.2").Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/v1/tournaments/:id", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "missing")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tournaments/3?full=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/v1/tournaments/:id", entry["route"])
	assert.EqualValues(t, 404, entry["status"])
	assert.Equal(t, "full=1", entry["query"])
	assert.Equal(t, "guest", entry["user_id"])
}
