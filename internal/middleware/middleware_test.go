package middleware

import (
    "net/http"
    "net/http/httptest"
    "sync/atomic"
    "testing"
    "time"

    "github.com/alicebob/miniredis/v2"
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/fablab-reservation/internal/cache"
    "github.com/iliyamo/fablab-reservation/internal/config"
    "github.com/iliyamo/fablab-reservation/internal/model"
    "github.com/iliyamo/fablab-reservation/internal/utils"
)

func do(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, nil)
    if bearer != "" {
        req.Header.Set("Authorization", "Bearer "+bearer)
    }
    rec := httptest.NewRecorder()
    e.ServeHTTP(rec, req)
    return rec
}

func TestJWTAuthAndRequireRole(t *testing.T) {
    e := echo.New()
    g := e.Group("/admin", JWTAuth("k"), RequireRole(model.RoleAdmin))
    g.GET("/who", func(c echo.Context) error {
        p, ok := CurrentPrincipal(c)
        require.True(t, ok)
        return c.JSON(http.StatusOK, echo.Map{"id": p.AccountID, "role": p.Role, "name": p.Name})
    })

    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/admin/who", "").Code)
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/admin/who", "garbage").Code)

    client, err := utils.NewAccessToken("k", 5, "CLIENT", "C", time.Minute)
    require.NoError(t, err)
    assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/admin/who", client.Token).Code)

    admin, err := utils.NewAccessToken("k", 9, "ADMIN", "Root", time.Minute)
    require.NoError(t, err)
    rec := do(e, http.MethodGet, "/admin/who", admin.Token)
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.JSONEq(t, `{"id":9,"role":"ADMIN","name":"Root"}`, rec.Body.String())
}

func TestRequireRoleWithoutAuth(t *testing.T) {
    e := echo.New()
    e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(model.RoleAdmin))
    assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/x", "").Code)
}

func rlConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
        TTL: 5 * time.Hour, KeyStrategy: "ip", Prefix: "test:rl",
    }
}

func TestTokenBucketRedis(t *testing.T) {
    mr := miniredis.RunT(t)
    rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
    t.Cleanup(func() { _ = rdb.Close() })

    e := echo.New()
    e.Use(NewTokenBucket(rlConfig(), rdb))
    e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

    assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
    rec := do(e, http.MethodGet, "/", "")
    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
    rec = do(e, http.MethodGet, "/", "")
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.NotEmpty(t, rec.Header().Get("Retry-After"))
    assert.True(t, mr.Exists("test:rl:ip:192.0.2.1"))
}

func TestTokenBucketLocalFallback(t *testing.T) {
    e := echo.New()
    e.Use(NewTokenBucket(rlConfig(), nil))
    e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

    assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
    assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/", "").Code)
    assert.Equal(t, http.StatusTooManyRequests, do(e, http.MethodGet, "/", "").Code)
}

func TestResponseCacheAndPurge(t *testing.T) {
    cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "test:cache"}
    store := cache.NewMemoryCache(0, nil)
    var hits atomic.Int32

    e := echo.New()
    e.GET("/services", func(c echo.Context) error {
        hits.Add(1)
        return c.JSON(http.StatusOK, echo.Map{"n": hits.Load()})
    }, NewResponseCache(cfg, store))
    e.POST("/services", func(c echo.Context) error {
        return c.NoContent(http.StatusCreated)
    }, PurgeOnWrite(cfg, store))

    first := do(e, http.MethodGet, "/services", "")
    assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
    second := do(e, http.MethodGet, "/services", "")
    assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
    assert.Equal(t, first.Body.String(), second.Body.String())
    assert.Equal(t, "application/json", second.Header().Get(echo.HeaderContentType)[:16])
    assert.EqualValues(t, 1, hits.Load())

    assert.Equal(t, http.StatusCreated, do(e, http.MethodPost, "/services", "").Code)
    third := do(e, http.MethodGet, "/services", "")
    assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
    assert.EqualValues(t, 2, hits.Load())
}

func TestResponseCacheKeysOnConcretePath(t *testing.T) {
    cfg := config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "test:cache"}
    store := cache.NewMemoryCache(0, nil)

    e := echo.New()
    g := e.Group("/v1", NewResponseCache(cfg, store))
    g.GET("/services/:id", func(c echo.Context) error {
        return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
    })

    one := do(e, http.MethodGet, "/v1/services/1", "")
    assert.Equal(t, "MISS", one.Header().Get("X-Cache"))
    two := do(e, http.MethodGet, "/v1/services/2", "")
    assert.Equal(t, "MISS", two.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"id":"2"}`, two.Body.String())

    again := do(e, http.MethodGet, "/v1/services/1", "")
    assert.Equal(t, "HIT", again.Header().Get("X-Cache"))
    assert.JSONEq(t, `{"id":"1"}`, again.Body.String())
}

func TestPayloadCodec(t *testing.T) {
    hdr := http.Header{"Content-Type": {"text/plain"}}
    bs, err := encodePayload(201, hdr, []byte("body"))
    require.NoError(t, err)
    status, got, body, ok := decodePayload(bs)
    require.True(t, ok)
    assert.Equal(t, 201, status)
    assert.Equal(t, "text/plain", got.Get("Content-Type"))
    assert.Equal(t, "body", string(body))

    _, _, _, ok = decodePayload([]byte{0, 1})
    assert.False(t, ok)
}
