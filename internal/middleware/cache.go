package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/campus-rideshare/internal/config"
)

// cachedResponse is the stored form of one listing response.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// skipOnReplay lists headers that are recomputed for every response.
var skipOnReplay = map[string]bool{
	"Content-Length": true,
	"X-Cache":        true,
	"X-Request-Id":   true,
}

func (r cachedResponse) replay(c echo.Context) error {
	h := c.Response().Header()
	for k, vals := range r.Header {
		if skipOnReplay[http.CanonicalHeaderKey(k)] {
			continue
		}
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set("X-Cache", "HIT")
	c.Response().WriteHeader(r.Status)
	_, err := c.Response().Write(r.Body)
	return err
}

// recorder tees what the handler writes, giving up on bodies over limit.
type recorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (w *recorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *recorder) Write(b []byte) (int, error) {
	if !w.overflow {
		if w.limit > 0 && w.body.Len()+len(b) > w.limit {
			w.overflow = true
			w.body.Reset()
		} else {
			w.body.Write(b)
		}
	}
	return w.ResponseWriter.Write(b)
}

// cacheKey is prefix:group:sha1(method route path query).  The route
// pattern and the concrete path both take part so that /v1/rides/:id
// caches one entry per ride.
func cacheKey(cfg config.CacheConfig, group string, c echo.Context) string {
	r := c.Request()
	tail := strings.Join([]string{r.Method, c.Path(), r.URL.Path, r.URL.RawQuery}, "\x00")
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%s:%x", cfg.Prefix, group, sum[:])
}

// NewRedisCache caches successful responses of the wrapped routes in
// Redis under group.  Each stored key is also added to the group's index
// set so that service.CacheGate can drop the whole group after a write.
// With caching disabled or no client the middleware is a pass-through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, group string, log *slog.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = slog.Default()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	index := cfg.IndexKey(group)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			key := cacheKey(cfg, group, c)

			if bs, err := rdb.Get(c.Request().Context(), key).Bytes(); err == nil {
				var hit cachedResponse
				if json.Unmarshal(bs, &hit) == nil && hit.Status != 0 {
					return hit.replay(c)
				}
			} else if err != redis.Nil {
				log.Warn("cache_read_failed", "key", key, "error", err)
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}

			payload, err := json.Marshal(cachedResponse{
				Status: rec.status,
				Header: c.Response().Header().Clone(),
				Body:   rec.body.Bytes(),
			})
			if err != nil {
				return nil
			}
			// the response is already sent; store with a fresh context
			sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			pipe := rdb.TxPipeline()
			pipe.SetEx(sctx, key, payload, ttl)
			pipe.SAdd(sctx, index, key)
			pipe.Expire(sctx, index, ttl)
			if _, err := pipe.Exec(sctx); err != nil {
				log.Warn("cache_store_failed", "key", key, "error", err)
			}
			return nil
		}
	}
}
