package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	HTTPCachePrefix         = "blockdraft:http-cache:"
	defaultHTTPCacheTTL     = 15 * time.Second
	defaultHTTPCacheMaxBody = 1 << 20
)

type HTTPCacheOptions struct {
	TTL          time.Duration
	Disable      bool
	MaxBodyBytes int
}

type cachedPage struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body     []byte
	limit    int
	overflow bool
}

func (w *captureWriter) Write(data []byte) (int, error) {
	w.capture(data)
	return w.ResponseWriter.Write(data)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.capture([]byte(s))
	return w.ResponseWriter.WriteString(s)
}

func (w *captureWriter) capture(data []byte) {
	if w.overflow {
		return
	}
	if len(w.body)+len(data) > w.limit {
		w.overflow = true
		w.body = nil
		return
	}
	w.body = append(w.body, data...)
}

// HTTPCache caches anonymous GET responses of the public render pages in
// Redis. Authenticated callers may see unpublished drafts and bypass it.
func HTTPCache(rdb *redis.Client, opts HTTPCacheOptions) gin.HandlerFunc {
	if opts.TTL <= 0 {
		opts.TTL = defaultHTTPCacheTTL
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultHTTPCacheMaxBody
	}
	return func(c *gin.Context) {
		if opts.Disable || rdb == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}
		if IsAuthenticated(c) {
			c.Header("Cache-Control", "private, no-store")
			c.Next()
			return
		}

		key := HTTPCachePrefix + c.Request.URL.RequestURI()
		ctx := c.Request.Context()
		if page, ok := readCachedPage(ctx, rdb, key); ok {
			c.Header("x-blockdraft-cache", "hit")
			c.Data(page.Status, page.ContentType, page.Body)
			c.Abort()
			return
		}

		w := &captureWriter{ResponseWriter: c.Writer, limit: opts.MaxBodyBytes}
		c.Writer = w
		c.Next()

		if w.Status() != http.StatusOK || w.overflow || len(w.body) == 0 {
			return
		}
		if cc := strings.ToLower(w.Header().Get("Cache-Control")); strings.Contains(cc, "no-store") || strings.Contains(cc, "private") {
			return
		}
		raw, err := json.Marshal(cachedPage{
			Status:      http.StatusOK,
			ContentType: w.Header().Get("Content-Type"),
			Body:        w.body,
		})
		if err != nil {
			return
		}
		_ = rdb.Set(ctx, key, raw, opts.TTL).Err()
	}
}

// PurgeHTTPCache drops cached pages whose URI contains match; an empty match
// drops everything.
func PurgeHTTPCache(ctx context.Context, rdb *redis.Client, match string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	pattern := HTTPCachePrefix + "*"
	if match != "" {
		pattern = HTTPCachePrefix + "*" + match + "*"
	}
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := rdb.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

func readCachedPage(ctx context.Context, rdb *redis.Client, key string) (cachedPage, bool) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil || len(raw) == 0 {
		return cachedPage{}, false
	}
	var page cachedPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return cachedPage{}, false
	}
	if page.Status <= 0 {
		page.Status = http.StatusOK
	}
	if page.ContentType == "" {
		page.ContentType = "text/html; charset=utf-8"
	}
	return page, true
}

// MaxAge marks responses as publicly cacheable for ttl.
func MaxAge(ttl time.Duration) gin.HandlerFunc {
	value := "public, max-age=" + strconv.Itoa(int(ttl/time.Second))
	return func(c *gin.Context) {
		c.Header("Cache-Control", value)
		c.Next()
	}
}
