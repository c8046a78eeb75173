package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "response_meta"
	requestStartKey = "response_meta_start"
	cacheHitKey     = "cache_hit"
	processingKey   = "processing_time_ms"
	resultMonthKey  = "month"
	resultCountKey  = "count"
)

// WithResponseMeta starts the clock and the metadata map that handlers fill and the
// response envelope renders under "meta".
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the earnings came from the cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// SetResult records the month and the number of controller rows returned.
// An empty month is left out.
func SetResult(c *gin.Context, yearMonth string, count int) {
	meta := ensureMeta(c)
	meta[resultCountKey] = count
	if yearMonth != "" {
		meta[resultMonthKey] = yearMonth
	}
}

// Meta returns the metadata gathered so far, stamped with the elapsed processing time.
func Meta(c *gin.Context) map[string]interface{} {
	meta := ensureMeta(c)
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			meta[processingKey] = time.Since(t).Milliseconds()
		}
	}
	if _, ok := meta[processingKey]; !ok {
		meta[processingKey] = int64(0)
	}
	return meta
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
