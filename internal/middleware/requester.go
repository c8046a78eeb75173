package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ContextRequesterKey is the gin context key storing the requester id.
	ContextRequesterKey = "requester"
	// RequesterHeader carries the caller identity set by the upstream gateway.
	RequesterHeader = "X-Requester-ID"
	// AnonymousRequester is used when no identity header is present.
	AnonymousRequester = "anonymous"

	maxRequesterLength = 64
)

// Requester attaches the caller identity forwarded by the gateway. The service does
// not authenticate; the id only scopes export job listings.
func Requester() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequesterHeader))
		if id == "" {
			id = AnonymousRequester
		}
		if len(id) > maxRequesterLength {
			id = id[:maxRequesterLength]
		}
		c.Set(ContextRequesterKey, id)
		c.Next()
	}
}

// RequesterFromContext returns the requester id or AnonymousRequester.
func RequesterFromContext(c *gin.Context) string {
	if c == nil {
		return AnonymousRequester
	}
	if value, ok := c.Get(ContextRequesterKey); ok {
		if id, ok := value.(string); ok && id != "" {
			return id
		}
	}
	return AnonymousRequester
}
