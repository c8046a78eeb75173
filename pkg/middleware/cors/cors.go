package cors

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Methods and headers served by the earnings API.
var (
	AllowedMethods = []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions}
	AllowedHeaders = []string{"Content-Type", "X-Requested-With", "X-Request-ID", "X-Requester-ID"}
	ExposedHeaders = []string{"X-Request-ID", "Content-Disposition"}
)

// Options configures the middleware. An empty origin list allows any origin;
// an entry such as "https://*.example.com" matches every subdomain.
type Options struct {
	AllowedOrigins   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type originMatcher struct {
	exact    map[string]struct{}
	suffixes []string
	any      bool
}

func newOriginMatcher(origins []string) originMatcher {
	m := originMatcher{exact: make(map[string]struct{}, len(origins)), any: len(origins) == 0}
	for _, origin := range origins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		switch {
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			m.suffixes = append(m.suffixes, scheme+"://|"+host)
		case origin != "":
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m originMatcher) allows(origin string) bool {
	if m.any {
		return true
	}
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, suffix := range m.suffixes {
		scheme, host, _ := strings.Cut(suffix, "|")
		if strings.HasPrefix(origin, scheme) && strings.HasSuffix(origin, host) && len(origin) > len(scheme)+len(host) {
			return true
		}
	}
	return false
}

// New returns the CORS middleware for the dashboard front-ends.
func New(opts Options) gin.HandlerFunc {
	matcher := newOriginMatcher(opts.AllowedOrigins)
	methods := strings.Join(AllowedMethods, ", ")
	headers := strings.Join(AllowedHeaders, ", ")
	exposed := strings.Join(ExposedHeaders, ", ")
	maxAge := ""
	if opts.MaxAge > 0 {
		maxAge = strconv.Itoa(int(opts.MaxAge / time.Second))
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")

		origin := c.GetHeader("Origin")
		switch {
		case origin != "" && matcher.allows(origin):
			h.Set("Access-Control-Allow-Origin", origin)
			if opts.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}
		case origin == "" && matcher.any:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Access-Control-Allow-Headers", headers)
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Expose-Headers", exposed)
		if maxAge != "" {
			h.Set("Access-Control-Max-Age", maxAge)
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
