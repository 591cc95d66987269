package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	aws_pkg "github.com/rpr91/Malandros/pkg/aws"
	"github.com/rpr91/Malandros/pkg/csrf"
)

// CSRFTokenKey is the gin context key holding the token minted for this request.
const CSRFTokenKey = "csrfToken"

// csrfCookieMaxAge bounds how long a primed token stays usable without a new GET.
const csrfCookieMaxAge = 24 * 60 * 60

// CSRFOptions configures the anti-forgery cookie.
type CSRFOptions struct {
	SameSite http.SameSite
	Secure   bool
	Metrics  aws_pkg.MetricsRecorder
}

// CSRFProtection primes a fresh token on safe requests and requires a valid
// X-CSRF-Token header on mutating ones. A token is single use: every accepted
// mutation rotates the cookie before the handler runs.
func CSRFProtection(gen *csrf.Generator, opts CSRFOptions, logger *zap.Logger) gin.HandlerFunc {
	if opts.SameSite == 0 {
		opts.SameSite = http.SameSiteLaxMode
	}
	if opts.Metrics == nil {
		opts.Metrics = aws_pkg.NopMetrics{}
	}

	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			cookie, _ := c.Cookie(csrf.CookieName)
			if !gen.Validate(c.GetHeader(csrf.HeaderName), cookie) {
				logger.Warn("CSRF validation failed",
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(RequestIDKey)),
				)
				if err := opts.Metrics.RecordCount(c.Request.Context(), aws_pkg.MetricCSRFRejections, nil); err != nil {
					logger.Debug("Failed to record CSRF rejection", zap.Error(err))
				}
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Invalid CSRF token"})
				return
			}
		case http.MethodOptions, http.MethodHead:
			c.Next()
			return
		}

		token, err := gen.Generate()
		if err != nil {
			logger.Error("Failed to generate CSRF token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
			return
		}
		c.SetSameSite(opts.SameSite)
		c.SetCookie(csrf.CookieName, token, csrfCookieMaxAge, "/", "", opts.Secure, true)
		c.Set(CSRFTokenKey, token)
		c.Next()
	}
}

// CSRFToken returns the token minted for the current request, if any.
func CSRFToken(c *gin.Context) string {
	return c.GetString(CSRFTokenKey)
}

// ParseSameSite maps the CSRF_SAMESITE setting onto http.SameSite.
func ParseSameSite(mode string) http.SameSite {
	if mode == "strict" {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
