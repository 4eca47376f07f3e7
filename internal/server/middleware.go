package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	admindomain "github.com/smallbiznis/grievance-portal/internal/admin/domain"
	"github.com/smallbiznis/grievance-portal/internal/observability/logger"
	"go.uber.org/zap"
)

const contextPrincipalKey = "admin_principal"

func serveIndex(c *gin.Context) {
	c.File("./public/index.html")
}

// AdminRequired resolves the session cookie into a principal.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.cookies.Read(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.adminSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextPrincipalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) *admindomain.Principal {
	value, ok := c.Get(contextPrincipalKey)
	if !ok {
		return nil
	}
	principal, _ := value.(*admindomain.Principal)
	return principal
}

// RequireAccess enforces the admin policy for object. It must run after
// AdminRequired.
func (s *Server) RequireAccess(object string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.adminSvc.Authorize(c.Request.Context(), principalFrom(c), object, admindomain.ActionRead); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// RateLimit throttles public write endpoints per client IP. Limiter
// failures let the request through.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		result, err := s.limiter.Allow(ctx, endpoint, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("rate limit check failed", zap.Error(err), zap.String("endpoint", endpoint))
			c.Next()
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("rate limit exceeded", zap.String("endpoint", endpoint))
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, "client-rate")

			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}

		s.obsMetrics.RecordRateLimitAllowed(ctx, endpoint)
		c.Next()
	}
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
