package server

import (
	"net/http"
	"strings"

	auditdomain "github.com/Mr-IR0k-oo1/Billio-sub000/internal/audit/domain"
	"github.com/Mr-IR0k-oo1/Billio-sub000/internal/auditcontext"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerTenantID  = "X-Tenant-ID"
	headerActorID   = "X-Actor-ID"
	headerRequestID = "X-Request-ID"

	ctxTenantKey = "tenant_id"
)

// TenantRequired resolves the calling tenant from the X-Tenant-ID
// header and threads actor and request identity into the context for
// the audit trail.
func (s *Server) TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(headerTenantID))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiError{
				Code:    "missing_tenant",
				Message: "X-Tenant-ID header is required",
			}})
			return
		}
		tenantID, err := snowflake.ParseString(raw)
		if err != nil || tenantID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": apiError{
				Code:    "invalid_tenant",
				Message: "X-Tenant-ID header is not a valid id",
			}})
			return
		}
		c.Set(ctxTenantKey, tenantID)

		ctx := c.Request.Context()
		requestID := strings.TrimSpace(c.GetHeader(headerRequestID))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx = auditcontext.WithRequestID(ctx, requestID)
		c.Header(headerRequestID, requestID)

		if actor := strings.TrimSpace(c.GetHeader(headerActorID)); actor != "" {
			ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeUser), actor)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RateLimit enforces a fixed-window per-tenant request budget.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerTenantID))
		if key == "" {
			key = c.ClientIP()
		}
		if !s.limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apiError{
				Code:    "rate_limited",
				Message: "too many requests",
			}})
			return
		}
		c.Next()
	}
}

func tenantFromContext(c *gin.Context) snowflake.ID {
	value, ok := c.Get(ctxTenantKey)
	if !ok {
		return 0
	}
	tenantID, ok := value.(snowflake.ID)
	if !ok {
		return 0
	}
	return tenantID
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		AbortWithError(c, newValidationError(name, "invalid_id", "path id is not valid"))
		return 0, false
	}
	return id, true
}
