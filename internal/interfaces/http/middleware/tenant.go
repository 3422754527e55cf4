package middleware

import (
	"net/http"

	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	TenantHeaderKey = "X-Tenant-ID"
	tenantIDKey     = "tenant_id"
)

// RequireTenant reads the tenant from the X-Tenant-ID header and rejects
// requests without a valid UUID. The tenant is attached to the gin context
// and to the request logger.
func RequireTenant() gin.HandlerFunc {
	return tenant(true)
}

// OptionalTenant is RequireTenant for cross-tenant operator routes: a
// missing header passes through unscoped, a malformed one is still rejected.
func OptionalTenant() gin.HandlerFunc {
	return tenant(false)
}

func tenant(required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(TenantHeaderKey)
		if raw == "" && !required {
			c.Next()
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(
				dto.ErrCodeTenantRequired,
				"A valid X-Tenant-ID header is required",
				c.GetHeader(logger.RequestIDHeader),
			))
			return
		}

		c.Set(tenantIDKey, tenantID)
		ctx := c.Request.Context()
		ctx, _ = logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// TenantID returns the tenant set by RequireTenant.
func TenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(tenantIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}
