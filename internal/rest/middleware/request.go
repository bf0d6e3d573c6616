package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	ierr "github.com/relaycrm/billing/internal/errors"
	"github.com/relaycrm/billing/internal/types"
)

// Request headers propagated into the request context
const (
	HeaderRequestID = "X-Request-ID"
	HeaderTenantID  = "X-Tenant-ID"
	HeaderUserID    = "X-User-ID"
)

// RequestIDMiddleware attaches a request ID to the context and echoes it back
// in the response headers.
func RequestIDMiddleware(c *gin.Context) {
	ctx := c.Request.Context()

	requestID := c.GetHeader(HeaderRequestID)
	if requestID == "" {
		requestID = types.GenerateUUID()
	}

	ctx = context.WithValue(ctx, types.CtxRequestID, requestID)
	c.Request = c.Request.WithContext(ctx)
	c.Header(HeaderRequestID, requestID)

	c.Next()
}

// TenantContextMiddleware resolves the tenant and acting user from the
// headers set by the CRM's API gateway. Requests without a tenant are
// rejected before reaching any handler.
func TenantContextMiddleware(c *gin.Context) {
	tenantID := c.GetHeader(HeaderTenantID)
	if tenantID == "" {
		c.Error(ierr.NewError("missing tenant header").
			WithHintf("The %s header is required", HeaderTenantID).
			Mark(ierr.ErrValidation))
		c.Abort()
		return
	}

	ctx := c.Request.Context()
	ctx = types.SetTenantID(ctx, tenantID)
	if userID := c.GetHeader(HeaderUserID); userID != "" {
		ctx = types.SetUserID(ctx, userID)
	}
	c.Request = c.Request.WithContext(ctx)

	c.Next()
}
