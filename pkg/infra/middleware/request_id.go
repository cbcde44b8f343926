package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	infralog "github.com/kart-io/medreport/pkg/infra/logger"
	mwopts "github.com/kart-io/medreport/pkg/options/middleware"
	"github.com/kart-io/medreport/pkg/utils/response"
)

// HeaderXRequestID is the default request ID header.
const HeaderXRequestID = "X-Request-ID"

// maxRequestIDLength bounds client-supplied IDs so they stay loggable.
const maxRequestIDLength = 128

type requestIDKey struct{}

// GetRequestID returns the request ID stored in ctx, or "".
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID stores the request ID in ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns a middleware that adds a unique request ID to each request.
func RequestID() gin.HandlerFunc {
	return RequestIDWithOptions(*mwopts.NewRequestIDOptions())
}

// RequestIDWithOptions keeps a client-supplied ID or generates a ULID. The ID
// is echoed in the response header, stored on the gin context for the
// response envelope, and on the request context for downstream logging.
func RequestIDWithOptions(opts mwopts.RequestIDOptions) gin.HandlerFunc {
	header := opts.Header
	if header == "" {
		header = HeaderXRequestID
	}

	return func(c *gin.Context) {
		id := c.GetHeader(header)
		if id == "" || len(id) > maxRequestIDLength {
			id = ulid.Make().String()
		}

		c.Header(header, id)
		c.Set(response.RequestIDKey, id)
		ctx := infralog.WithRequestID(WithRequestID(c.Request.Context(), id), id)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
