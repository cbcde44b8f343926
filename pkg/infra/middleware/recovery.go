// Package middleware provides the gin middlewares installed by the HTTP server.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	mwopts "github.com/kart-io/medreport/pkg/options/middleware"
	"github.com/kart-io/medreport/pkg/utils/errors"
	"github.com/kart-io/medreport/pkg/utils/response"
)

// PanicHandler 定义 panic 处理器类型。
type PanicHandler func(c *gin.Context, err any, stack []byte)

// Recovery returns a middleware that recovers from panics with default options.
func Recovery() gin.HandlerFunc {
	return RecoveryWithOptions(*mwopts.NewRecoveryOptions(), nil)
}

// RecoveryWithOptions 捕获处理链中的 panic，记录日志并返回通用 ErrInternal 响应。
// 堆栈只写入日志，不会返回给客户端。
func RecoveryWithOptions(opts mwopts.RecoveryOptions, onPanic PanicHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()

				fields := []any{
					"panic", fmt.Sprint(r),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"request_id", c.GetString(response.RequestIDKey),
				}
				if opts.EnableStackTrace {
					fields = append(fields, "stack_trace", string(stack))
				}
				logger.Errorw("panic recovered", fields...)

				if onPanic != nil {
					onPanic(c, r, stack)
				}

				response.AbortWithError(c, errors.ErrInternal)
			}
		}()
		c.Next()
	}
}
