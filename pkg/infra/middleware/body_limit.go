package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/medreport/pkg/utils/errors"
	"github.com/kart-io/medreport/pkg/utils/response"
)

// BodyLimit 返回一个请求体大小限制中间件。
// Content-Length 超过 maxSize 时立即以 tooLarge 响应（nil 时为 ErrTooLarge）；
// 否则用 http.MaxBytesReader 限制实际读取的字节数，读取越界由处理函数识别。
func BodyLimit(maxSize int64, tooLarge *errors.Errno) gin.HandlerFunc {
	if tooLarge == nil {
		tooLarge = errors.ErrTooLarge
	}

	return func(c *gin.Context) {
		req := c.Request
		if req.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", req.URL.Path,
				"content_length", req.ContentLength,
				"max_size", maxSize,
			)
			response.AbortWithError(c, tooLarge)
			return
		}

		req.Body = http.MaxBytesReader(c.Writer, req.Body, maxSize)
		c.Next()
	}
}
