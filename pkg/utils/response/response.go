// Package response provides the unified API response envelope.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/medreport/pkg/utils/errors"
)

// RequestIDKey is the gin context key holding the request ID.
const RequestIDKey = "request_id"

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// HTTPCode is the HTTP status code
	HTTPCode int `json:"http_code,omitempty"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Details carries optional extra error text
	Details string `json:"details,omitempty"`

	// Data contains the response payload (nil for errors)
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:     0,
		HTTPCode: http.StatusOK,
		Message:  "success",
		Data:     data,
	}
}

// Err creates an error response from an Errno.
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:     e.Code,
		HTTPCode: e.HTTPStatus(),
		Message:  e.MessageEN,
		Details:  e.Details,
	}
}

// HTTPStatus returns the HTTP status code for this response.
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// OK writes data wrapped in a success envelope.
func OK(c *gin.Context, data any) {
	write(c, Success(data))
}

// Fail writes err as an error envelope. Non-Errno errors become ErrInternal.
func Fail(c *gin.Context, err error) {
	write(c, Err(errors.FromError(err)))
}

// AbortWithError writes err and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}

func write(c *gin.Context, r *Response) {
	r.RequestID = c.GetString(RequestIDKey)
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPStatus(), r)
}
