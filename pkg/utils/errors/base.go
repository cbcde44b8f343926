package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 通用错误 (服务代码 00)
var (
	OK = &Errno{Code: 0, HTTP: http.StatusOK, GRPCCode: codes.OK, MessageEN: "success", MessageZH: "成功"}

	ErrBadRequest   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrTooLarge     = Register(New(MakeCode(ServiceCommon, CategoryRequest, 3), http.StatusRequestEntityTooLarge, codes.InvalidArgument, "Request body too large", "请求体过大"))
	ErrNotFound     = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Resource not found", "资源不存在"))
	ErrInternal     = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic        = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), http.StatusInternalServerError, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrUnavailable  = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrTimeout      = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Request timeout", "请求超时"))
	ErrInvalidConf  = Register(New(MakeCode(ServiceCommon, CategoryConfig, 1), http.StatusInternalServerError, codes.FailedPrecondition, "Invalid configuration", "配置无效"))
)

// 基础设施错误
var (
	ErrCacheUnavailable = Register(New(MakeCode(ServiceInfraCache, CategoryCache, 1), http.StatusInternalServerError, codes.Unavailable, "Cache unavailable", "缓存不可用"))
	ErrArchiveFailed    = Register(New(MakeCode(ServiceThirdPartyStorage, CategoryNetwork, 1), http.StatusInternalServerError, codes.Unavailable, "Archive write failed", "归档写入失败"))
)
