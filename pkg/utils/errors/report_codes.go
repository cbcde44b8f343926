package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 报告服务代码: 21
// 错误码格式: AABBCCC
// - AA: 21 (报告解析服务)
// - BB: 类别代码
// - CCC: 序号

var (
	// 上传校验错误 (类别 01)
	ErrReportNoFile      = Register(New(MakeCode(ServiceReport, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "No PDF file uploaded", "未上传 PDF 文件"))
	ErrReportInvalidType = Register(New(MakeCode(ServiceReport, CategoryRequest, 2), http.StatusBadRequest, codes.InvalidArgument, "Only PDF files are allowed", "仅允许 PDF 文件"))
	ErrReportTooLarge    = Register(New(MakeCode(ServiceReport, CategoryRequest, 3), http.StatusBadRequest, codes.InvalidArgument, "File size exceeds limit", "文件大小超出限制"))
	ErrReportEmptyFile   = Register(New(MakeCode(ServiceReport, CategoryRequest, 4), http.StatusBadRequest, codes.InvalidArgument, "Empty file buffer", "文件内容为空"))
	ErrReportUnreadable  = Register(New(MakeCode(ServiceReport, CategoryRequest, 5), http.StatusBadRequest, codes.InvalidArgument,
		"Unable to read this PDF. Please try a different file or ensure it's not password-protected.", "无法读取该 PDF，请更换文件或确认文件未加密"))

	// 处理错误
	ErrReportTimeout  = Register(New(MakeCode(ServiceReport, CategoryTimeout, 1), http.StatusRequestTimeout, codes.DeadlineExceeded, "Report processing timeout", "报告处理超时"))
	ErrReportPipeline = Register(New(MakeCode(ServiceReport, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Failed to process PDF with two-stage pipeline", "报告处理失败"))
	ErrReportBusy     = Register(New(MakeCode(ServiceReport, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.ResourceExhausted, "Report service is busy, please retry later", "服务繁忙，请稍后重试"))
)
