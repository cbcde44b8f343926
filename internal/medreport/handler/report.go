// Package handler provides HTTP handlers for the report service.
package handler

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/kart-io/medreport/internal/medreport/biz"
	infralog "github.com/kart-io/medreport/pkg/infra/logger"
	"github.com/kart-io/medreport/pkg/infra/middleware"
	"github.com/kart-io/medreport/pkg/storage"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
	"github.com/kart-io/medreport/pkg/utils/response"
)

const (
	mb = 1 << 20

	// UploadMaxSize upload 接口的文件大小上限。
	UploadMaxSize = 10 * mb

	analyzeMessage = "PDF processed with two-stage LLM pipeline"
	uploadMessage  = "PDF uploaded successfully"
)

// ReportHandler handles report upload and analysis requests.
type ReportHandler struct {
	service       biz.Service
	archive       storage.Archive
	maxUploadSize int64
}

// NewReportHandler creates a new ReportHandler. A nil archive discards uploads.
func NewReportHandler(service biz.Service, archive storage.Archive, maxUploadSize int64) *ReportHandler {
	if archive == nil {
		archive = storage.Noop{}
	}
	return &ReportHandler{
		service:       service,
		archive:       archive,
		maxUploadSize: maxUploadSize,
	}
}

// MaxUploadSize returns the size limit of the analyze endpoint.
func (h *ReportHandler) MaxUploadSize() int64 {
	return h.maxUploadSize
}

// UploadForm is the multipart form of both upload endpoints.
type UploadForm struct {
	File *multipart.FileHeader `form:"file" binding:"required"`
}

// FileInfo describes the uploaded file.
type FileInfo struct {
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Mimetype     string `json:"mimetype"`
}

// PipelineStages is the pipeline section of an analyze response.
type PipelineStages struct {
	Stage1 string `json:"stage1"`
	Stage2 string `json:"stage2"`
	Stage3 string `json:"stage3"`
	Stage4 string `json:"stage4"`
	Stage5 string `json:"stage5"`
	biz.PipelineInfo
}

// AnalyzeResponse is the data of a successful analyze request.
type AnalyzeResponse struct {
	Success       bool                `json:"success"`
	Message       string              `json:"message"`
	File          FileInfo            `json:"file"`
	ExtractedText string              `json:"extractedText"`
	TextLength    int                 `json:"textLength"`
	AnalyzedData  *biz.AnalysisResult `json:"analyzedData"`
	Pipeline      PipelineStages      `json:"pipeline"`
}

// UploadResponse is the data of a successful upload request.
type UploadResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	File    FileInfo `json:"file"`
	Archive string   `json:"archive,omitempty"`
}

// Analyze extracts, reduces and interprets an uploaded PDF report.
func (h *ReportHandler) Analyze(c *gin.Context) {
	info, data, err := readPDF(c, h.maxUploadSize)
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx := c.Request.Context()
	report, err := h.service.Process(ctx, &biz.Request{
		Data:        data,
		RequesterID: middleware.GetRequestID(ctx),
	})
	if err != nil {
		infralog.FromContext(ctx).Warnw("report processing failed",
			"error", err.Error(),
			"size", info.Size,
		)
		response.Fail(c, err)
		return
	}

	response.OK(c, AnalyzeResponse{
		Success:       true,
		Message:       analyzeMessage,
		File:          info,
		ExtractedText: report.ExtractedText,
		TextLength:    utf8.RuneCountInString(report.ExtractedText),
		AnalyzedData:  report.Analysis,
		Pipeline:      stages(report.Pipeline),
	})
}

// Upload validates an uploaded PDF and archives it when an archive is configured.
func (h *ReportHandler) Upload(c *gin.Context) {
	info, data, err := readPDF(c, UploadMaxSize)
	if err != nil {
		response.Fail(c, err)
		return
	}

	resp := UploadResponse{Success: true, Message: uploadMessage, File: info}

	// 归档失败不影响响应
	location, err := h.archive.Put(c.Request.Context(), storage.Key(data), data, info.Mimetype)
	if err != nil {
		infralog.FromContext(c.Request.Context()).Warnw("failed to archive upload",
			"error", err.Error(),
			"stage", "archive",
			"archive", h.archive.Name(),
			"size", info.Size,
		)
	} else {
		resp.Archive = location
	}

	response.OK(c, resp)
}

// readPDF 按顺序校验：缺少文件、类型、大小、空内容。
func readPDF(c *gin.Context, maxSize int64) (FileInfo, []byte, error) {
	var form UploadForm
	if err := c.ShouldBindWith(&form, binding.FormMultipart); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return FileInfo{}, nil, SizeError(maxSize)
		}
		return FileInfo{}, nil, apierrors.ErrReportNoFile
	}

	fh := form.File
	info := FileInfo{
		OriginalName: fh.Filename,
		Size:         fh.Size,
		Mimetype:     fh.Header.Get("Content-Type"),
	}

	if !strings.Contains(strings.ToLower(info.Mimetype), "pdf") {
		return info, nil, apierrors.ErrReportInvalidType
	}
	if fh.Size > maxSize {
		return info, nil, SizeError(maxSize)
	}

	f, err := fh.Open()
	if err != nil {
		return info, nil, apierrors.ErrReportEmptyFile.WithCause(err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return info, nil, apierrors.ErrReportEmptyFile.WithCause(err)
	}
	if len(data) == 0 {
		return info, nil, apierrors.ErrReportEmptyFile
	}
	return info, data, nil
}

// SizeError returns the too-large error for a limit of maxSize bytes.
func SizeError(maxSize int64) *apierrors.Errno {
	return apierrors.ErrReportTooLarge.WithMessagef("File size exceeds %dMB limit", maxSize/mb)
}

// stages 描述每个阶段的实际执行情况。
func stages(info biz.PipelineInfo) PipelineStages {
	s := PipelineStages{
		Stage1:       "Text extraction completed",
		Stage2:       "Sample block identification completed",
		Stage3:       "Pattern generation completed",
		Stage4:       "Pattern application completed",
		Stage5:       "LLM analysis completed",
		PipelineInfo: info,
	}

	switch {
	case info.CacheHit:
		s.Stage2 = "Skipped (cached result)"
		s.Stage3 = s.Stage2
		s.Stage4 = s.Stage2
		s.Stage5 = "Cached analysis returned"
		return s
	case info.Mode == biz.ModeSimple:
		s.Stage2 = "Skipped (simple mode)"
		s.Stage3 = s.Stage2
		s.Stage4 = "Keyword filter applied"
	case !info.SampleFound:
		s.Stage2 = "No sample block found"
		s.Stage3 = "Skipped (no sample block)"
		s.Stage4 = "Keyword filter applied"
	case info.PatternSource == biz.PatternSourceCache:
		s.Stage3 = "Cached pattern reused"
	case info.PatternSource == biz.PatternSourceFallback:
		s.Stage3 = "Fallback pattern used"
	}

	switch info.Analysis {
	case biz.AnalysisSourceFallback:
		s.Stage5 = "LLM analysis unavailable, safe default returned"
	case biz.AnalysisSourceBlocked:
		s.Stage5 = "Content flagged by safety check, safe default returned"
	}
	return s
}
