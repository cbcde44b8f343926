package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/medreport/internal/medreport/biz"
	"github.com/kart-io/medreport/pkg/infra/middleware"
	mwopts "github.com/kart-io/medreport/pkg/options/middleware"
	"github.com/kart-io/medreport/pkg/storage"
	apierrors "github.com/kart-io/medreport/pkg/utils/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	report   *biz.Report
	err      error
	readyErr error
	got      *biz.Request
}

func (f *fakeService) Process(_ context.Context, req *biz.Request) (*biz.Report, error) {
	f.got = req
	return f.report, f.err
}

func (f *fakeService) Ready(context.Context) error { return f.readyErr }

type fakeArchive struct {
	keys []string
	err  error
}

func (a *fakeArchive) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.keys = append(a.keys, key)
	return "archive/" + key, nil
}

func (a *fakeArchive) Name() string { return "fake" }

type envelope struct {
	Code      int             `json:"code"`
	Message   string          `json:"message"`
	Details   string          `json:"details"`
	Data      json.RawMessage `json:"data"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// multipartBody 构造带指定 Content-Type 的 file 字段。
func multipartBody(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return body, mw.FormDataContentType()
}

func newEngine(h *ReportHandler) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestIDWithOptions(*mwopts.NewRequestIDOptions()))
	r.POST("/analyze", h.Analyze)
	r.POST("/upload", h.Upload)
	return r
}

func post(r *gin.Engine, path string, body *bytes.Buffer, contentType string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleReport() *biz.Report {
	return &biz.Report{
		ExtractedText: "GLICOSE: 110 mg/dL résumé",
		Analysis: &biz.AnalysisResult{
			Summary:            "Most values are within range.",
			NormalFindings:     []string{"Hemoglobin 13.5 g/dL"},
			AbnormalFindings:   []biz.AbnormalFinding{},
			RedFlags:           []string{},
			NextSteps:          []string{"Repeat the test."},
			QuestionsForDoctor: []string{},
		},
		Pipeline: biz.PipelineInfo{
			Mode:          biz.ModeFull,
			SampleFound:   true,
			PatternSource: biz.PatternSourceLLM,
			Analysis:      biz.AnalysisSourceLLM,
		},
	}
}

func TestAnalyze_Success(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newEngine(NewReportHandler(svc, nil, 50*mb))

	body, ct := multipartBody(t, "labs.pdf", "application/pdf", []byte("%PDF-1.4 data"))
	w := post(r, "/analyze", body, ct, "X-Request-ID", "req-42")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decode(t, w)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, "req-42", env.RequestID)

	var data AnalyzeResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.True(t, data.Success)
	assert.Equal(t, "PDF processed with two-stage LLM pipeline", data.Message)
	assert.Equal(t, FileInfo{OriginalName: "labs.pdf", Size: 13, Mimetype: "application/pdf"}, data.File)
	assert.Equal(t, svc.report.ExtractedText, data.ExtractedText)
	assert.Equal(t, 25, data.TextLength)
	require.NotNil(t, data.AnalyzedData)
	assert.Equal(t, "Most values are within range.", data.AnalyzedData.Summary)
	assert.Equal(t, "Text extraction completed", data.Pipeline.Stage1)
	assert.Equal(t, "LLM analysis completed", data.Pipeline.Stage5)
	assert.True(t, data.Pipeline.SampleFound)
	assert.Equal(t, biz.ModeFull, data.Pipeline.Mode)

	require.NotNil(t, svc.got)
	assert.Equal(t, []byte("%PDF-1.4 data"), svc.got.Data)
	assert.Equal(t, "req-42", svc.got.RequesterID)
}

func TestAnalyze_PipelineJSONShape(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	r := newEngine(NewReportHandler(svc, nil, 50*mb))

	body, ct := multipartBody(t, "labs.pdf", "application/pdf", []byte("%PDF"))
	w := post(r, "/analyze", body, ct)
	require.Equal(t, http.StatusOK, w.Code)

	var raw struct {
		Data struct {
			Pipeline map[string]any `json:"pipeline"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	for _, key := range []string{"stage1", "stage2", "stage3", "stage4", "stage5", "cacheHit", "mode", "sampleFound", "patternSource", "degraded"} {
		assert.Contains(t, raw.Data.Pipeline, key)
	}
}

func TestAnalyze_Validation(t *testing.T) {
	big := bytes.Repeat([]byte("x"), mb+1)

	tests := []struct {
		name        string
		filename    string
		contentType string
		data        []byte
		want        *apierrors.Errno
		message     string
	}{
		{"wrong type", "notes.txt", "text/plain", []byte("hello"), apierrors.ErrReportInvalidType, "Only PDF files are allowed"},
		{"missing content type", "labs.pdf", "", []byte("%PDF"), apierrors.ErrReportInvalidType, "Only PDF files are allowed"},
		{"type checked before size", "big.txt", "text/plain", big, apierrors.ErrReportInvalidType, "Only PDF files are allowed"},
		{"too large", "big.pdf", "application/pdf", big, apierrors.ErrReportTooLarge, "File size exceeds 1MB limit"},
		{"empty", "empty.pdf", "application/pdf", nil, apierrors.ErrReportEmptyFile, "Empty file buffer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{report: sampleReport()}
			r := newEngine(NewReportHandler(svc, nil, mb))

			body, ct := multipartBody(t, tt.filename, tt.contentType, tt.data)
			w := post(r, "/analyze", body, ct)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			assert.Equal(t, tt.want.Code, env.Code)
			assert.Equal(t, tt.message, env.Message)
			assert.Nil(t, svc.got)
		})
	}
}

func TestAnalyze_NoFile(t *testing.T) {
	svc := &fakeService{}
	r := newEngine(NewReportHandler(svc, nil, mb))

	w := post(r, "/analyze", bytes.NewBufferString(`{}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, apierrors.ErrReportNoFile.Code, env.Code)
	assert.Equal(t, "No PDF file uploaded", env.Message)

	// 字段名不对
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("document", "x"))
	require.NoError(t, mw.Close())
	w = post(r, "/analyze", body, mw.FormDataContentType())
	assert.Equal(t, apierrors.ErrReportNoFile.Code, decode(t, w).Code)
	assert.Nil(t, svc.got)
}

func TestAnalyze_BodyLimitExceeded(t *testing.T) {
	svc := &fakeService{report: sampleReport()}
	h := NewReportHandler(svc, nil, mb)

	r := gin.New()
	r.POST("/analyze", func(c *gin.Context) {
		// 去掉 Content-Length，只靠 MaxBytesReader 截断
		c.Request.ContentLength = -1
		c.Next()
	}, middleware.BodyLimit(mb/2, SizeError(mb)), h.Analyze)

	body, ct := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), mb))
	w := post(r, "/analyze", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apierrors.ErrReportTooLarge.Code, decode(t, w).Code)
	assert.Nil(t, svc.got)
}

func TestAnalyze_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"unreadable", apierrors.ErrReportUnreadable.WithDetails("PDF parsing failed"), http.StatusBadRequest, apierrors.ErrReportUnreadable.Code},
		{"timeout", apierrors.ErrReportTimeout, http.StatusRequestTimeout, apierrors.ErrReportTimeout.Code},
		{"busy", apierrors.ErrReportBusy, http.StatusServiceUnavailable, apierrors.ErrReportBusy.Code},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, apierrors.ErrInternal.Code},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newEngine(NewReportHandler(&fakeService{err: tt.err}, nil, mb))
			body, ct := multipartBody(t, "labs.pdf", "application/pdf", []byte("%PDF"))
			w := post(r, "/analyze", body, ct)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}

	r := newEngine(NewReportHandler(&fakeService{err: apierrors.ErrReportUnreadable.WithDetails("PDF parsing failed")}, nil, mb))
	body, ct := multipartBody(t, "labs.pdf", "application/pdf", []byte("%PDF"))
	env := decode(t, post(r, "/analyze", body, ct))
	assert.Equal(t, "PDF parsing failed", env.Details)
	assert.True(t, strings.HasPrefix(env.Message, "Unable to read this PDF"))
}

func TestUpload(t *testing.T) {
	archive := &fakeArchive{}
	r := newEngine(NewReportHandler(&fakeService{}, archive, mb))

	data := []byte("%PDF-1.7 upload")
	body, ct := multipartBody(t, "labs.pdf", "application/pdf", data)
	w := post(r, "/upload", body, ct)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "PDF uploaded successfully", resp.Message)
	assert.Equal(t, "labs.pdf", resp.File.OriginalName)
	assert.Equal(t, int64(len(data)), resp.File.Size)
	assert.Equal(t, "archive/"+storage.Key(data), resp.Archive)
	assert.Equal(t, []string{storage.Key(data)}, archive.keys)
}

func TestUpload_ArchiveFailureIsIgnored(t *testing.T) {
	r := newEngine(NewReportHandler(&fakeService{}, &fakeArchive{err: errors.New("disk full")}, mb))

	body, ct := multipartBody(t, "labs.pdf", "application/pdf", []byte("%PDF"))
	w := post(r, "/upload", body, ct)

	require.Equal(t, http.StatusOK, w.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Archive)
}

func TestUpload_TenMegabyteLimit(t *testing.T) {
	// analyze 上限更大时 upload 仍然限制为 10MB
	r := newEngine(NewReportHandler(&fakeService{}, nil, 50*mb))

	body, ct := multipartBody(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), UploadMaxSize+1))
	w := post(r, "/upload", body, ct)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w)
	assert.Equal(t, apierrors.ErrReportTooLarge.Code, env.Code)
	assert.Equal(t, "File size exceeds 10MB limit", env.Message)
}

func TestStages(t *testing.T) {
	tests := []struct {
		name   string
		info   biz.PipelineInfo
		stage2 string
		stage3 string
		stage4 string
		stage5 string
	}{
		{
			name:   "full run",
			info:   biz.PipelineInfo{Mode: biz.ModeFull, SampleFound: true, PatternSource: biz.PatternSourceLLM, Analysis: biz.AnalysisSourceLLM},
			stage2: "Sample block identification completed",
			stage3: "Pattern generation completed",
			stage4: "Pattern application completed",
			stage5: "LLM analysis completed",
		},
		{
			name:   "cache hit",
			info:   biz.PipelineInfo{Mode: biz.ModeFull, CacheHit: true, Analysis: biz.AnalysisSourceCache},
			stage2: "Skipped (cached result)",
			stage3: "Skipped (cached result)",
			stage4: "Skipped (cached result)",
			stage5: "Cached analysis returned",
		},
		{
			name:   "simple mode",
			info:   biz.PipelineInfo{Mode: biz.ModeSimple, PatternSource: biz.PatternSourceKeyword, Analysis: biz.AnalysisSourceLLM},
			stage2: "Skipped (simple mode)",
			stage3: "Skipped (simple mode)",
			stage4: "Keyword filter applied",
			stage5: "LLM analysis completed",
		},
		{
			name:   "no sample, analysis failed",
			info:   biz.PipelineInfo{Mode: biz.ModeFull, PatternSource: biz.PatternSourceKeyword, Analysis: biz.AnalysisSourceFallback, Degraded: true},
			stage2: "No sample block found",
			stage3: "Skipped (no sample block)",
			stage4: "Keyword filter applied",
			stage5: "LLM analysis unavailable, safe default returned",
		},
		{
			name:   "fallback pattern, blocked",
			info:   biz.PipelineInfo{Mode: biz.ModeFull, SampleFound: true, PatternSource: biz.PatternSourceFallback, Analysis: biz.AnalysisSourceBlocked, Degraded: true},
			stage2: "Sample block identification completed",
			stage3: "Fallback pattern used",
			stage4: "Pattern application completed",
			stage5: "Content flagged by safety check, safe default returned",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := stages(tt.info)
			assert.Equal(t, "Text extraction completed", s.Stage1)
			assert.Equal(t, tt.stage2, s.Stage2)
			assert.Equal(t, tt.stage3, s.Stage3)
			assert.Equal(t, tt.stage4, s.Stage4)
			assert.Equal(t, tt.stage5, s.Stage5)
			assert.Equal(t, tt.info, s.PipelineInfo)
		})
	}
}
