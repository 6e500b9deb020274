package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"testing"

	"resume-scorer/internal/api/handler"
	"resume-scorer/internal/config"
	"resume-scorer/internal/parser"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/types"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testResume = "5 years experience with Python, Go, and Kubernetes, Bachelor's in Computer Science"
	testJD     = "Looking for a backend engineer with 3+ years Python and Kubernetes experience, Bachelor's degree required."
)

func newTestServer(t *testing.T, cfg *config.Config, analyzer processor.Analyzer) *server.Hertz {
	t.Helper()
	if cfg == nil {
		cfg = config.Default()
	}
	if analyzer == nil {
		engine, err := processor.NewEngine(&processor.Components{Extractor: parser.NewDocumentExtractor()}, processor.SettingsFromConfig(cfg))
		require.NoError(t, err)
		analyzer = engine
	}
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	ah := handler.NewAnalysisHandler(cfg, analyzer)
	api := h.Group("/api/v1")
	api.GET("/health", ah.HandleHealth)
	api.POST("/analyze", ah.HandleAnalyze)
	api.POST("/analyze-text", ah.HandleAnalyzeText)
	return h
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		part, err := w.CreateFormFile("resume", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postMultipart(h *server.Hertz, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, "POST", "/api/v1/analyze",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
}

func decodeError(t *testing.T, w *ut.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	cfg := config.Default()
	cfg.Enhancer.Enabled = true
	cfg.Enhancer.Provider = "ollama"
	cfg.Enhancer.Model = "llama3"
	h := newTestServer(t, cfg, nil)

	w := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp handler.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Enhancer.Enabled)
	assert.Equal(t, "ollama", resp.Enhancer.Provider)
	assert.Equal(t, "llama3", resp.Enhancer.Model)
}

func TestAnalyzeUploadSuccess(t *testing.T) {
	h := newTestServer(t, nil, nil)
	body, ct := multipartBody(t, "resume.txt", []byte(testResume), map[string]string{"jobDescription": testJD})

	w := postMultipart(h, body, ct)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, []string{"Python", "Kubernetes"}, result.MatchedSkills)
	assert.Equal(t, types.MethodBaseline, result.AnalysisMethod)
	assert.NotEmpty(t, result.AnalysisID)
	assert.Contains(t, w.Body.String(), `"overallMatch"`)
}

func TestAnalyzeUploadErrors(t *testing.T) {
	h := newTestServer(t, nil, nil)

	t.Run("missing file", func(t *testing.T) {
		body, ct := multipartBody(t, "", nil, map[string]string{"jobDescription": testJD})
		w := postMultipart(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "validation", decodeError(t, w).Error)
	})

	t.Run("extension not allowed", func(t *testing.T) {
		body, ct := multipartBody(t, "resume.rtf", []byte(testResume), map[string]string{"jobDescription": testJD})
		w := postMultipart(h, body, ct)
		assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		assert.Equal(t, "unsupported_format", decodeError(t, w).Error)
	})

	t.Run("job description too short", func(t *testing.T) {
		body, ct := multipartBody(t, "resume.txt", []byte(testResume), map[string]string{"jobDescription": "Go dev"})
		w := postMultipart(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad useLLM flag", func(t *testing.T) {
		body, ct := multipartBody(t, "resume.txt", []byte(testResume), map[string]string{"jobDescription": testJD, "useLLM": "maybe"})
		w := postMultipart(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("no extractable text", func(t *testing.T) {
		body, ct := multipartBody(t, "resume.txt", []byte("   \n\t  "), map[string]string{"jobDescription": testJD})
		w := postMultipart(h, body, ct)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "extraction", decodeError(t, w).Error)
	})
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxDocumentMB = 1
	h := newTestServer(t, cfg, nil)

	big := bytes.Repeat([]byte("python "), (1<<20)/7+10)
	body, ct := multipartBody(t, "resume.txt", big, map[string]string{"jobDescription": testJD})
	w := postMultipart(h, body, ct)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAnalyzeText(t *testing.T) {
	h := newTestServer(t, nil, nil)

	payload, err := json.Marshal(handler.AnalyzeTextRequest{ResumeText: testResume, JobDescription: testJD})
	require.NoError(t, err)
	w := ut.PerformRequest(h.Engine, "POST", "/api/v1/analyze-text",
		&ut.Body{Body: bytes.NewReader(payload), Len: len(payload)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result types.AnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 100.0, result.Skills)

	bad := []byte("{resumeText:")
	w = ut.PerformRequest(h.Engine, "POST", "/api/v1/analyze-text",
		&ut.Body{Body: bytes.NewReader(bad), Len: len(bad)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type failingAnalyzer struct{ err error }

func (f failingAnalyzer) Submit(ctx context.Context, doc *types.SourceDocument, jd string, opts types.AnalysisOptions) (*types.AnalysisResult, error) {
	return nil, f.err
}

func (f failingAnalyzer) AnalyzeText(ctx context.Context, resumeText, jd string, opts types.AnalysisOptions) (*types.AnalysisResult, error) {
	return nil, f.err
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	h := newTestServer(t, nil, failingAnalyzer{err: processor.NewInternalError("analyze", errors.New("dial tcp 10.0.0.3:6379: refused"))})

	payload := []byte(`{"resumeText":"x","jobDescription":"y"}`)
	w := ut.PerformRequest(h.Engine, "POST", "/api/v1/analyze-text",
		&ut.Body{Body: bytes.NewReader(payload), Len: len(payload)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.Equal(t, "internal", decodeError(t, w).Error)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{processor.NewValidationError("validate", "x"), http.StatusBadRequest},
		{processor.NewDocumentTooLargeError(2, 1), http.StatusRequestEntityTooLarge},
		{processor.NewUnsupportedFormatError("rtf"), http.StatusUnsupportedMediaType},
		{processor.NewExtractionError("x", nil), http.StatusUnprocessableEntity},
		{processor.NewInternalError("x", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, handler.StatusForError(tc.err), tc.err.Error())
	}
}
