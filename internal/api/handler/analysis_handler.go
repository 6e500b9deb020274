package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/tracing"
	"resume-scorer/internal/types"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"go.opentelemetry.io/otel/trace"
)

const defaultRequestTimeout = 90 * time.Second

// AnalyzeTextRequest POST /api/v1/analyze-text 的请求体
type AnalyzeTextRequest struct {
	ResumeText     string `json:"resumeText"`
	JobDescription string `json:"jobDescription"`
	UseLLM         bool   `json:"useLLM"`
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error   string `json:"error"`   // 错误类别
	Message string `json:"message"` // 面向调用方的说明
}

// EnhancerStatus 健康检查中的语义增强状态
type EnhancerStatus struct {
	Enabled  bool   `json:"enabled"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// HealthResponse GET /api/v1/health 的响应体
type HealthResponse struct {
	Status   string         `json:"status"`
	Enhancer EnhancerStatus `json:"enhancer"`
}

// AnalysisHandler 处理简历与JD的比对请求
type AnalysisHandler struct {
	analyzer       processor.Analyzer
	enhancer       EnhancerStatus
	allowed        map[types.DocumentFormat]struct{}
	maxBytes       int64
	requestTimeout time.Duration
	logger         *log.Logger
}

// HandlerOption 配置 AnalysisHandler
type HandlerOption func(*AnalysisHandler)

// WithHandlerLogger 设置日志记录器
func WithHandlerLogger(l *log.Logger) HandlerOption {
	return func(h *AnalysisHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithEnhancerStatus 设置健康检查返回的增强状态
func WithEnhancerStatus(s EnhancerStatus) HandlerOption {
	return func(h *AnalysisHandler) {
		h.enhancer = s
	}
}

// NewAnalysisHandler 创建 AnalysisHandler
func NewAnalysisHandler(cfg *config.Config, analyzer processor.Analyzer, opts ...HandlerOption) *AnalysisHandler {
	h := &AnalysisHandler{
		analyzer:       analyzer,
		allowed:        allowedFormats(cfg.Limits.AllowedExtensions),
		maxBytes:       cfg.MaxDocumentBytes(),
		requestTimeout: config.GetDuration(cfg.Server.RequestTimeout, defaultRequestTimeout),
		logger:         log.New(io.Discard, "", 0),
		enhancer: EnhancerStatus{
			Enabled:  cfg.Enhancer.Enabled,
			Provider: cfg.Enhancer.Provider,
			Model:    cfg.Enhancer.Model,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func allowedFormats(exts []string) map[types.DocumentFormat]struct{} {
	set := make(map[types.DocumentFormat]struct{})
	for _, ext := range exts {
		if f := types.ParseDocumentFormat(ext); f.Valid() {
			set[f] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, f := range types.SupportedFormats {
			set[f] = struct{}{}
		}
	}
	return set
}

// HandleHealth GET /api/v1/health
func (h *AnalysisHandler) HandleHealth(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusOK, HealthResponse{Status: "healthy", Enhancer: h.enhancer})
}

// HandleAnalyze POST /api/v1/analyze
// multipart 字段：resume（文件）、jobDescription、useLLM
func (h *AnalysisHandler) HandleAnalyze(ctx context.Context, c *app.RequestContext) {
	fileHeader, err := c.FormFile("resume")
	if err != nil {
		h.writeError(ctx, c, processor.NewValidationError("decode", "a resume file is required in the 'resume' field"))
		return
	}

	format := types.FormatFromFilename(fileHeader.Filename)
	if _, ok := h.allowed[format]; !ok {
		h.writeError(ctx, c, processor.NewUnsupportedFormatError(string(format)))
		return
	}
	if fileHeader.Size > h.maxBytes {
		h.writeError(ctx, c, processor.NewDocumentTooLargeError(fileHeader.Size, h.maxBytes))
		return
	}

	useLLM, err := parseBoolField(string(c.FormValue("useLLM")))
	if err != nil {
		h.writeError(ctx, c, processor.NewValidationError("decode", "useLLM must be true or false"))
		return
	}
	jd := string(c.FormValue("jobDescription"))

	file, err := fileHeader.Open()
	if err != nil {
		h.writeError(ctx, c, processor.NewInternalError("decode", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxBytes+1))
	if err != nil {
		h.writeError(ctx, c, processor.NewInternalError("decode", err))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.analyzer.Submit(reqCtx, &types.SourceDocument{
		Filename: fileHeader.Filename,
		Format:   format,
		Data:     data,
	}, jd, types.AnalysisOptions{UseEnhancement: useLLM})
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	h.logger.Printf("文档分析完成 file=%s size=%d method=%s overall=%.1f elapsed=%s",
		fileHeader.Filename, len(data), result.AnalysisMethod, result.Overall, time.Since(start))
	c.JSON(consts.StatusOK, result)
}

// HandleAnalyzeText POST /api/v1/analyze-text
func (h *AnalysisHandler) HandleAnalyzeText(ctx context.Context, c *app.RequestContext) {
	var req AnalyzeTextRequest
	if err := json.Unmarshal(c.Request.Body(), &req); err != nil {
		h.writeError(ctx, c, processor.NewValidationError("decode", "request body must be JSON with resumeText and jobDescription"))
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, h.requestTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.analyzer.AnalyzeText(reqCtx, req.ResumeText, req.JobDescription, types.AnalysisOptions{UseEnhancement: req.UseLLM})
	if err != nil {
		h.writeError(ctx, c, err)
		return
	}
	h.logger.Printf("文本分析完成 method=%s overall=%.1f elapsed=%s", result.AnalysisMethod, result.Overall, time.Since(start))
	c.JSON(consts.StatusOK, result)
}

func (h *AnalysisHandler) writeError(ctx context.Context, c *app.RequestContext, err error) {
	status := StatusForError(err)
	tracing.RecordHTTPError(trace.SpanFromContext(ctx), err, status)
	if status >= consts.StatusInternalServerError {
		h.logger.Printf("分析失败: %v", err)
	}
	c.JSON(status, ErrorResponse{
		Error:   string(processor.KindOf(err)),
		Message: processor.PublicMessage(err),
	})
}

// StatusForError 将分析错误映射为HTTP状态码
func StatusForError(err error) int {
	if errors.Is(err, processor.ErrDocumentTooLarge) {
		return consts.StatusRequestEntityTooLarge
	}
	switch processor.KindOf(err) {
	case processor.KindValidation:
		return consts.StatusBadRequest
	case processor.KindUnsupportedFormat:
		return consts.StatusUnsupportedMediaType
	case processor.KindExtraction:
		return consts.StatusUnprocessableEntity
	default:
		return consts.StatusInternalServerError
	}
}

func parseBoolField(v string) (bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("无效的布尔值 %q: %w", v, err)
	}
	return b, nil
}

// 用于路由中的未知路径
func notFound(ctx context.Context, c *app.RequestContext) {
	c.JSON(consts.StatusNotFound, utils.H{"error": "not_found", "message": "no such endpoint"})
}

// NotFoundHandler 返回统一格式的404处理函数
func NotFoundHandler() app.HandlerFunc {
	return notFound
}
