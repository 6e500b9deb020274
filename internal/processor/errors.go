package processor

import (
	"errors"
	"fmt"
)

// ErrorKind 分析失败的类别
type ErrorKind string

const (
	// KindValidation 输入不合法，请求在流水线开始前被拒绝
	KindValidation ErrorKind = "validation"
	// KindUnsupportedFormat 文档格式不在白名单内
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	// KindExtraction 格式合法但文档无法读取或没有文本
	KindExtraction ErrorKind = "extraction"
	// KindInternal 引擎内部的意外失败
	KindInternal ErrorKind = "internal"
	// KindEnhancementUnavailable LLM语义评审失败或超时，只在内部使用，不会返回给调用方
	KindEnhancementUnavailable ErrorKind = "enhancement_unavailable"
)

// 定义基础错误类型
var (
	ErrValidation             = errors.New("输入校验失败")
	ErrDocumentTooLarge       = errors.New("文档超过大小上限")
	ErrUnsupportedFormat      = errors.New("不支持的文档格式")
	ErrExtractionFailed       = errors.New("提取文档文本失败")
	ErrEngineInternal         = errors.New("分析引擎内部错误")
	ErrEnhancementUnavailable = errors.New("语义增强不可用")
)

// AnalysisError 包含详细错误信息的自定义错误
type AnalysisError struct {
	Kind    ErrorKind
	Op      string
	BaseErr error
	Detail  string // 可以展示给调用方的简短说明
	Cause   error  // 底层错误，只用于日志
}

func (e *AnalysisError) Error() string {
	msg := fmt.Sprintf("%s (操作:%s)", e.BaseErr, e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" [%v]", e.Cause)
	}
	return msg
}

func (e *AnalysisError) Unwrap() error {
	return e.BaseErr
}

// Is 实现 errors.Is 接口，同时匹配基础错误和底层错误
func (e *AnalysisError) Is(target error) bool {
	if errors.Is(e.BaseErr, target) {
		return true
	}
	return e.Cause != nil && errors.Is(e.Cause, target)
}

// PublicMessage 返回不含内部诊断信息的说明
func (e *AnalysisError) PublicMessage() string {
	switch e.Kind {
	case KindInternal:
		return "analysis failed due to an internal error, please try again later"
	case KindEnhancementUnavailable:
		return "semantic enhancement is unavailable"
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.BaseErr.Error()
}

// KindOf 返回错误所属类别，非 AnalysisError 一律视为内部错误
func KindOf(err error) ErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// PublicMessage 返回可以展示给调用方的错误说明
func PublicMessage(err error) string {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.PublicMessage()
	}
	return "analysis failed due to an internal error, please try again later"
}

// 错误构造函数
func NewValidationError(op, detail string) error {
	return &AnalysisError{
		Kind:    KindValidation,
		Op:      op,
		BaseErr: ErrValidation,
		Detail:  detail,
	}
}

func NewDocumentTooLargeError(size, limit int64) error {
	return &AnalysisError{
		Kind:    KindValidation,
		Op:      "validate",
		BaseErr: ErrDocumentTooLarge,
		Detail:  fmt.Sprintf("document is %d bytes, the limit is %d bytes", size, limit),
	}
}

func NewUnsupportedFormatError(format string) error {
	return &AnalysisError{
		Kind:    KindUnsupportedFormat,
		Op:      "extract",
		BaseErr: ErrUnsupportedFormat,
		Detail:  fmt.Sprintf("format %q is not supported, use pdf, doc, docx or txt", format),
	}
}

func NewExtractionError(detail string, cause error) error {
	return &AnalysisError{
		Kind:    KindExtraction,
		Op:      "extract",
		BaseErr: ErrExtractionFailed,
		Detail:  detail,
		Cause:   cause,
	}
}

func NewInternalError(op string, cause error) error {
	return &AnalysisError{
		Kind:    KindInternal,
		Op:      op,
		BaseErr: ErrEngineInternal,
		Cause:   cause,
	}
}

func NewEnhancementUnavailableError(cause error) error {
	return &AnalysisError{
		Kind:    KindEnhancementUnavailable,
		Op:      "enhance",
		BaseErr: ErrEnhancementUnavailable,
		Cause:   cause,
	}
}
