package storage

import (
	"time"

	"resume-scorer/internal/types"
)

// AnalysisRequestMessage 队列传输的分析请求
// Document 与 ResumeText 二选一，Document 非空时按 Format 提取文本
type AnalysisRequestMessage struct {
	RequestID      string    `json:"request_id"`
	Filename       string    `json:"filename,omitempty"`
	Format         string    `json:"format,omitempty"`
	Document       []byte    `json:"document,omitempty"` // JSON中为base64
	ResumeText     string    `json:"resume_text,omitempty"`
	JobDescription string    `json:"job_description"`
	UseLLM         bool      `json:"use_llm,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// AnalysisReplyMessage 分析结果回复，Result 与 Error 二选一
type AnalysisReplyMessage struct {
	RequestID   string                `json:"request_id"`
	Result      *types.AnalysisResult `json:"result,omitempty"`
	ErrorKind   string                `json:"error_kind,omitempty"`
	Error       string                `json:"error,omitempty"`
	CompletedAt time.Time             `json:"completed_at"`
}

// Failed 是否为失败回复
func (m *AnalysisReplyMessage) Failed() bool {
	return m.ErrorKind != "" || m.Error != ""
}
