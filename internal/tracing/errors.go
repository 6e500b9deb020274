package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrorType 写入 span 的 error.type 属性，和分析错误的 Kind 保持一致，另加几类基础设施错误
type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "validation"
	ErrorTypeUnsupportedFormat ErrorType = "unsupported_format"
	ErrorTypeExtraction        ErrorType = "extraction"
	ErrorTypeEnhancement       ErrorType = "enhancement_unavailable"
	ErrorTypeInternal          ErrorType = "internal"

	ErrorTypeHTTP     ErrorType = "http"
	ErrorTypeDB       ErrorType = "db"
	ErrorTypeRedis    ErrorType = "redis"
	ErrorTypeRabbitMQ ErrorType = "rabbitmq"
)

// QueueFailure 队列消息处理失败的类别
type QueueFailure string

const (
	// QueueFailureNack 消费端拒绝了消息
	QueueFailureNack QueueFailure = "nack"
	// QueueFailureReplyTimeout 请求方在回复到达前超时或被取消
	QueueFailureReplyTimeout QueueFailure = "reply_timeout"
)

func markError(span trace.Span, errorType ErrorType, message string, attrs ...attribute.KeyValue) {
	span.SetAttributes(
		attribute.String("error.type", string(errorType)),
		attribute.String("error.message", message),
	)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	span.SetStatus(codes.Error, message)
}

// RecordError 记录错误并标记 span 失败
func RecordError(span trace.Span, err error, errorType ErrorType) {
	RecordErrorWithInfo(span, err, errorType)
}

// RecordErrorWithInfo 同 RecordError，附带额外属性
func RecordErrorWithInfo(span trace.Span, err error, errorType ErrorType, attrs ...attribute.KeyValue) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	markError(span, errorType, err.Error(), attrs...)
}

// RecordHTTPError 记录返回给客户端的错误响应，4xx 记为 client_error，5xx 记为 server_error
func RecordHTTPError(span trace.Span, err error, statusCode int) {
	if span == nil || err == nil {
		return
	}
	category := "server_error"
	if statusCode < 500 {
		category = "client_error"
	}
	span.RecordError(err)
	markError(span, ErrorTypeHTTP, err.Error(),
		attribute.Int("http.status_code", statusCode),
		attribute.String("error.category", category),
	)
}

// RecordQueueFailure 记录一次没有成功完成的队列请求
func RecordQueueFailure(span trace.Span, failure QueueFailure, messageID, reason string) {
	if span == nil {
		return
	}
	if reason == "" {
		reason = string(failure)
	}
	markError(span, ErrorTypeRabbitMQ, reason,
		attribute.String("messaging.message_id", messageID),
		attribute.String("messaging.failure", string(failure)),
	)
}
