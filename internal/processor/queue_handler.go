package processor

import (
	"context"
	"encoding/json"
	"time"

	"resume-scorer/internal/storage"
	"resume-scorer/internal/types"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Replier 向请求方发布回复
type Replier interface {
	Reply(ctx context.Context, d amqp.Delivery, reply *storage.AnalysisReplyMessage) error
}

// HandleQueueRequest 执行一条队列请求并生成回复，分析失败也返回回复而不是错误
func HandleQueueRequest(ctx context.Context, a Analyzer, req *storage.AnalysisRequestMessage) *storage.AnalysisReplyMessage {
	reply := &storage.AnalysisReplyMessage{RequestID: req.RequestID}
	opts := types.AnalysisOptions{UseEnhancement: req.UseLLM}

	var (
		result *types.AnalysisResult
		err    error
	)
	if len(req.Document) > 0 {
		format := types.ParseDocumentFormat(req.Format)
		if format == "" {
			format = types.FormatFromFilename(req.Filename)
		}
		result, err = a.Submit(ctx, &types.SourceDocument{
			Filename: req.Filename,
			Format:   format,
			Data:     req.Document,
		}, req.JobDescription, opts)
	} else {
		result, err = a.AnalyzeText(ctx, req.ResumeText, req.JobDescription, opts)
	}

	reply.CompletedAt = time.Now()
	if err != nil {
		reply.ErrorKind = string(KindOf(err))
		reply.Error = PublicMessage(err)
		return reply
	}
	reply.Result = result
	return reply
}

// NewQueueDeliveryHandler 返回队列消费者使用的处理函数
// 无法解析的消息直接确认丢弃；回复发布失败时拒绝消息以便重投
func NewQueueDeliveryHandler(a Analyzer, replier Replier, logger *zerolog.Logger) storage.DeliveryHandler {
	return func(ctx context.Context, d amqp.Delivery) bool {
		var req storage.AnalysisRequestMessage
		if err := json.Unmarshal(d.Body, &req); err != nil {
			logger.Error().Err(err).Str("message_id", d.MessageId).Msg("无法解析分析请求，丢弃消息")
			return true
		}
		if req.RequestID == "" {
			req.RequestID = d.CorrelationId
		}

		start := time.Now()
		reply := HandleQueueRequest(ctx, a, &req)
		event := logger.Info()
		if reply.Failed() {
			event = logger.Warn().Str("error_kind", reply.ErrorKind)
		}
		event.Str("request_id", req.RequestID).Dur("elapsed", time.Since(start)).Msg("队列分析请求处理完成")

		if err := replier.Reply(ctx, d, reply); err != nil {
			logger.Error().Err(err).Str("request_id", req.RequestID).Msg("发布分析结果失败")
			return false
		}
		return true
	}
}
