package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 在聊天模型外层加限流与重试，调用方式与原模型一致
type RateLimitedChatModel struct {
	original model.ToolCallingChatModel
	bucket   *TokenBucket
}

var _ model.ToolCallingChatModel = (*RateLimitedChatModel)(nil)

// NewRateLimitedChatModel 以每分钟 qpm 次的速率限制 original
func NewRateLimitedChatModel(original model.ToolCallingChatModel, qpm int) *RateLimitedChatModel {
	return &RateLimitedChatModel{
		original: original,
		bucket:   NewTokenBucket(qpm, 0),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedChatModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedChatModel {
	rl.bucket.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Generate 限流后调用原模型
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	err := rl.bucket.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})
	return response, err
}

// Stream 限流后调用原模型的流式接口
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	err := rl.bucket.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})
	return stream, err
}

// WithTools 绑定工具后的新模型共用同一个令牌桶
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	bound, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}
	return &RateLimitedChatModel{original: bound, bucket: rl.bucket}, nil
}

// Wrap 按配置包装模型。qpm<=0 时不限流，直接返回原模型
func Wrap(original model.ToolCallingChatModel, qpm, maxRetries int, retryWait time.Duration) model.ToolCallingChatModel {
	if original == nil || qpm <= 0 {
		return original
	}
	return NewRateLimitedChatModel(original, qpm).WithRetryPolicy(retryWait, maxRetries)
}
