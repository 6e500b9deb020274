package agent

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/ratelimit"

	"github.com/cloudwego/eino/components/model"
)

// 支持的模型提供方
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// NewChatModel 按 enhancer 配置创建聊天模型，并在外层加限流重试
func NewChatModel(ctx context.Context, cfg config.EnhancerConfig, logger *log.Logger) (model.ToolCallingChatModel, error) {
	httpClient := &http.Client{Timeout: config.GetDuration(cfg.Timeout, 60*time.Second) + 5*time.Second}

	var base model.ToolCallingChatModel
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		m, err := NewOpenAIChatModel(cfg.APIKey, cfg.Model, cfg.BaseURL,
			WithOpenAILogger(logger),
			WithOpenAIHTTPClient(httpClient),
			WithOpenAIJSONMode(true),
		)
		if err != nil {
			return nil, err
		}
		base = m
	case ProviderOllama:
		base = NewOllamaChatModel(cfg.BaseURL, cfg.Model,
			WithOllamaLogger(logger),
			WithOllamaHTTPClient(httpClient),
			WithOllamaJSONFormat(true),
		)
	case ProviderGemini:
		m, err := NewGeminiChatModel(ctx, cfg.APIKey, cfg.Model,
			WithGeminiLogger(logger),
			WithGeminiHTTPClient(httpClient),
		)
		if err != nil {
			return nil, err
		}
		base = m
	default:
		return nil, fmt.Errorf("未知的模型提供方: %s", cfg.Provider)
	}

	return ratelimit.Wrap(base, cfg.QPM, cfg.MaxRetries, time.Second), nil
}
