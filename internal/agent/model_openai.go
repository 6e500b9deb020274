// Package agent 提供实现 eino model.ToolCallingChatModel 的聊天模型后端。
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

const (
	defaultOpenAIBaseURL   = "https://api.openai.com/v1"
	defaultOpenAIModelName = "gpt-4o-mini"
)

// ErrToolsNotSupported 评审模型只做单轮生成，不绑定工具
var ErrToolsNotSupported = errors.New("该模型不支持工具调用")

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

type openAIChatCompletionRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIChatMessage   `json:"messages"`
	Temperature    *float32              `json:"temperature,omitempty"`
	MaxTokens      *int                  `json:"max_tokens,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIChatChoice struct {
	Index   int `json:"index"`
	Message struct {
		Role    string  `json:"role"`
		Content *string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type openAICompletionResponse struct {
	ID      string             `json:"id"`
	Model   string             `json:"model"`
	Choices []openAIChatChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// OpenAIChatModel 调用 OpenAI 兼容的 /chat/completions 接口（OpenAI、DashScope 兼容模式、vLLM 等）
type OpenAIChatModel struct {
	apiKey     string
	modelName  string
	apiURL     string
	jsonMode   bool
	httpClient *http.Client
	logger     *log.Logger
}

var _ model.ToolCallingChatModel = (*OpenAIChatModel)(nil)

// OpenAIOption OpenAIChatModel 的配置选项
type OpenAIOption func(*OpenAIChatModel)

// WithOpenAILogger 设置日志记录器
func WithOpenAILogger(logger *log.Logger) OpenAIOption {
	return func(m *OpenAIChatModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOpenAIHTTPClient 设置HTTP客户端
func WithOpenAIHTTPClient(client *http.Client) OpenAIOption {
	return func(m *OpenAIChatModel) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithOpenAIJSONMode 要求模型以 JSON 对象输出
func WithOpenAIJSONMode(enabled bool) OpenAIOption {
	return func(m *OpenAIChatModel) {
		m.jsonMode = enabled
	}
}

// NewOpenAIChatModel 创建 OpenAI 兼容模型。baseURL 形如 https://api.openai.com/v1
func NewOpenAIChatModel(apiKey, modelName, baseURL string, opts ...OpenAIOption) (*OpenAIChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultOpenAIModelName
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOpenAIBaseURL
	}

	m := &OpenAIChatModel{
		apiKey:     apiKey,
		modelName:  modelName,
		apiURL:     strings.TrimRight(baseURL, "/") + "/chat/completions",
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger.Printf("使用 OpenAI 兼容 LLM 客户端，API URL: %s, 模型: %s", m.apiURL, m.modelName)
	return m, nil
}

// Generate 实现 model.BaseChatModel 接口
func (m *OpenAIChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	reqPayload := openAIChatCompletionRequest{
		Model:       m.modelName,
		Messages:    make([]openAIChatMessage, 0, len(messages)),
		Temperature: options.Temperature,
		MaxTokens:   options.MaxTokens,
	}
	if options.Model != nil && *options.Model != "" {
		reqPayload.Model = *options.Model
	}
	if m.jsonMode {
		reqPayload.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}
	for _, msg := range messages {
		if msg == nil || msg.Role == schema.Tool {
			continue
		}
		reqPayload.Messages = append(reqPayload.Messages, openAIChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	jsonData, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+m.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := m.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("发送 HTTP 请求失败: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	m.logger.Printf("收到响应: Status=%s, 用时 %.2f秒, 响应长度 %d", httpResp.Status, time.Since(start).Seconds(), len(bodyBytes))

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API 请求失败，状态 %s: %s", httpResp.Status, truncate(string(bodyBytes), 512))
	}

	var resp openAICompletionResponse
	if err := json.Unmarshal(bodyBytes, &resp); err != nil {
		return nil, fmt.Errorf("反序列化 API 响应失败: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("API 返回错误: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("从 API 收到空选项")
	}

	content := ""
	if c := resp.Choices[0].Message.Content; c != nil {
		content = *c
	}
	return schema.AssistantMessage(content, nil), nil
}

// Stream 评审场景只需要完整结果，未实现流式输出
func (m *OpenAIChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OpenAIChatModel 的 Stream 方法未实现")
}

// WithTools 不绑定任何工具时返回自身
func (m *OpenAIChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, ErrToolsNotSupported
	}
	return m, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
