package agent

import (
	"bytes"
	"context"
	"encoding/json"
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
	defaultOllamaBaseURL   = "http://localhost:11434"
	defaultOllamaModelName = "llama3.2"
)

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Format   string              `json:"format,omitempty"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// OllamaChatModel 调用本地 Ollama 的 /api/chat 接口
type OllamaChatModel struct {
	baseURL    string
	modelName  string
	jsonFormat bool
	httpClient *http.Client
	logger     *log.Logger
}

var _ model.ToolCallingChatModel = (*OllamaChatModel)(nil)

// OllamaOption OllamaChatModel 的配置选项
type OllamaOption func(*OllamaChatModel)

// WithOllamaLogger 设置日志记录器
func WithOllamaLogger(logger *log.Logger) OllamaOption {
	return func(m *OllamaChatModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithOllamaHTTPClient 设置HTTP客户端
func WithOllamaHTTPClient(client *http.Client) OllamaOption {
	return func(m *OllamaChatModel) {
		if client != nil {
			m.httpClient = client
		}
	}
}

// WithOllamaJSONFormat 要求模型输出合法JSON
func WithOllamaJSONFormat(enabled bool) OllamaOption {
	return func(m *OllamaChatModel) {
		m.jsonFormat = enabled
	}
}

// NewOllamaChatModel 创建 Ollama 模型客户端
func NewOllamaChatModel(baseURL, modelName string, opts ...OllamaOption) *OllamaChatModel {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultOllamaBaseURL
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultOllamaModelName
	}
	m := &OllamaChatModel{
		baseURL:    strings.TrimRight(baseURL, "/"),
		modelName:  modelName,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Generate 实现 model.BaseChatModel 接口
func (m *OllamaChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	payload := ollamaChatRequest{
		Model:    m.modelName,
		Messages: make([]openAIChatMessage, 0, len(messages)),
		Stream:   false,
		Options:  map[string]any{},
	}
	if m.jsonFormat {
		payload.Format = "json"
	}
	if options.Temperature != nil {
		payload.Options["temperature"] = *options.Temperature
	}
	if options.MaxTokens != nil {
		payload.Options["num_predict"] = *options.MaxTokens
	}
	for _, msg := range messages {
		if msg == nil || msg.Role == schema.Tool {
			continue
		}
		payload.Messages = append(payload.Messages, openAIChatMessage{Role: string(msg.Role), Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求体失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 Ollama 失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	m.logger.Printf("Ollama 响应: Status=%s, 模型=%s, 用时 %.2f秒", resp.Status, m.modelName, time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Ollama 请求失败，状态 %s: %s", resp.Status, truncate(string(respBody), 512))
	}

	var out ollamaChatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("反序列化 Ollama 响应失败: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("Ollama 返回错误: %s", out.Error)
	}
	return schema.AssistantMessage(out.Message.Content, nil), nil
}

// Stream 未实现
func (m *OllamaChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("OllamaChatModel 的 Stream 方法未实现")
}

// WithTools 不绑定任何工具时返回自身
func (m *OllamaChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, ErrToolsNotSupported
	}
	return m, nil
}
