package agent

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

const defaultGeminiModelName = "gemini-2.5-flash"

// GeminiChatModel 通过 google.golang.org/genai 调用 Gemini
type GeminiChatModel struct {
	client    *genai.Client
	modelName string
	logger    *log.Logger
}

var _ model.ToolCallingChatModel = (*GeminiChatModel)(nil)

type geminiOptions struct {
	baseURL    string
	httpClient *http.Client
	logger     *log.Logger
}

// GeminiOption Gemini 客户端选项
type GeminiOption func(*geminiOptions)

// WithGeminiBaseURL 覆盖API地址，用于代理或测试
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(o *geminiOptions) {
		o.baseURL = baseURL
	}
}

// WithGeminiHTTPClient 设置HTTP客户端
func WithGeminiHTTPClient(client *http.Client) GeminiOption {
	return func(o *geminiOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithGeminiLogger 设置日志记录器
func WithGeminiLogger(logger *log.Logger) GeminiOption {
	return func(o *geminiOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewGeminiChatModel 创建 Gemini 模型客户端
func NewGeminiChatModel(ctx context.Context, apiKey, modelName string, opts ...GeminiOption) (*GeminiChatModel, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("Gemini API 密钥不能为空")
	}
	if strings.TrimSpace(modelName) == "" {
		modelName = defaultGeminiModelName
	}
	o := &geminiOptions{logger: log.New(io.Discard, "", 0)}
	for _, opt := range opts {
		opt(o)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  o.httpClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: o.baseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	o.logger.Printf("使用 Gemini LLM 客户端，模型: %s", modelName)

	return &GeminiChatModel{client: client, modelName: modelName, logger: o.logger}, nil
}

// Generate system 消息转为 SystemInstruction，其余按角色转为 Content
func (m *GeminiChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{}, opts...)

	cfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*options.Temperature)
	}
	if options.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		case schema.User:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	if len(system) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(strings.Join(system, "\n\n"), genai.RoleUser)
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("Gemini 请求缺少用户消息")
	}

	modelName := m.modelName
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	resp, err := m.client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("Gemini 生成失败: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("Gemini 返回空响应")
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream 未实现
func (m *GeminiChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("GeminiChatModel 的 Stream 方法未实现")
}

// WithTools 不绑定任何工具时返回自身
func (m *GeminiChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	if len(tools) > 0 {
		return nil, ErrToolsNotSupported
	}
	return m, nil
}
