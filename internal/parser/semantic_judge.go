package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode/utf8"

	"resume-scorer/internal/tracing"
	"resume-scorer/internal/types"

	"github.com/cloudwego/eino/components/model"
	einoschema "github.com/cloudwego/eino/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var judgeTracer = otel.Tracer("resume-scorer/parser/judge")

// ErrInvalidJudgement 模型输出无法解析或分数越界
var ErrInvalidJudgement = errors.New("LLM语义评审结果无效")

const (
	defaultMaxInputChars = 6000
	maxRationaleRunes    = 600
	maxInsightItems      = 5
	maxInsightRunes      = 240
)

const judgeSystemPrompt = `You are an expert technical recruiter. You compare a candidate's resume with a job description and judge how well the candidate's overall background fits the role, beyond literal keyword overlap. You always answer with a single JSON object and nothing else.`

const judgePromptTemplate = `Assess the semantic fit between the RESUME and the JOB DESCRIPTION below.

Score guidance:
- 90-100: the candidate's experience directly covers the role's responsibilities and seniority.
- 70-89: strong overlap with minor gaps.
- 50-69: partially relevant background, noticeable gaps.
- 30-49: adjacent field, most core responsibilities not demonstrated.
- 0-29: unrelated background.

Respond with JSON only, using exactly these fields:
{
  "semantic_score": <number between 0 and 100>,
  "rationale": "<two or three sentences explaining the score>",
  "key_strengths": ["<short sentence>", "..."],
  "improvement_areas": ["<short, actionable suggestion for the resume>", "..."]
}
List at most three key_strengths and three improvement_areas. Only mention what the resume actually shows.

JOB DESCRIPTION:
"""
%s
"""

RESUME:
"""
%s
"""`

// LLMSemanticJudge 让聊天模型给出简历与JD的语义匹配分
type LLMSemanticJudge struct {
	llmModel      model.ToolCallingChatModel
	modelName     string
	temperature   float32
	maxTokens     int
	maxInputChars int
	logger        *log.Logger
}

// SemanticJudgeOption LLMSemanticJudge 的配置选项
type SemanticJudgeOption func(*LLMSemanticJudge)

// WithJudgeTemperature 设置采样温度
func WithJudgeTemperature(t float64) SemanticJudgeOption {
	return func(j *LLMSemanticJudge) {
		if t >= 0 {
			j.temperature = float32(t)
		}
	}
}

// WithJudgeMaxTokens 设置输出token上限
func WithJudgeMaxTokens(n int) SemanticJudgeOption {
	return func(j *LLMSemanticJudge) {
		if n > 0 {
			j.maxTokens = n
		}
	}
}

// WithJudgeMaxInputChars 每段输入文本发送给模型前的截断长度
func WithJudgeMaxInputChars(n int) SemanticJudgeOption {
	return func(j *LLMSemanticJudge) {
		if n > 0 {
			j.maxInputChars = n
		}
	}
}

// WithJudgeModelName 记录在日志中的模型名
func WithJudgeModelName(name string) SemanticJudgeOption {
	return func(j *LLMSemanticJudge) {
		j.modelName = name
	}
}

// WithJudgeLogger 设置日志记录器
func WithJudgeLogger(logger *log.Logger) SemanticJudgeOption {
	return func(j *LLMSemanticJudge) {
		if logger != nil {
			j.logger = logger
		}
	}
}

// NewLLMSemanticJudge 创建语义评审器
func NewLLMSemanticJudge(llmModel model.ToolCallingChatModel, options ...SemanticJudgeOption) *LLMSemanticJudge {
	j := &LLMSemanticJudge{
		llmModel:      llmModel,
		temperature:   0.2,
		maxTokens:     768,
		maxInputChars: defaultMaxInputChars,
		logger:        log.New(io.Discard, "", 0),
	}
	for _, opt := range options {
		opt(j)
	}
	return j
}

// ModelName 返回配置的模型名
func (j *LLMSemanticJudge) ModelName() string {
	return j.modelName
}

// Judge 调用模型并解析出 semantic_score、rationale 以及优势和改进点
func (j *LLMSemanticJudge) Judge(ctx context.Context, resumeText, jobDescription string) (*types.SemanticJudgement, error) {
	if j.llmModel == nil {
		return nil, fmt.Errorf("LLMSemanticJudge: llmModel is not initialized")
	}

	prompt := fmt.Sprintf(judgePromptTemplate,
		truncateRunes(jobDescription, j.maxInputChars),
		truncateRunes(resumeText, j.maxInputChars),
	)
	messages := []*einoschema.Message{
		einoschema.SystemMessage(judgeSystemPrompt),
		einoschema.UserMessage(prompt),
	}

	ctx, span := judgeTracer.Start(ctx, "LLMSemanticJudge.Judge",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", j.modelName),
			attribute.String("llm.prompt", tracing.SafePrompt(prompt)),
		),
	)
	defer span.End()

	response, err := j.llmModel.Generate(ctx, messages,
		model.WithTemperature(j.temperature),
		model.WithMaxTokens(j.maxTokens),
	)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEnhancement)
		return nil, fmt.Errorf("LLMSemanticJudge: LLM call failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidJudgement)
	}
	j.logger.Printf("模型 %s 返回 %d 个字符", j.modelName, len(response.Content))
	span.SetAttributes(attribute.String("llm.response", tracing.SafePrompt(response.Content)))

	judgement, err := ParseJudgement(response.Content)
	if err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeEnhancement)
		return nil, err
	}
	return judgement, nil
}

type rawJudgement struct {
	SemanticScore    *float64        `json:"semantic_score"`
	Score            *float64        `json:"score"`
	MatchScore       *float64        `json:"match_score"`
	Rationale        string          `json:"rationale"`
	Explanation      string          `json:"explanation"`
	KeyStrengths     json.RawMessage `json:"key_strengths"`
	ImprovementAreas json.RawMessage `json:"improvement_areas"`
}

// ParseJudgement 从模型原始输出中提取JSON并校验分数范围
func ParseJudgement(content string) (*types.SemanticJudgement, error) {
	content = strings.TrimPrefix(strings.TrimSpace(content), "\uFEFF")
	jsonStr := extractJSONObject(stripCodeFence(content))
	if jsonStr == "" {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrInvalidJudgement)
	}
	if !utf8.ValidString(jsonStr) {
		jsonStr = strings.ToValidUTF8(jsonStr, "")
	}

	var raw rawJudgement
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		if jsonErr := json.Unmarshal([]byte(sanitizeJSON(jsonStr)), &raw); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJudgement, err)
		}
	}

	var score *float64
	for _, candidate := range []*float64{raw.SemanticScore, raw.Score, raw.MatchScore} {
		if candidate != nil {
			score = candidate
			break
		}
	}
	if score == nil {
		return nil, fmt.Errorf("%w: semantic_score missing", ErrInvalidJudgement)
	}
	if *score < 0 || *score > 100 {
		return nil, fmt.Errorf("%w: semantic_score must be between 0 and 100, got %g", ErrInvalidJudgement, *score)
	}

	rationale := raw.Rationale
	if rationale == "" {
		rationale = raw.Explanation
	}
	return &types.SemanticJudgement{
		Score:            *score,
		Rationale:        truncateRunes(strings.TrimSpace(rationale), maxRationaleRunes),
		KeyStrengths:     insightList(raw.KeyStrengths),
		ImprovementAreas: insightList(raw.ImprovementAreas),
	}, nil
}

// insightList 接受字符串数组或单个字符串，去空、去重并截断。格式不对时返回nil，不影响分数
func insightList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		var single string
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil
		}
		items = []string{single}
	}

	var out []string
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = truncateRunes(strings.TrimSpace(item), maxInsightRunes)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) == maxInsightItems {
			break
		}
	}
	return out
}

// stripCodeFence 去掉 ```json ... ``` 包裹
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// extractJSONObject 返回第一个完整的顶层JSON对象，忽略字符串内的花括号
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	if start == -1 {
		return ""
	}
	level := 0
	inStr := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inStr:
			escaped = true
		case c == '"':
			inStr = !inStr
		case c == '{' && !inStr:
			level++
		case c == '}' && !inStr:
			level--
			if level == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// sanitizeJSON 把字符串内部未转义的双引号改写为 \"。
// 下一个非空白字符是 : , ] } 之一时才视为字符串结束
func sanitizeJSON(src string) string {
	var b strings.Builder
	inStr := false
	escaped := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case c == '"' && !escaped:
			if !inStr {
				inStr = true
				b.WriteByte(c)
				break
			}
			j := i + 1
			for j < len(src) && (src[j] == ' ' || src[j] == '\t' || src[j] == '\n' || src[j] == '\r') {
				j++
			}
			if j >= len(src) || src[j] == ':' || src[j] == ',' || src[j] == ']' || src[j] == '}' {
				inStr = false
				b.WriteByte(c)
			} else {
				b.WriteString("\\\"")
			}
		case c == '\\' && !escaped:
			escaped = true
			b.WriteByte(c)
			continue
		default:
			b.WriteByte(c)
		}
		escaped = false
	}
	return b.String()
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
