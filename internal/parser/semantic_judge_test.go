package parser

import (
	"context"
	"errors"
	"strings"
	"testing"

	"resume-scorer/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMSemanticJudge(t *testing.T) {
	mock := agent.NewMockChatModel(agent.MockResponse{
		Content: `{"semantic_score": 82.5, "rationale": "Strong backend overlap."}`,
	})
	judge := NewLLMSemanticJudge(mock, WithJudgeModelName("mock"))

	result, err := judge.Judge(context.Background(), "Go engineer with 5 years", "We need a Go engineer")
	require.NoError(t, err)
	assert.InDelta(t, 82.5, result.Score, 1e-9)
	assert.Equal(t, "Strong backend overlap.", result.Rationale)
	assert.Equal(t, "mock", judge.ModelName())

	received := mock.ReceivedMessages()
	require.Len(t, received, 1)
	require.Len(t, received[0], 2, "系统消息加用户消息")
	assert.Contains(t, received[0][1].Content, "We need a Go engineer")
	assert.Contains(t, received[0][1].Content, "Go engineer with 5 years")
}

func TestLLMSemanticJudgeTruncatesInput(t *testing.T) {
	mock := agent.NewMockChatModel(agent.MockResponse{Content: `{"semantic_score": 50}`})
	judge := NewLLMSemanticJudge(mock, WithJudgeMaxInputChars(10))

	_, err := judge.Judge(context.Background(), strings.Repeat("r", 50), strings.Repeat("j", 50))
	require.NoError(t, err)

	prompt := mock.ReceivedMessages()[0][1].Content
	assert.Contains(t, prompt, strings.Repeat("r", 10))
	assert.NotContains(t, prompt, strings.Repeat("r", 11))
	assert.NotContains(t, prompt, strings.Repeat("j", 11))
}

func TestLLMSemanticJudgeModelError(t *testing.T) {
	judge := NewLLMSemanticJudge(agent.NewMockChatModel(agent.MockResponse{Error: errors.New("503 service unavailable")}))

	_, err := judge.Judge(context.Background(), "resume", "job")
	assert.Error(t, err)
}

func TestLLMSemanticJudgeNilModel(t *testing.T) {
	_, err := NewLLMSemanticJudge(nil).Judge(context.Background(), "resume", "job")
	assert.Error(t, err)
}

func TestParseJudgement(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantScore float64
		wantErr   bool
	}{
		{name: "plain", content: `{"semantic_score": 70, "rationale": "ok"}`, wantScore: 70},
		{name: "code fence", content: "```json\n{\"semantic_score\": 64}\n```", wantScore: 64},
		{name: "surrounding prose", content: `Here is my answer: {"semantic_score": 91, "rationale": "uses {braces}"} Thanks!`, wantScore: 91},
		{name: "bom", content: "\uFEFF{\"semantic_score\": 12}", wantScore: 12},
		{name: "alias key", content: `{"score": 33}`, wantScore: 33},
		{name: "unescaped quotes", content: `{"semantic_score": 55, "rationale": "knows "distributed" systems"}`, wantScore: 55},
		{name: "out of range", content: `{"semantic_score": 140}`, wantErr: true},
		{name: "negative", content: `{"semantic_score": -1}`, wantErr: true},
		{name: "missing score", content: `{"rationale": "no number"}`, wantErr: true},
		{name: "no json", content: "I cannot judge this.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJudgement(tt.content)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJudgement)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.wantScore, got.Score, 1e-9)
		})
	}
}

func TestParseJudgementInsights(t *testing.T) {
	got, err := ParseJudgement(`{"semantic_score": 76, "rationale": "Good fit.",
		"key_strengths": ["Six years of Go services", " ", "six years of go services", "On-call ownership"],
		"improvement_areas": "Quantify the latency work"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Six years of Go services", "On-call ownership"}, got.KeyStrengths)
	assert.Equal(t, []string{"Quantify the latency work"}, got.ImprovementAreas)

	// 列表字段格式不对时只丢弃该字段
	got, err = ParseJudgement(`{"semantic_score": 40, "key_strengths": {"a": 1}}`)
	require.NoError(t, err)
	assert.Nil(t, got.KeyStrengths)
	assert.Nil(t, got.ImprovementAreas)

	got, err = ParseJudgement(`{"semantic_score": 40, "improvement_areas": ["a", "b", "c", "d", "e", "f", "g"]}`)
	require.NoError(t, err)
	assert.Len(t, got.ImprovementAreas, maxInsightItems)
}

func TestLLMSemanticJudgePromptAsksForInsights(t *testing.T) {
	mock := agent.NewMockChatModel(agent.MockResponse{Content: `{"semantic_score": 60}`})
	_, err := NewLLMSemanticJudge(mock).Judge(context.Background(), "resume", "job")
	require.NoError(t, err)

	prompt := mock.ReceivedMessages()[0][1].Content
	assert.Contains(t, prompt, `"key_strengths"`)
	assert.Contains(t, prompt, `"improvement_areas"`)
}
