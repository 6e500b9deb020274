package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// MockResponse MockChatModel 的一次预设响应
type MockResponse struct {
	Content string
	Error   error
	Delay   time.Duration // 返回前的等待时间，ctx结束时提前返回ctx错误
}

// MockChatModel 用于测试的聊天模型，按顺序返回预设响应，最后一个响应会被重复使用
type MockChatModel struct {
	mu        sync.Mutex
	responses []MockResponse
	index     int
	received  [][]*schema.Message
}

var _ model.ToolCallingChatModel = (*MockChatModel)(nil)

// NewMockChatModel 创建按顺序返回响应的模拟模型
func NewMockChatModel(responses ...MockResponse) *MockChatModel {
	if len(responses) == 0 {
		responses = []MockResponse{{Error: errors.New("mock model has no responses configured")}}
	}
	return &MockChatModel{responses: responses}
}

// Generate 记录输入并返回下一个预设响应
func (m *MockChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	copied := make([]*schema.Message, len(input))
	copy(copied, input)
	m.received = append(m.received, copied)
	resp := m.responses[m.index]
	if m.index < len(m.responses)-1 {
		m.index++
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return schema.AssistantMessage(resp.Content, nil), nil
}

// Stream 未实现
func (m *MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, fmt.Errorf("streaming not implemented in MockChatModel")
}

// WithTools 返回自身
func (m *MockChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

// Calls 返回调用次数
func (m *MockChatModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}

// ReceivedMessages 返回每次调用收到的消息
func (m *MockChatModel) ReceivedMessages() [][]*schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]*schema.Message, len(m.received))
	copy(out, m.received)
	return out
}
