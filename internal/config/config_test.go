package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644), "无法写入临时配置文件")
	return configPath
}

// TestLoadConfigKeepsDefaultsForMissingFields 验证YAML中未出现的字段保留默认值
func TestLoadConfigKeepsDefaultsForMissingFields(t *testing.T) {
	configPath := writeTempConfig(t, `
server:
  address: ":9090"
scoring:
  top_keywords: 15
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	require.NotNil(t, config)

	assert.Equal(t, ":9090", config.Server.Address)
	assert.Equal(t, 15, config.Scoring.TopKeywords)

	// 未配置的部分沿用默认值
	assert.Equal(t, 16, config.Limits.MaxDocumentMB)
	assert.Equal(t, 20, config.Limits.MinJDChars)
	assert.InDelta(t, 0.30, config.Scoring.Weights.Semantic, 1e-9)
	assert.InDelta(t, 0.10, config.Scoring.Weights.Education, 1e-9)
	assert.Equal(t, "embedded", config.Taxonomy.Source)
	assert.Equal(t, "60s", config.Enhancer.Timeout)
}

// TestLoadConfigWeightsOverride 验证权重表可以整体覆盖
func TestLoadConfigWeightsOverride(t *testing.T) {
	configPath := writeTempConfig(t, `
scoring:
  weights:
    semantic: 0.2
    skills: 0.4
    experience: 0.2
    education: 0.1
    keywords: 0.1
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.InDelta(t, 0.4, config.Scoring.Weights.Skills, 1e-9)
	assert.InDelta(t, 0.2, config.Scoring.Weights.Semantic, 1e-9)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{
			name: "负权重",
			content: `
scoring:
  weights:
    semantic: -0.1
`,
		},
		{
			name: "未知词表来源",
			content: `
taxonomy:
  source: s3
`,
		},
		{
			name: "文件词表缺少路径",
			content: `
taxonomy:
  source: file
`,
		},
		{
			name: "未知的LLM提供方",
			content: `
enhancer:
  enabled: true
  provider: unknown
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadConfig(writeTempConfig(t, tc.content))
			assert.Error(t, err)
		})
	}
}

// TestLoadConfigWithIncorrectYAML 验证YAML语法错误时返回错误
func TestLoadConfigWithIncorrectYAML(t *testing.T) {
	configPath := writeTempConfig(t, "server: [unclosed")
	_, err := LoadConfig(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "解析配置文件失败")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "配置文件不存在")
}

// TestLoadConfigEnvOverrides 验证环境变量覆盖文件中的值
func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvPrefix+"LLM_API_KEY", "env-key")
	t.Setenv(EnvPrefix+"LLM_ENABLED", "true")
	t.Setenv(EnvPrefix+"LLM_PROVIDER", "openai")
	t.Setenv(EnvPrefix+"API_KEYS", "a, b ,,c")

	configPath := writeTempConfig(t, `
enhancer:
  api_key: file-key
  provider: ollama
`)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "env-key", config.Enhancer.APIKey)
	assert.True(t, config.Enhancer.Enabled)
	assert.Equal(t, "openai", config.Enhancer.Provider)
	assert.Equal(t, []string{"a", "b", "c"}, config.Auth.APIKeys)
}

func TestMaxDocumentBytes(t *testing.T) {
	config := Default()
	assert.Equal(t, int64(16*1024*1024), config.MaxDocumentBytes())
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 60*time.Second, GetDuration("60s", time.Second))
	assert.Equal(t, time.Second, GetDuration("", time.Second))
	assert.Equal(t, time.Second, GetDuration("abc", time.Second))
}

func TestCreateSampleConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.yaml")
	require.NoError(t, CreateSampleConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Limits, loaded.Limits)

	// 已存在时不覆盖
	assert.Error(t, CreateSampleConfig(path))
}
