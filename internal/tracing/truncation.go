package tracing

import (
	"strings"
)

// span 属性值的长度上限(按字符计)
const (
	DefaultMaxLength = 200
	MaxSQLLength     = 500
	MaxRedisLength   = 100
	MaxResumeLength  = 150
	MaxPromptLength  = 300
)

// 属性名包含这些片段时，值按个人信息处理
var sensitiveKeyFragments = []string{
	"email", "phone", "address", "name", "age",
	"password", "secret", "token", "id_card",
	"姓名", "年龄", "地址", "身份证",
}

// SafeAttributeValue 个人信息类属性做掩码，其余属性按 maxLength 截断
func SafeAttributeValue(name string, value string, maxLength int) string {
	lower := strings.ToLower(name)
	for _, fragment := range sensitiveKeyFragments {
		if strings.Contains(lower, fragment) {
			return MaskPII(value)
		}
	}
	return TruncateString(value, maxLength)
}

// MaskPII 保留首尾少量字符，其余替换为 *
// 两个字符只保留第一个，五个字符及以上保留首尾各两个
func MaskPII(value string) string {
	runes := []rune(value)
	n := len(runes)
	switch {
	case n == 0:
		return ""
	case n == 1:
		return "*"
	case n == 2:
		return string(runes[0]) + "*"
	case n <= 4:
		return string(runes[0]) + strings.Repeat("*", n-2) + string(runes[n-1])
	default:
		return string(runes[:2]) + strings.Repeat("*", n-4) + string(runes[n-2:])
	}
}

// TruncateString 超长时保留首尾，中间用 ... 连接
func TruncateString(s string, maxLength int) string {
	runes := []rune(s)
	if len(runes) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(runes[:maxLength])
	}
	keep := (maxLength - 3) / 2
	return string(runes[:keep]) + "..." + string(runes[len(runes)-keep:])
}

func SafeSQL(sql string) string { return TruncateString(sql, MaxSQLLength) }

func SafeRedisKey(key string) string { return TruncateString(key, MaxRedisLength) }

func SafeResumeContent(content string) string { return TruncateString(content, MaxResumeLength) }

func SafePrompt(prompt string) string { return TruncateString(prompt, MaxPromptLength) }
