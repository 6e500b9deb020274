package constants

import "github.com/gofrs/uuid/v5"

const (
	// EngineVersion 评分规则版本，参与缓存键和分析ID的计算，规则变化时需要递增
	EngineVersion = "1.0"

	// MaxTextFieldChars analyze-text 接口中单个文本字段的最大字符数
	MaxTextFieldChars = 200000
)

// AnalysisNamespace 生成分析ID (UUIDv5) 的命名空间
var AnalysisNamespace = uuid.NewV5(uuid.NamespaceURL, "https://resume-scorer/analysis")
