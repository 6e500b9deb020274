package processor

import (
	"context"

	"resume-scorer/internal/types"
)

// Analyzer 分析引擎的唯一入口，HTTP、命令行和队列三种传输方式都只依赖它
type Analyzer interface {
	// Submit 提取文档文本并与JD比对
	Submit(ctx context.Context, doc *types.SourceDocument, jobDescription string, opts types.AnalysisOptions) (*types.AnalysisResult, error)

	// AnalyzeText 跳过文本提取，直接比对两段文本
	AnalyzeText(ctx context.Context, resumeText, jobDescription string, opts types.AnalysisOptions) (*types.AnalysisResult, error)
}

//
// 文本提取相关接口
//

// DocumentExtractor 文档文本提取器接口
type DocumentExtractor interface {
	// Extract 按文档声明的格式提取纯文本，成功时文本非空
	Extract(ctx context.Context, doc *types.SourceDocument) (string, error)

	// Supports 是否能处理该格式
	Supports(format types.DocumentFormat) bool
}

//
// 语义评审相关接口
//

// SemanticJudge 外部语义评审接口，给出0-100的匹配分和简短理由
type SemanticJudge interface {
	Judge(ctx context.Context, resumeText, jobDescription string) (*types.SemanticJudgement, error)
}

//
// 缓存相关接口
//

// ResultCache 分析结果缓存，只缓存确定性的基线结果
type ResultCache interface {
	// GetResult 未命中时返回 nil, nil
	GetResult(ctx context.Context, key string) (*types.AnalysisResult, error)

	// SetResult 写入结果
	SetResult(ctx context.Context, key string, result *types.AnalysisResult) error
}
