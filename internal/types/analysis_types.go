package types

import (
	"path/filepath"
	"strings"
)

// DocumentFormat 上传文档的格式标记
type DocumentFormat string

const (
	// FormatPDF PDF文档
	FormatPDF DocumentFormat = "pdf"
	// FormatDOC 旧版Word文档
	FormatDOC DocumentFormat = "doc"
	// FormatDOCX Word文档
	FormatDOCX DocumentFormat = "docx"
	// FormatTXT 纯文本
	FormatTXT DocumentFormat = "txt"
)

// SupportedFormats 支持的文档格式白名单
var SupportedFormats = []DocumentFormat{FormatPDF, FormatDOC, FormatDOCX, FormatTXT}

// Valid 判断格式是否在白名单内
func (f DocumentFormat) Valid() bool {
	switch f {
	case FormatPDF, FormatDOC, FormatDOCX, FormatTXT:
		return true
	}
	return false
}

// ParseDocumentFormat 将 "PDF"、".docx" 之类的写法规范化为格式标记，不做白名单校验
func ParseDocumentFormat(s string) DocumentFormat {
	return DocumentFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
}

// FormatFromFilename 根据文件扩展名推断格式
func FormatFromFilename(filename string) DocumentFormat {
	return ParseDocumentFormat(filepath.Ext(filename))
}

// SourceDocument 一次请求中的原始文档
type SourceDocument struct {
	Filename string         // 原始文件名，仅用于日志
	Format   DocumentFormat // 声明的格式
	Data     []byte         // 原始字节
	Text     string         // 提取后的纯文本
}

// EducationLevel 学历等级，数值越大等级越高
type EducationLevel int

const (
	EducationNone EducationLevel = iota
	EducationBachelor
	EducationMaster
	EducationDoctorate
)

// String 返回学历等级的机器可读名称
func (l EducationLevel) String() string {
	switch l {
	case EducationBachelor:
		return "bachelor"
	case EducationMaster:
		return "master"
	case EducationDoctorate:
		return "doctorate"
	default:
		return "none"
	}
}

// Label 返回面向用户的学历描述
func (l EducationLevel) Label() string {
	switch l {
	case EducationBachelor:
		return "bachelor's degree"
	case EducationMaster:
		return "master's degree"
	case EducationDoctorate:
		return "doctorate (PhD)"
	default:
		return "no formal degree"
	}
}

// SkillMention 文档中命中的一个规范技能
type SkillMention struct {
	Name       string // 规范技能名
	Category   string // 技能分类
	Count      int    // 出现次数
	FirstIndex int    // 首次出现的token位置
}

// KeywordMention 文档中的一个非技能关键词
type KeywordMention struct {
	Term       string // 匹配用的规范形式（词干）
	Display    string // 首次出现的原始写法
	Count      int
	FirstIndex int
}

// ExtractedProfile 单个文档抽取出的结构化信号
type ExtractedProfile struct {
	Skills            []SkillMention   // 按首次出现顺序
	YearsOfExperience *float64         // 未识别到时为nil
	Education         EducationLevel   // 最高学历
	Keywords          []KeywordMention // 按首次出现顺序
}

// SkillSet 返回技能名集合
func (p *ExtractedProfile) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		set[s.Name] = struct{}{}
	}
	return set
}

// HasSkill 判断是否包含某个规范技能
func (p *ExtractedProfile) HasSkill(name string) bool {
	for _, s := range p.Skills {
		if s.Name == name {
			return true
		}
	}
	return false
}

// KeywordSet 返回关键词（规范形式）集合
func (p *ExtractedProfile) KeywordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p.Keywords))
	for _, k := range p.Keywords {
		set[k.Term] = struct{}{}
	}
	return set
}

// Years 返回经验年限，未识别时为0
func (p *ExtractedProfile) Years() float64 {
	if p.YearsOfExperience == nil {
		return 0
	}
	return *p.YearsOfExperience
}

// ScoreBreakdown 六个分数，均在[0,100]
type ScoreBreakdown struct {
	Overall    float64 `json:"overallMatch"`
	Semantic   float64 `json:"semanticMatch"`
	Skills     float64 `json:"skillsMatch"`
	Experience float64 `json:"experienceMatch"`
	Education  float64 `json:"educationMatch"`
	Keywords   float64 `json:"keywordsMatch"`
}

// AnalysisMethod 语义分数的来源
type AnalysisMethod string

const (
	// MethodBaseline 仅使用确定性的TF-IDF余弦相似度
	MethodBaseline AnalysisMethod = "baseline"
	// MethodEnhanced 语义分数由LLM评审给出
	MethodEnhanced AnalysisMethod = "enhanced"
)

// AnalysisOptions 单次分析的可选项
type AnalysisOptions struct {
	UseEnhancement bool `json:"useLLM"`
}

// AnalysisResult 分析结果
type AnalysisResult struct {
	AnalysisID string `json:"analysisId"`
	ScoreBreakdown
	MatchedSkills      []string       `json:"matchedSkills"`
	MissingSkills      []string       `json:"missingSkills"`
	Recommendations    []string       `json:"recommendations"`
	Strengths          []string       `json:"strengths"`
	AnalysisMethod     AnalysisMethod `json:"analysisMethod"`
	SemanticCommentary string         `json:"semanticCommentary,omitempty"`

	// LLMAnalysis 仅在 enhanced 时返回评审原文
	LLMAnalysis *SemanticJudgement `json:"llmAnalysis,omitempty"`
}

// SemanticJudgement LLM评审返回的语义匹配结果
type SemanticJudgement struct {
	Score            float64  `json:"semantic_score"`
	Rationale        string   `json:"rationale"`
	KeyStrengths     []string `json:"key_strengths,omitempty"`
	ImprovementAreas []string `json:"improvement_areas,omitempty"`
}
