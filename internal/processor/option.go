package processor

import (
	"io"
	"log"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/scoring"
	"resume-scorer/internal/skills"
)

// Components 聚合引擎依赖的外部组件，便于集中管理和测试替换
type Components struct {
	Extractor DocumentExtractor // 文档文本提取
	Judge     SemanticJudge     // LLM语义评审，可为nil
	Cache     ResultCache       // 基线结果缓存，可为nil
	Taxonomy  *skills.Taxonomy  // 共享只读技能词表，nil时使用内置词表
}

// Settings 纯配置项，不包含任何业务逻辑组件
type Settings struct {
	MaxDocumentBytes int64         // 文档大小上限，在解析前检查
	MinJDChars       int           // JD去除首尾空白后的最少字符数
	MaxTokens        int           // 单个文档参与评分的token上限
	EnhanceTimeout   time.Duration // LLM评审超时
	Stemming         bool
	UseIDF           bool
	MinKeywordLength int

	Weights                 scoring.Weights
	TopKeywords             int
	StrengthThreshold       float64
	MaxStrengths            int
	RecommendationThreshold float64
	MaxMissingSkills        int
	MaxRecommendations      int

	Logger *log.Logger
}

// ComponentOpt 组件选项类型，仅改变 Components 结构体内的字段
type ComponentOpt func(*Components)

// SettingOpt 设置选项类型，仅改变 Settings 结构体内的字段
type SettingOpt func(*Settings)

// DefaultSettings 返回与默认配置一致的设置
func DefaultSettings() *Settings {
	return &Settings{
		MaxDocumentBytes:        16 << 20,
		MinJDChars:              20,
		MaxTokens:               5000,
		EnhanceTimeout:          60 * time.Second,
		Stemming:                true,
		UseIDF:                  true,
		MinKeywordLength:        3,
		Weights:                 scoring.DefaultWeights,
		TopKeywords:             20,
		StrengthThreshold:       70,
		MaxStrengths:            3,
		RecommendationThreshold: 60,
		MaxMissingSkills:        5,
		MaxRecommendations:      8,
		Logger:                  log.New(io.Discard, "", 0),
	}
}

// SettingsFromConfig 把配置文件中的 limits/scoring/enhancer 段落转换为设置
func SettingsFromConfig(cfg *config.Config) *Settings {
	s := DefaultSettings()
	if cfg == nil {
		return s
	}
	s.MaxDocumentBytes = cfg.MaxDocumentBytes()
	s.MinJDChars = cfg.Limits.MinJDChars
	s.MaxTokens = cfg.Limits.MaxTokens
	s.EnhanceTimeout = config.GetDuration(cfg.Enhancer.Timeout, s.EnhanceTimeout)

	sc := cfg.Scoring
	s.Stemming = sc.Stemming
	s.UseIDF = sc.UseIDF
	s.MinKeywordLength = sc.MinKeywordLength
	s.Weights = scoring.Weights{
		Semantic:   sc.Weights.Semantic,
		Skills:     sc.Weights.Skills,
		Experience: sc.Weights.Experience,
		Education:  sc.Weights.Education,
		Keywords:   sc.Weights.Keywords,
	}
	s.TopKeywords = sc.TopKeywords
	s.StrengthThreshold = sc.StrengthThreshold
	s.MaxStrengths = sc.MaxStrengths
	s.RecommendationThreshold = sc.RecommendationThreshold
	s.MaxMissingSkills = sc.MaxMissingSkillSuggestion
	s.MaxRecommendations = sc.MaxRecommendations
	return s
}

// ----- 组件选项 -----

// NewComponents 依次应用组件选项
func NewComponents(opts ...ComponentOpt) *Components {
	c := &Components{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithcompExtractor 设置文档提取器组件
func WithcompExtractor(extractor DocumentExtractor) ComponentOpt {
	return func(c *Components) {
		c.Extractor = extractor
	}
}

// WithcompJudge 设置语义评审组件
func WithcompJudge(judge SemanticJudge) ComponentOpt {
	return func(c *Components) {
		c.Judge = judge
	}
}

// WithcompCache 设置结果缓存组件
func WithcompCache(cache ResultCache) ComponentOpt {
	return func(c *Components) {
		c.Cache = cache
	}
}

// WithcompTaxonomy 设置技能词表
func WithcompTaxonomy(taxonomy *skills.Taxonomy) ComponentOpt {
	return func(c *Components) {
		c.Taxonomy = taxonomy
	}
}

// ----- 设置选项 -----

// WithsetLogger 设置日志记录器
func WithsetLogger(logger *log.Logger) SettingOpt {
	return func(s *Settings) {
		if logger != nil {
			s.Logger = logger
		} else {
			s.Logger = log.New(io.Discard, "", 0)
		}
	}
}

// WithsetEnhanceTimeout 设置LLM评审超时
func WithsetEnhanceTimeout(timeout time.Duration) SettingOpt {
	return func(s *Settings) {
		if timeout > 0 {
			s.EnhanceTimeout = timeout
		}
	}
}

// WithsetMaxDocumentBytes 设置文档大小上限
func WithsetMaxDocumentBytes(n int64) SettingOpt {
	return func(s *Settings) {
		if n > 0 {
			s.MaxDocumentBytes = n
		}
	}
}

// WithsetMinJDChars 设置JD最少字符数
func WithsetMinJDChars(n int) SettingOpt {
	return func(s *Settings) {
		if n >= 0 {
			s.MinJDChars = n
		}
	}
}

// WithsetWeights 设置权重表
func WithsetWeights(w scoring.Weights) SettingOpt {
	return func(s *Settings) {
		s.Weights = w
	}
}
