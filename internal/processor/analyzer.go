// Package processor 串联文本提取、分词、实体抽取、相似度、打分和建议生成，对外提供单一的分析入口。
package processor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"resume-scorer/internal/constants"
	"resume-scorer/internal/parser"
	"resume-scorer/internal/scoring"
	"resume-scorer/internal/skills"
	"resume-scorer/internal/textproc"
	"resume-scorer/internal/tracing"
	"resume-scorer/internal/types"
	"resume-scorer/pkg/utils"

	"github.com/gofrs/uuid/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("resume-scorer/processor")

// Engine 分析引擎。除只读词表外不保存任何请求间状态，可被多个goroutine并发调用
type Engine struct {
	components Components
	settings   Settings

	normalizer  *textproc.Normalizer
	entities    *skills.Extractor
	similarity  *scoring.SimilarityScorer
	scorer      *scoring.ComponentScorer
	recommender *scoring.Recommender
	logger      *log.Logger
}

var _ Analyzer = (*Engine)(nil)

// NewEngine 创建分析引擎，词表为空时加载内置词表
func NewEngine(comp *Components, set *Settings, opts ...SettingOpt) (*Engine, error) {
	if comp == nil {
		comp = &Components{}
	}
	if set == nil {
		set = DefaultSettings()
	}
	for _, opt := range opts {
		opt(set)
	}
	if set.Logger == nil {
		WithsetLogger(nil)(set)
	}

	normalizer := textproc.NewNormalizer(
		textproc.WithStemming(set.Stemming),
		textproc.WithMaxTokens(set.MaxTokens),
	)

	taxonomy := comp.Taxonomy
	if taxonomy == nil {
		var err error
		taxonomy, err = skills.DefaultTaxonomy(normalizer)
		if err != nil {
			return nil, fmt.Errorf("加载内置技能词表失败: %w", err)
		}
	}

	e := &Engine{
		components: *comp,
		settings:   *set,
		normalizer: normalizer,
		entities:   skills.NewExtractor(taxonomy, skills.WithMinKeywordLength(set.MinKeywordLength)),
		similarity: scoring.NewSimilarityScorer(scoring.WithIDF(set.UseIDF)),
		scorer: scoring.NewComponentScorer(
			scoring.WithWeights(set.Weights),
			scoring.WithTopKeywords(set.TopKeywords),
		),
		recommender: scoring.NewRecommender(
			scoring.WithStrengthThreshold(set.StrengthThreshold),
			scoring.WithMaxStrengths(set.MaxStrengths),
			scoring.WithRecommendationThreshold(set.RecommendationThreshold),
			scoring.WithMaxMissingSkills(set.MaxMissingSkills),
			scoring.WithMaxRecommendations(set.MaxRecommendations),
		),
		logger: set.Logger,
	}
	e.components.Taxonomy = taxonomy

	if e.components.Extractor == nil {
		e.logger.Println("警告: 未配置文档提取器，只能使用 AnalyzeText")
	}
	return e, nil
}

// Taxonomy 返回引擎共享的技能词表
func (e *Engine) Taxonomy() *skills.Taxonomy {
	return e.components.Taxonomy
}

// EnhancementAvailable 是否配置了LLM评审
func (e *Engine) EnhancementAvailable() bool {
	return e.components.Judge != nil
}

// Submit 校验并提取文档文本，然后与JD比对。文档大小在解析前检查
func (e *Engine) Submit(ctx context.Context, doc *types.SourceDocument, jobDescription string, opts types.AnalysisOptions) (*types.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.Submit", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if doc == nil || len(doc.Data) == 0 {
		err := NewValidationError("validate", "a resume document is required")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	span.SetAttributes(
		attribute.String("document.format", string(doc.Format)),
		attribute.Int("document.size", len(doc.Data)),
	)

	if size := int64(len(doc.Data)); size > e.settings.MaxDocumentBytes {
		err := NewDocumentTooLargeError(size, e.settings.MaxDocumentBytes)
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if err := e.validateJobDescription(jobDescription); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	text, err := e.extract(ctx, doc)
	if err != nil {
		tracing.RecordError(span, err, errorTypeFor(err))
		return nil, err
	}
	doc.Text = text

	fingerprint := utils.Fingerprint(constants.EngineVersion, "document", utils.CalculateSHA256(doc.Data), string(doc.Format), jobDescription)
	result, err := e.analyze(ctx, text, jobDescription, opts, fingerprint)
	if err != nil {
		tracing.RecordError(span, err, errorTypeFor(err))
		return nil, err
	}
	return result, nil
}

// AnalyzeText 跳过文本提取直接比对，用于 analyze-text 接口和命令行
func (e *Engine) AnalyzeText(ctx context.Context, resumeText, jobDescription string, opts types.AnalysisOptions) (*types.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "Engine.AnalyzeText", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	resumeText = parser.CleanText(resumeText)
	if resumeText == "" {
		err := NewValidationError("validate", "resume text is required")
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}
	if err := e.validateJobDescription(jobDescription); err != nil {
		tracing.RecordError(span, err, tracing.ErrorTypeValidation)
		return nil, err
	}

	fingerprint := utils.Fingerprint(constants.EngineVersion, "text", resumeText, jobDescription)
	result, err := e.analyze(ctx, resumeText, jobDescription, opts, fingerprint)
	if err != nil {
		tracing.RecordError(span, err, errorTypeFor(err))
		return nil, err
	}
	return result, nil
}

func (e *Engine) validateJobDescription(jd string) error {
	trimmed := strings.TrimSpace(jd)
	if trimmed == "" {
		return NewValidationError("validate", "job description is required")
	}
	if n := utf8.RuneCountInString(trimmed); n < e.settings.MinJDChars {
		return NewValidationError("validate", fmt.Sprintf("job description must be at least %d characters, got %d", e.settings.MinJDChars, n))
	}
	return nil
}

// extract 把提取器的错误映射为分析错误类别
func (e *Engine) extract(ctx context.Context, doc *types.SourceDocument) (string, error) {
	if !doc.Format.Valid() {
		return "", NewUnsupportedFormatError(string(doc.Format))
	}
	if e.components.Extractor == nil {
		return "", NewInternalError("extract", errors.New("document extractor is not configured"))
	}
	if !e.components.Extractor.Supports(doc.Format) {
		return "", NewUnsupportedFormatError(string(doc.Format))
	}

	ctx, span := tracer.Start(ctx, "Engine.extract", trace.WithAttributes(
		attribute.String("document.filename", tracing.SafeAttributeValue("document.filename", doc.Filename, tracing.DefaultMaxLength)),
		attribute.String("document.format", string(doc.Format)),
	))
	defer span.End()

	text, err := e.components.Extractor.Extract(ctx, doc)
	switch {
	case err == nil:
		span.SetAttributes(
			attribute.Int("document.text_length", len(text)),
			attribute.String("document.text_preview", tracing.SafeResumeContent(text)),
		)
		return text, nil
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return "", NewUnsupportedFormatError(string(doc.Format))
	case errors.Is(err, parser.ErrEmptyText):
		return "", NewExtractionError("no extractable text was found in the document", err)
	case errors.Is(err, context.DeadlineExceeded):
		return "", NewExtractionError("document parsing timed out", err)
	case errors.Is(err, context.Canceled):
		return "", NewInternalError("extract", err)
	default:
		e.logger.Printf("文档 %s 解析失败: %v", doc.Filename, err)
		return "", NewExtractionError("the document could not be read, it may be corrupt or password protected", err)
	}
}

// analyze 流水线主体。任何panic都转换为内部错误，不返回部分结果
func (e *Engine) analyze(ctx context.Context, resumeText, jobDescription string, opts types.AnalysisOptions, fingerprint string) (result *types.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("分析流水线panic: %v\n%s", r, debug.Stack())
			result, err = nil, NewInternalError("analyze", fmt.Errorf("panic: %v", r))
		}
	}()

	useCache := e.components.Cache != nil && !opts.UseEnhancement
	cacheKey := fmt.Sprintf(constants.KeyAnalysisResult, fingerprint)
	if useCache {
		cached, cacheErr := e.components.Cache.GetResult(ctx, cacheKey)
		if cacheErr != nil {
			e.logger.Printf("读取结果缓存失败: %v", cacheErr)
		} else if cached != nil {
			return cached, nil
		}
	}

	resumeModel := e.normalizer.Tokenize(resumeText)
	jdModel := e.normalizer.Tokenize(jobDescription)
	if resumeModel.Truncated() || jdModel.Truncated() {
		e.logger.Printf("文本超过 %d 个token，超出部分不参与评分", e.settings.MaxTokens)
	}
	resumeProfile := e.entities.Extract(resumeModel, resumeText)
	jdProfile := e.entities.Extract(jdModel, jobDescription)

	semantic := e.similarity.Score(resumeModel, jdModel)
	method := types.MethodBaseline
	var judgement *types.SemanticJudgement

	if opts.UseEnhancement {
		var enhanceErr error
		judgement, enhanceErr = e.enhance(ctx, resumeText, jobDescription)
		if enhanceErr != nil {
			e.logger.Printf("语义增强不可用，使用基线分数 %.1f: %v", semantic, enhanceErr)
			judgement = nil
		} else {
			semantic = judgement.Score
			method = types.MethodEnhanced
		}
	}

	assessment := e.scorer.Assess(resumeProfile, jdProfile, semantic)
	feedback := e.recommender.Generate(assessment, resumeProfile, jdProfile)
	var commentary string
	if judgement != nil {
		feedback = e.recommender.MergeJudgement(feedback, judgement.KeyStrengths, judgement.ImprovementAreas)
		commentary = judgement.Rationale
	}

	result = &types.AnalysisResult{
		AnalysisID:         uuid.NewV5(constants.AnalysisNamespace, fingerprint).String(),
		ScoreBreakdown:     assessment.Scores,
		MatchedSkills:      assessment.MatchedSkills,
		MissingSkills:      assessment.MissingSkills,
		Recommendations:    feedback.Recommendations,
		Strengths:          feedback.Strengths,
		AnalysisMethod:     method,
		SemanticCommentary: commentary,
		LLMAnalysis:        judgement,
	}

	if useCache {
		if cacheErr := e.components.Cache.SetResult(ctx, cacheKey, result); cacheErr != nil {
			e.logger.Printf("写入结果缓存失败: %v", cacheErr)
		}
	}
	return result, nil
}

// enhance 让LLM评审与计时器赛跑。超时或失败都返回 EnhancementUnavailable，调用方据此回退到基线分数
func (e *Engine) enhance(ctx context.Context, resumeText, jobDescription string) (*types.SemanticJudgement, error) {
	if e.components.Judge == nil {
		return nil, NewEnhancementUnavailableError(errors.New("no semantic judge configured"))
	}

	ctx, span := tracer.Start(ctx, "Engine.enhance")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.settings.EnhanceTimeout)
	defer cancel()

	type outcome struct {
		judgement *types.SemanticJudgement
		err       error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("semantic judge panic: %v", r)}
			}
		}()
		j, err := e.components.Judge.Judge(ctx, resumeText, jobDescription)
		done <- outcome{judgement: j, err: err}
	}()

	var err error
	select {
	case <-ctx.Done():
		err = NewEnhancementUnavailableError(ctx.Err())
	case o := <-done:
		switch {
		case o.err != nil:
			err = NewEnhancementUnavailableError(o.err)
		case o.judgement == nil || math.IsNaN(o.judgement.Score) || o.judgement.Score < 0 || o.judgement.Score > 100:
			err = NewEnhancementUnavailableError(errors.New("semantic judge returned an invalid score"))
		default:
			span.SetAttributes(attribute.Float64("enhancement.score", o.judgement.Score))
			return o.judgement, nil
		}
	}

	tracing.RecordError(span, err, tracing.ErrorTypeEnhancement)
	return nil, err
}

func errorTypeFor(err error) tracing.ErrorType {
	switch KindOf(err) {
	case KindValidation:
		return tracing.ErrorTypeValidation
	case KindUnsupportedFormat:
		return tracing.ErrorTypeUnsupportedFormat
	case KindExtraction:
		return tracing.ErrorTypeExtraction
	case KindEnhancementUnavailable:
		return tracing.ErrorTypeEnhancement
	default:
		return tracing.ErrorTypeInternal
	}
}
