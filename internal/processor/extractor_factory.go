package processor

import (
	"context"
	"fmt"
	"log"
	"time"

	"resume-scorer/internal/agent"
	"resume-scorer/internal/config"
	"resume-scorer/internal/parser"
	"resume-scorer/internal/skills"
	"resume-scorer/internal/types"
)

// BuildDocumentExtractor 统一构建文档解析器的逻辑，按配置为每种格式选择后端
func BuildDocumentExtractor(ctx context.Context, cfg *config.Config, loggerProvider func(prefix string) *log.Logger) (*parser.DocumentExtractor, error) {
	initLogger := loggerProvider("[ExtractorInit] ")

	var pdfBackend parser.TextExtractor
	switch cfg.Extractor.PDFEngine {
	case "plain":
		initLogger.Println("使用 ledongthuc/pdf 作为PDF解析器")
		pdfBackend = parser.NewPlainPDFExtractor(loggerProvider("[PlainPDF] "))
	case "tika":
		initLogger.Println("使用Tika作为PDF解析器")
		pdfBackend = newTikaBackend(cfg, types.FormatPDF, loggerProvider)
	default:
		initLogger.Println("使用Eino作为PDF解析器")
		einoExtractor, err := parser.NewEinoPDFTextExtractor(ctx, parser.WithEinoLogger(loggerProvider("[EinoPDF] ")))
		if err != nil {
			return nil, fmt.Errorf("创建Eino PDF提取器失败: %w", err)
		}
		pdfBackend = einoExtractor
	}

	var docBackend parser.TextExtractor
	if cfg.Extractor.DOCEngine == "tika" && cfg.Tika.ServerURL != "" {
		initLogger.Println("检测到Tika配置，.doc 文件交给Tika解析")
		docBackend = newTikaBackend(cfg, types.FormatDOC, loggerProvider)
	} else {
		initLogger.Println("未配置Tika，.doc 文件使用docconv解析")
		docBackend = parser.NewDocconvExtractor()
	}

	return parser.NewDocumentExtractor(
		parser.WithBackend(types.FormatPDF, pdfBackend),
		parser.WithBackend(types.FormatDOC, docBackend),
		parser.WithBackend(types.FormatDOCX, parser.NewDocxExtractor()),
		parser.WithBackend(types.FormatTXT, parser.NewPlainTextDecoder()),
		parser.WithExtractTimeout(config.GetDuration(cfg.Extractor.Timeout, 30*time.Second)),
		parser.WithExtractorLogger(loggerProvider("[Extractor] ")),
	), nil
}

func newTikaBackend(cfg *config.Config, format types.DocumentFormat, loggerProvider func(prefix string) *log.Logger) *parser.TikaExtractor {
	tikaOptions := []parser.TikaOption{parser.WithMetadataMode(parser.MetadataMode(cfg.Tika.MetadataMode))}
	if cfg.Tika.Timeout > 0 {
		tikaOptions = append(tikaOptions, parser.WithTimeout(time.Duration(cfg.Tika.Timeout)*time.Second))
	}
	tikaOptions = append(tikaOptions, parser.WithTikaLogger(loggerProvider("[Tika] ")))
	return parser.NewTikaExtractor(cfg.Tika.ServerURL, format, tikaOptions...)
}

// BuildSemanticJudge 启用语义增强时创建LLM评审器，未启用时返回nil
func BuildSemanticJudge(ctx context.Context, cfg *config.Config, loggerProvider func(prefix string) *log.Logger) (SemanticJudge, error) {
	if !cfg.Enhancer.Enabled {
		return nil, nil
	}
	chatModel, err := agent.NewChatModel(ctx, cfg.Enhancer, loggerProvider("[LLM] "))
	if err != nil {
		return nil, fmt.Errorf("创建语义评审模型失败: %w", err)
	}
	return parser.NewLLMSemanticJudge(chatModel,
		parser.WithJudgeModelName(cfg.Enhancer.Model),
		parser.WithJudgeTemperature(cfg.Enhancer.Temperature),
		parser.WithJudgeMaxTokens(cfg.Enhancer.MaxTokens),
		parser.WithJudgeMaxInputChars(cfg.Enhancer.MaxInputChars),
		parser.WithJudgeLogger(loggerProvider("[SemanticJudge] ")),
	), nil
}

// NewEngineFromConfig 按配置组装提取器、语义评审器和引擎；taxonomy 与 cache 可为nil
func NewEngineFromConfig(ctx context.Context, cfg *config.Config, taxonomy *skills.Taxonomy, cache ResultCache, loggerProvider func(prefix string) *log.Logger) (*Engine, error) {
	extractor, err := BuildDocumentExtractor(ctx, cfg, loggerProvider)
	if err != nil {
		return nil, err
	}
	judge, err := BuildSemanticJudge(ctx, cfg, loggerProvider)
	if err != nil {
		return nil, err
	}

	compOpts := []ComponentOpt{WithcompExtractor(extractor), WithcompTaxonomy(taxonomy)}
	if judge != nil {
		compOpts = append(compOpts, WithcompJudge(judge))
	}
	if cache != nil {
		compOpts = append(compOpts, WithcompCache(cache))
	}
	return NewEngine(NewComponents(compOpts...), SettingsFromConfig(cfg), WithsetLogger(loggerProvider("[Engine] ")))
}
