// analyzer 本地进程方式调用分析引擎，结果以JSON写到标准输出
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"resume-scorer/internal/config"
	"resume-scorer/internal/parser"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/storage"
	"resume-scorer/internal/textproc"
	"resume-scorer/internal/types"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// 退出码
const (
	exitOK          = 0
	exitInternal    = 1
	exitValidation  = 2
	exitUnsupported = 3
	exitExtraction  = 4
)

var (
	configPath  = pflag.StringP("config", "c", "", "配置文件路径，为空时使用默认配置")
	resumePath  = pflag.StringP("resume", "r", "", "简历文件路径 (pdf/doc/docx/txt)")
	resumeText  = pflag.String("resume-text", "", "直接传入简历文本，跳过文本提取")
	jdPath      = pflag.StringP("jd", "j", "", "JD文本文件路径")
	jdText      = pflag.String("jd-text", "", "直接传入JD文本")
	useLLM      = pflag.Bool("llm", false, "使用LLM语义评审 (需要在配置中启用 enhancer)")
	extractOnly = pflag.Bool("extract-only", false, "只提取并输出简历文本")
	viaQueue    = pflag.Bool("queue", false, "通过RabbitMQ提交给worker分析，而不是在本进程内分析")
	pretty      = pflag.Bool("pretty", false, "格式化输出JSON")
	verbose     = pflag.BoolP("verbose", "v", false, "将诊断日志写到标准错误")
	timeout     = pflag.Duration("timeout", 2*time.Minute, "整体超时")
)

func main() {
	pflag.Parse()
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
			return exitInternal
		}
		cfg = loaded
	}
	if *useLLM && !cfg.Enhancer.Enabled {
		fmt.Fprintln(os.Stderr, "警告: 配置中未启用 enhancer，将只给出基线分数")
	}

	loggerProvider := func(prefix string) *log.Logger {
		if *verbose {
			return log.New(os.Stderr, prefix, log.LstdFlags)
		}
		return log.New(io.Discard, "", 0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var doc *types.SourceDocument
	if *resumePath != "" {
		data, err := os.ReadFile(*resumePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取简历文件失败: %v\n", err)
			return exitValidation
		}
		doc = &types.SourceDocument{
			Filename: filepath.Base(*resumePath),
			Format:   types.FormatFromFilename(*resumePath),
			Data:     data,
		}
	} else if *resumeText == "" {
		fmt.Fprintln(os.Stderr, "错误: 必须提供 --resume 或 --resume-text")
		pflag.Usage()
		return exitValidation
	}

	if *extractOnly {
		return runExtract(ctx, cfg, doc, loggerProvider)
	}

	jd := *jdText
	if *jdPath != "" {
		data, err := os.ReadFile(*jdPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "读取JD文件失败: %v\n", err)
			return exitValidation
		}
		jd = string(data)
	}

	if *viaQueue {
		return runQueue(ctx, cfg, doc, jd)
	}

	var db *storage.MySQL
	if cfg.Taxonomy.Source == "mysql" {
		st, err := storage.NewStorage(ctx, cfg, storage.Options{WithMySQL: true})
		if err != nil {
			fmt.Fprintf(os.Stderr, "连接技能词表数据库失败: %v\n", err)
			return exitInternal
		}
		defer st.Close()
		db = st.MySQL
	}
	taxonomy, err := storage.LoadTaxonomy(ctx, cfg.Taxonomy, db, textproc.NewNormalizer(textproc.WithStemming(cfg.Scoring.Stemming)))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载技能词表失败: %v\n", err)
		return exitInternal
	}

	engine, err := processor.NewEngineFromConfig(ctx, cfg, taxonomy, nil, loggerProvider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化分析引擎失败: %v\n", err)
		return exitInternal
	}

	opts := types.AnalysisOptions{UseEnhancement: *useLLM}
	var result *types.AnalysisResult
	if doc != nil {
		result, err = engine.Submit(ctx, doc, jd, opts)
	} else {
		result, err = engine.AnalyzeText(ctx, *resumeText, jd, opts)
	}
	if err != nil {
		writeJSON(map[string]string{
			"error":   string(processor.KindOf(err)),
			"message": processor.PublicMessage(err),
		})
		if *verbose {
			fmt.Fprintf(os.Stderr, "分析失败: %v\n", err)
		}
		return exitCodeFor(processor.KindOf(err))
	}
	writeJSON(result)
	return exitOK
}

func runQueue(ctx context.Context, cfg *config.Config, doc *types.SourceDocument, jd string) int {
	st, err := storage.NewStorage(ctx, cfg, storage.Options{WithRabbitMQ: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "连接RabbitMQ失败: %v\n", err)
		return exitInternal
	}
	defer st.Close()

	req := &storage.AnalysisRequestMessage{JobDescription: jd, UseLLM: *useLLM}
	if doc != nil {
		req.Filename = doc.Filename
		req.Format = string(doc.Format)
		req.Document = doc.Data
	} else {
		req.ResumeText = *resumeText
	}

	reply, err := st.RabbitMQ.Call(ctx, cfg.RabbitMQ.RequestQueue, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "等待worker回复失败: %v\n", err)
		return exitInternal
	}
	if reply.Failed() {
		writeJSON(map[string]string{"error": reply.ErrorKind, "message": reply.Error})
		return exitCodeFor(processor.ErrorKind(reply.ErrorKind))
	}
	writeJSON(reply.Result)
	return exitOK
}

func runExtract(ctx context.Context, cfg *config.Config, doc *types.SourceDocument, loggerProvider func(string) *log.Logger) int {
	if doc == nil {
		fmt.Println(parser.CleanText(*resumeText))
		return exitOK
	}
	if err := checkDocumentSize(cfg, doc); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", processor.PublicMessage(err))
		return exitCodeFor(processor.KindOf(err))
	}
	extractor, err := processor.BuildDocumentExtractor(ctx, cfg, loggerProvider)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建文档提取器失败: %v\n", err)
		return exitInternal
	}

	start := time.Now()
	text, err := extractor.Extract(ctx, doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "提取文本失败: %v\n", err)
		return exitExtraction
	}
	if *verbose {
		fmt.Fprintf(os.Stderr, "提取完成，%d 字符，耗时 %v\n", len([]rune(text)), time.Since(start))
	}
	fmt.Println(text)
	return exitOK
}

// checkDocumentSize 与 Engine.Submit 使用同一上限，在解析前拒绝过大的文件
func checkDocumentSize(cfg *config.Config, doc *types.SourceDocument) error {
	if size, limit := int64(len(doc.Data)), cfg.MaxDocumentBytes(); size > limit {
		return processor.NewDocumentTooLargeError(size, limit)
	}
	return nil
}

func exitCodeFor(kind processor.ErrorKind) int {
	switch kind {
	case processor.KindValidation:
		return exitValidation
	case processor.KindUnsupportedFormat:
		return exitUnsupported
	case processor.KindExtraction:
		return exitExtraction
	default:
		return exitInternal
	}
}

func writeJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "输出JSON失败: %v\n", err)
	}
}
