package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	einoParser "github.com/cloudwego/eino/components/document/parser"
)

// EinoPDFTextExtractor 基于 eino-ext 的PDF解析器，按页解析后拼接为一段简历文本
type EinoPDFTextExtractor struct {
	parser *pdf.PDFParser
	logger *log.Logger
}

var _ TextExtractor = (*EinoPDFTextExtractor)(nil)

// EinoPDFOption PDF提取器的配置选项
type EinoPDFOption func(*EinoPDFTextExtractor)

// WithEinoLogger 配置自定义日志记录器
func WithEinoLogger(logger *log.Logger) EinoPDFOption {
	return func(e *EinoPDFTextExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func NewEinoPDFTextExtractor(ctx context.Context, options ...EinoPDFOption) (*EinoPDFTextExtractor, error) {
	p, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("创建PDF解析器失败: %w", err)
	}

	extractor := &EinoPDFTextExtractor{
		parser: p,
		logger: log.New(io.Discard, "", 0),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor, nil
}

func (e *EinoPDFTextExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	if len(data) == 0 {
		return "", map[string]interface{}{"source_file_path": uri}, errors.New("PDF内容为空")
	}
	return e.ExtractTextFromReader(ctx, bytes.NewReader(data), uri, options)
}

// ExtractTextFromReader 页与页之间用空行分隔，空白页跳过
func (e *EinoPDFTextExtractor) ExtractTextFromReader(ctx context.Context, reader io.Reader, uri string, _ interface{}) (string, map[string]interface{}, error) {
	meta := map[string]interface{}{"source_file_path": uri}

	start := time.Now()
	pages, err := e.parser.Parse(ctx, reader, einoParser.WithURI(uri))
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Printf("解析PDF %s 失败 (用时 %v): %v", uri, elapsed, err)
		return "", meta, fmt.Errorf("解析PDF %s 失败: %w", uri, err)
	}

	var sb strings.Builder
	nonEmpty := 0
	for _, page := range pages {
		if page == nil || strings.TrimSpace(page.Content) == "" {
			continue
		}
		if nonEmpty > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Content)
		nonEmpty++
	}
	text := sb.String()

	meta["pdf.pages"] = len(pages)
	meta["pdf.text_pages"] = nonEmpty
	meta["elapsed_ms"] = elapsed.Milliseconds()

	e.logger.Printf("PDF %s 解析完成: %d 页, %d 个字符, 用时 %v", uri, len(pages), len(text), elapsed)
	return text, meta, nil
}
