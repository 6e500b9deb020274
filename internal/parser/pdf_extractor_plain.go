package parser

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	lpdf "github.com/ledongthuc/pdf"
)

// PlainPDFExtractor 基于 ledongthuc/pdf 的纯Go解析器，逐页读取纯文本
type PlainPDFExtractor struct {
	logger *log.Logger
}

var _ TextExtractor = (*PlainPDFExtractor)(nil)

// NewPlainPDFExtractor 创建解析器
func NewPlainPDFExtractor(logger *log.Logger) *PlainPDFExtractor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &PlainPDFExtractor{logger: logger}
}

// ExtractTextFromBytes 逐页提取文本，单页失败时跳过该页
func (p *PlainPDFExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (text string, meta map[string]interface{}, err error) {
	defer func() {
		// ledongthuc/pdf 在遇到损坏的交叉引用表时会panic
		if r := recover(); r != nil {
			text, meta, err = "", nil, fmt.Errorf("PDF结构损坏: %v", r)
		}
	}()

	start := time.Now()
	reader, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to read pdf: %w", err)
	}

	var sb strings.Builder
	numPages := reader.NumPage()
	skipped := 0
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			skipped++
			p.logger.Printf("跳过第 %d 页 (%s): %v", i, uri, err)
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}

	text = sb.String()
	meta = map[string]interface{}{
		"source_file_path":       uri,
		"page_count":             numPages,
		"skipped_pages":          skipped,
		"text_length":            len(text),
		"processing_duration_ms": time.Since(start).Milliseconds(),
	}
	return text, meta, nil
}
