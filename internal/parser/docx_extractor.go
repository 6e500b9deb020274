package parser

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/nguyenthenguyen/docx"
)

var (
	docxParagraphEnd = regexp.MustCompile(`</w:p>|<w:br\s*/>|<w:cr\s*/>`)
	docxTab          = regexp.MustCompile(`<w:tab\s*/>`)
	xmlTag           = regexp.MustCompile(`<[^>]+>`)
)

// DocxExtractor 读取 word/document.xml 并去掉标记，段落转为换行
type DocxExtractor struct{}

var _ TextExtractor = (*DocxExtractor)(nil)

// NewDocxExtractor 创建DOCX解析器
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

// ExtractTextFromBytes 从DOCX字节提取正文文本
func (d *DocxExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	text := DocxXMLToText(doc.Editable().GetContent())
	return text, map[string]interface{}{
		"source_file_path": uri,
		"text_length":      len(text),
	}, nil
}

// DocxXMLToText 把 WordprocessingML 正文转换为纯文本
func DocxXMLToText(content string) string {
	content = docxParagraphEnd.ReplaceAllString(content, "\n")
	content = docxTab.ReplaceAllString(content, "\t")
	content = xmlTag.ReplaceAllString(content, "")
	return strings.TrimSpace(html.UnescapeString(content))
}
