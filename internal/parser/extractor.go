// Package parser 负责把上传的文档转成纯文本，并提供基于LLM的语义评审。
package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"resume-scorer/internal/types"
)

var (
	// ErrUnsupportedFormat 格式不在白名单内或没有注册对应的解析后端
	ErrUnsupportedFormat = errors.New("不支持的文档格式")
	// ErrEmptyText 解析成功但没有可用文本，例如扫描件PDF
	ErrEmptyText = errors.New("文档中没有可提取的文本")
)

// TextExtractor 单一格式的文本提取后端
type TextExtractor interface {
	// ExtractTextFromBytes 从字节数组提取文本和元数据，uri 仅用于日志和元数据
	ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error)
}

// DocumentExtractor 按声明的格式把文档分派给对应后端，并保证返回的文本非空
type DocumentExtractor struct {
	backends map[types.DocumentFormat]TextExtractor
	timeout  time.Duration
	logger   *log.Logger
}

// DocumentExtractorOption DocumentExtractor 的配置选项
type DocumentExtractorOption func(*DocumentExtractor)

// WithBackend 为某个格式注册解析后端
func WithBackend(format types.DocumentFormat, backend TextExtractor) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		if backend != nil {
			d.backends[format] = backend
		}
	}
}

// WithExtractTimeout 单个文档的解析超时
func WithExtractTimeout(timeout time.Duration) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithExtractorLogger 设置日志记录器
func WithExtractorLogger(logger *log.Logger) DocumentExtractorOption {
	return func(d *DocumentExtractor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDocumentExtractor 创建分派器，纯文本后端默认注册
func NewDocumentExtractor(opts ...DocumentExtractorOption) *DocumentExtractor {
	d := &DocumentExtractor{
		backends: map[types.DocumentFormat]TextExtractor{
			types.FormatTXT: NewPlainTextDecoder(),
		},
		timeout: 30 * time.Second,
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Supports 是否能处理该格式
func (d *DocumentExtractor) Supports(format types.DocumentFormat) bool {
	if !format.Valid() {
		return false
	}
	_, ok := d.backends[format]
	return ok
}

// Extract 提取文档文本。后端的panic会被转换为错误
func (d *DocumentExtractor) Extract(ctx context.Context, doc *types.SourceDocument) (text string, err error) {
	if doc == nil {
		return "", fmt.Errorf("文档为空")
	}
	backend, ok := d.backends[doc.Format]
	if !doc.Format.Valid() || !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, doc.Format)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Printf("解析 %s 时发生panic: %v", doc.Filename, r)
			text, err = "", fmt.Errorf("解析器异常: %v", r)
		}
	}()

	start := time.Now()
	raw, _, err := backend.ExtractTextFromBytes(ctx, doc.Data, doc.Filename, nil)
	if err != nil {
		d.logger.Printf("解析 %s (%s) 失败: %v (用时 %.2f秒)", doc.Filename, doc.Format, err, time.Since(start).Seconds())
		return "", err
	}

	text = CleanText(raw)
	if text == "" {
		return "", ErrEmptyText
	}
	d.logger.Printf("解析 %s (%s) 完成: %d 个字符 (用时 %.2f秒)", doc.Filename, doc.Format, len(text), time.Since(start).Seconds())
	return text, nil
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	blankLines      = regexp.MustCompile(`\n\s*\n+`)
)

// CleanText 去掉控制字符，合并空白，保留段落换行
func CleanText(s string) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f || r == '\uFEFF' {
			return -1
		}
		return r
	}, s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
