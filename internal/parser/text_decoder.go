package parser

import (
	"context"
	"fmt"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// PlainTextDecoder 纯文本后端：识别BOM和常见编码后统一转为UTF-8
type PlainTextDecoder struct{}

var _ TextExtractor = (*PlainTextDecoder)(nil)

// NewPlainTextDecoder 创建纯文本后端
func NewPlainTextDecoder() *PlainTextDecoder {
	return &PlainTextDecoder{}
}

// ExtractTextFromBytes 有BOM时按BOM解码；合法UTF-8原样返回；否则按内容嗅探编码
func (p *PlainTextDecoder) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}

	var enc encoding.Encoding = encoding.Nop
	name := "utf-8"
	if !utf8.Valid(data) {
		var certain bool
		enc, name, certain = charset.DetermineEncoding(data, "text/plain")
		if !certain && name == "windows-1252" {
			name = "windows-1252 (guessed)"
		}
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return "", nil, fmt.Errorf("解码文本失败 (%s): %w", name, err)
	}

	meta := map[string]interface{}{
		"source_file_path": uri,
		"charset":          name,
		"text_length":      len(decoded),
	}
	return string(decoded), meta, nil
}
