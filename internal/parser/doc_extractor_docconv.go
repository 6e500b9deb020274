package parser

import (
	"bytes"
	"context"
	"fmt"

	"code.sajari.com/docconv"
)

// DocconvExtractor 通过 docconv 解析旧版 Word (.doc)，依赖本机安装的 wvText/antiword
type DocconvExtractor struct{}

var _ TextExtractor = (*DocconvExtractor)(nil)

// NewDocconvExtractor 创建 .doc 解析器
func NewDocconvExtractor() *DocconvExtractor {
	return &DocconvExtractor{}
}

// ExtractTextFromBytes docconv 不接受ctx，结果通过带缓冲的通道返回，ctx结束时放弃等待
func (d *DocconvExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	type result struct {
		text string
		meta map[string]string
		err  error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("docconv 异常: %v", r)}
			}
		}()
		text, meta, err := docconv.ConvertDoc(bytes.NewReader(data))
		done <- result{text: text, meta: meta, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", nil, fmt.Errorf("docconv 解析 %s 失败: %w", uri, r.err)
		}
		meta := map[string]interface{}{
			"source_file_path": uri,
			"text_length":      len(r.text),
		}
		for k, v := range r.meta {
			meta[k] = v
		}
		return r.text, meta, nil
	}
}
