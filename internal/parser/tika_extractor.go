package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"resume-scorer/internal/types"
)

// tikaContentTypes 各格式提交给Tika时的Content-Type
var tikaContentTypes = map[types.DocumentFormat]string{
	types.FormatPDF:  "application/pdf",
	types.FormatDOC:  "application/msword",
	types.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	types.FormatTXT:  "text/plain",
}

// MetadataMode 控制文本之外额外请求 /meta 时保留哪些字段
type MetadataMode string

const (
	MetadataNone    MetadataMode = "none"
	MetadataMinimal MetadataMode = "minimal"
	MetadataFull    MetadataMode = "full"
)

// minimalMetadataKeys minimal 模式下保留的字段
var minimalMetadataKeys = map[string]struct{}{
	"xmpTPg:NPages":       {},
	"meta:page-count":     {},
	"meta:word-count":     {},
	"dc:title":            {},
	"dcterms:created":     {},
	"language":            {},
	"Content-Type":        {},
	"pdf:PDFVersion":      {},
	"pdf:docinfo:created": {},
}

// TikaExtractor 通过Apache Tika服务提取文本，一个实例只处理一种格式
type TikaExtractor struct {
	ServerURL string
	Client    *http.Client

	format   types.DocumentFormat
	metadata MetadataMode
	logger   *log.Logger
}

var _ TextExtractor = (*TikaExtractor)(nil)

type TikaOption func(*TikaExtractor)

// WithMetadataMode 未知取值按 minimal 处理
func WithMetadataMode(mode MetadataMode) TikaOption {
	return func(e *TikaExtractor) {
		switch mode {
		case MetadataNone, MetadataFull:
			e.metadata = mode
		default:
			e.metadata = MetadataMinimal
		}
	}
}

func WithTikaLogger(logger *log.Logger) TikaOption {
	return func(e *TikaExtractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTimeout HTTP客户端超时
func WithTimeout(timeout time.Duration) TikaOption {
	return func(e *TikaExtractor) {
		if timeout > 0 {
			e.Client.Timeout = timeout
		}
	}
}

func NewTikaExtractor(serverURL string, format types.DocumentFormat, options ...TikaOption) *TikaExtractor {
	extractor := &TikaExtractor{
		ServerURL: strings.TrimRight(serverURL, "/"),
		Client:    &http.Client{Timeout: 60 * time.Second},
		format:    format,
		metadata:  MetadataMinimal,
		logger:    log.New(io.Discard, "", 0),
	}
	for _, option := range options {
		option(extractor)
	}
	return extractor
}

// ExtractTextFromBytes PUT /tika 取纯文本；元数据请求失败只记日志
func (e *TikaExtractor) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	start := time.Now()
	meta := map[string]interface{}{
		"source_file_path": uri,
		"format":           string(e.format),
	}

	body, err := e.put(ctx, "/tika", data, uri, "text/plain")
	if err != nil {
		return "", meta, err
	}
	text := string(body)
	meta["text_length"] = len(text)
	meta["elapsed_ms"] = time.Since(start).Milliseconds()

	if e.metadata == MetadataNone {
		return text, meta, nil
	}
	extra, err := e.fetchMetadata(ctx, data, uri)
	if err != nil {
		e.logger.Printf("获取 %s 的Tika元数据失败: %v", uri, err)
		return text, meta, nil
	}
	for k, v := range extra {
		if _, keep := minimalMetadataKeys[k]; keep || e.metadata == MetadataFull {
			meta[k] = v
		}
	}
	return text, meta, nil
}

func (e *TikaExtractor) fetchMetadata(ctx context.Context, data []byte, uri string) (map[string]interface{}, error) {
	body, err := e.put(ctx, "/meta", data, uri, "application/json")
	if err != nil {
		return nil, err
	}
	var metadata map[string]interface{}
	if err := json.Unmarshal(body, &metadata); err != nil {
		return nil, fmt.Errorf("解析Tika元数据失败: %w", err)
	}
	return metadata, nil
}

func (e *TikaExtractor) put(ctx context.Context, path string, data []byte, uri, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.ServerURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("创建Tika请求失败: %w", err)
	}
	if ct, ok := tikaContentTypes[e.format]; ok {
		req.Header.Set("Content-Type", ct)
	}
	req.Header.Set("Accept", accept)
	if uri != "" {
		req.Header.Set("X-Tika-Resource-Name", uri)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求Tika服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tika %s 返回状态码 %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取Tika响应失败: %w", err)
	}
	return body, nil
}
