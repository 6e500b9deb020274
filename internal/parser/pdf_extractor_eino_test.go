package parser

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"resume-scorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEinoPDFTextExtractor(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err, "创建PDF提取器不应返回错误")
	require.NotNil(t, extractor, "创建的PDF提取器不应为nil")
	require.NotNil(t, extractor.parser, "PDF提取器内部的parser不应为nil")
	require.NotNil(t, extractor.logger, "PDF提取器应该有默认的logger")

	// 测试带自定义logger的创建
	customLogger := log.New(os.Stdout, "[测试PDF提取器] ", log.LstdFlags)
	extractorWithCustomLogger, err := NewEinoPDFTextExtractor(ctx, WithEinoLogger(customLogger))
	require.NoError(t, err)
	assert.Equal(t, customLogger, extractorWithCustomLogger.logger, "应该使用提供的自定义logger")
}

const samplePDFText = "Senior Python engineer with 5 years Kubernetes"

func readSamplePDF(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "resume.pdf"))
	require.NoError(t, err)
	return data
}

func TestEinoExtractText(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	text, meta, err := extractor.ExtractTextFromBytes(ctx, readSamplePDF(t), "resume.pdf", nil)
	require.NoError(t, err)
	assert.Contains(t, text, samplePDFText)
	assert.Equal(t, "resume.pdf", meta["source_file_path"])
	assert.Equal(t, 1, meta["pdf.pages"])
}

func TestPlainPDFExtractText(t *testing.T) {
	text, meta, err := NewPlainPDFExtractor(nil).ExtractTextFromBytes(context.Background(), readSamplePDF(t), "resume.pdf", nil)
	require.NoError(t, err)
	assert.Contains(t, text, samplePDFText)
	assert.Equal(t, 1, meta["page_count"])
	assert.Equal(t, 0, meta["skipped_pages"])
}

func TestDocumentExtractorPDFEndToEnd(t *testing.T) {
	ctx := context.Background()
	einoPDF, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	for name, backend := range map[string]TextExtractor{"eino": einoPDF, "plain": NewPlainPDFExtractor(nil)} {
		t.Run(name, func(t *testing.T) {
			d := NewDocumentExtractor(WithBackend(types.FormatPDF, backend))
			text, err := d.Extract(ctx, &types.SourceDocument{Filename: "resume.pdf", Format: types.FormatPDF, Data: readSamplePDF(t)})
			require.NoError(t, err)
			assert.Contains(t, text, samplePDFText)
		})
	}
}

func TestEinoExtractFromInvalidData(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	text, meta, err := extractor.ExtractTextFromReader(ctx, bytes.NewReader([]byte("this is not a pdf")), "broken.pdf", nil)
	assert.Error(t, err, "非PDF内容应返回错误")
	assert.Empty(t, text)
	assert.Equal(t, "broken.pdf", meta["source_file_path"])
}

func TestEinoExtractFromEmptyData(t *testing.T) {
	ctx := context.Background()
	extractor, err := NewEinoPDFTextExtractor(ctx)
	require.NoError(t, err)

	_, _, err = extractor.ExtractTextFromBytes(ctx, nil, "empty.pdf", nil)
	assert.Error(t, err, "空字节应返回错误")
}

func TestPlainPDFExtractFromInvalidData(t *testing.T) {
	extractor := NewPlainPDFExtractor(nil)

	text, _, err := extractor.ExtractTextFromBytes(context.Background(), []byte("%PDF-1.4 truncated"), "truncated.pdf", nil)
	assert.Error(t, err, "损坏的PDF应返回错误而不是panic")
	assert.Empty(t, text)
}
