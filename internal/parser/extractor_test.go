package parser

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"resume-scorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	text  string
	err   error
	panic bool
	delay time.Duration
}

func (f *fakeBackend) ExtractTextFromBytes(ctx context.Context, data []byte, uri string, options interface{}) (string, map[string]interface{}, error) {
	if f.panic {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", nil, ctx.Err()
		}
	}
	return f.text, nil, f.err
}

func TestDocumentExtractorDispatch(t *testing.T) {
	d := NewDocumentExtractor(WithBackend(types.FormatPDF, &fakeBackend{text: "  Senior   Go\r\nEngineer \n\n\n\nKubernetes  "}))

	text, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "cv.pdf", Format: types.FormatPDF, Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, "Senior Go\nEngineer\n\nKubernetes", text)

	assert.True(t, d.Supports(types.FormatPDF))
	assert.True(t, d.Supports(types.FormatTXT), "纯文本后端默认注册")
	assert.False(t, d.Supports(types.FormatDOCX))
	assert.False(t, d.Supports(types.DocumentFormat("exe")))
}

func TestDocumentExtractorUnsupportedFormat(t *testing.T) {
	d := NewDocumentExtractor()

	_, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "cv.docx", Format: types.FormatDOCX, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "未注册后端的格式")

	_, err = d.Extract(context.Background(), &types.SourceDocument{Filename: "cv.rtf", Format: types.DocumentFormat("rtf"), Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFormat, "白名单外的格式")

	_, err = d.Extract(context.Background(), nil)
	assert.Error(t, err)
}

func TestDocumentExtractorEmptyText(t *testing.T) {
	d := NewDocumentExtractor(WithBackend(types.FormatPDF, &fakeBackend{text: " \n\t \x00 "}))

	_, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "scan.pdf", Format: types.FormatPDF, Data: []byte("x")})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestDocumentExtractorBackendFailure(t *testing.T) {
	backendErr := errors.New("corrupt xref")
	d := NewDocumentExtractor(WithBackend(types.FormatPDF, &fakeBackend{err: backendErr}))

	_, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "bad.pdf", Format: types.FormatPDF, Data: []byte("x")})
	assert.ErrorIs(t, err, backendErr)
}

func TestDocumentExtractorRecoversPanic(t *testing.T) {
	d := NewDocumentExtractor(WithBackend(types.FormatDOC, &fakeBackend{panic: true}))

	assert.NotPanics(t, func() {
		_, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "legacy.doc", Format: types.FormatDOC, Data: []byte("x")})
		assert.Error(t, err)
	})
}

func TestDocumentExtractorTimeout(t *testing.T) {
	d := NewDocumentExtractor(
		WithBackend(types.FormatPDF, &fakeBackend{text: "late", delay: time.Second}),
		WithExtractTimeout(20*time.Millisecond),
	)

	_, err := d.Extract(context.Background(), &types.SourceDocument{Filename: "slow.pdf", Format: types.FormatPDF, Data: []byte("x")})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCleanText(t *testing.T) {
	cases := map[string]string{
		"":                          "",
		"\uFEFFHello world":         "Hello world",
		"a\r\nb\rc":                 "a\nb\nc",
		"line one  \n   line two":   "line one\nline two",
		"p1\n\n\n   \n\np2":         "p1\n\np2",
		"tab\tseparated\x07 value ": "tab separated value",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanText(in), "输入 %q", in)
	}
}

func TestPlainTextDecoder(t *testing.T) {
	dec := NewPlainTextDecoder()
	ctx := context.Background()

	text, _, err := dec.ExtractTextFromBytes(ctx, []byte("Go developer · Kubernetes"), "cv.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "Go developer · Kubernetes", text)

	text, _, err = dec.ExtractTextFromBytes(ctx, append([]byte{0xEF, 0xBB, 0xBF}, []byte("with bom")...), "bom.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "with bom", text)

	// Latin-1 编码的 "café résumé"
	latin1 := []byte{'c', 'a', 'f', 0xE9, ' ', 'r', 0xE9, 's', 'u', 'm', 0xE9}
	text, _, err = dec.ExtractTextFromBytes(ctx, latin1, "latin1.txt", nil)
	require.NoError(t, err)
	assert.Equal(t, "café résumé", text)
}

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/></Types>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			body + `</w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDocxExtractor(t *testing.T) {
	data := buildDocx(t, `<w:p><w:r><w:t>Jane Doe</w:t></w:r></w:p><w:p><w:r><w:t>Skills:</w:t><w:tab/><w:t>Go &amp; Python</w:t></w:r></w:p>`)

	text, meta, err := NewDocxExtractor().ExtractTextFromBytes(context.Background(), data, "cv.docx", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Jane Doe\n")
	assert.Contains(t, text, "Skills:\tGo & Python")
	assert.Equal(t, "cv.docx", meta["source_file_path"])
}

func TestDocxExtractorInvalidArchive(t *testing.T) {
	_, _, err := NewDocxExtractor().ExtractTextFromBytes(context.Background(), []byte("not a zip"), "bad.docx", nil)
	assert.Error(t, err)
}

func TestDocconvExtractorReadsMislabelledDocx(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
			`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:r><w:t>Senior Python engineer</w:t></w:r></w:p></w:body></w:document>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	// 另存为 .doc 的 docx 在 wvText 无输出时由 docconv 按 docx 解析
	text, meta, err := NewDocconvExtractor().ExtractTextFromBytes(context.Background(), buf.Bytes(), "cv.doc", nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Senior Python engineer")
	assert.Equal(t, "cv.doc", meta["source_file_path"])
}

func TestDocconvExtractorInvalidData(t *testing.T) {
	_, _, err := NewDocconvExtractor().ExtractTextFromBytes(context.Background(), []byte("neither doc nor docx"), "broken.doc", nil)
	assert.Error(t, err)
}

func TestDocxXMLToText(t *testing.T) {
	in := `<w:p><w:r><w:t>A</w:t><w:br/><w:t>B &lt;C&gt;</w:t></w:r></w:p>`
	assert.Equal(t, "A\nB <C>", DocxXMLToText(in))
}

func TestTikaExtractor(t *testing.T) {
	var gotContentType, gotResource string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "DOCBYTES", string(body))
		switch r.URL.Path {
		case "/tika":
			gotContentType = r.Header.Get("Content-Type")
			gotResource = r.Header.Get("X-Tika-Resource-Name")
			_, _ = w.Write([]byte("Extracted resume text"))
		case "/meta":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"xmpTPg:NPages":"2","X-Parsed-By":"org.apache.tika.parser.DefaultParser"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	extractor := NewTikaExtractor(server.URL+"/", types.FormatDOC, WithTimeout(5*time.Second))
	text, meta, err := extractor.ExtractTextFromBytes(context.Background(), []byte("DOCBYTES"), "cv.doc", nil)
	require.NoError(t, err)
	assert.Equal(t, "Extracted resume text", text)
	assert.Equal(t, "application/msword", gotContentType)
	assert.Equal(t, "cv.doc", gotResource)
	assert.Equal(t, "2", meta["xmpTPg:NPages"], "精简模式保留关键元数据")
	assert.NotContains(t, meta, "X-Parsed-By", "精简模式过滤非关键元数据")

	full := NewTikaExtractor(server.URL, types.FormatDOC, WithMetadataMode(MetadataFull))
	_, meta, err = full.ExtractTextFromBytes(context.Background(), []byte("DOCBYTES"), "cv.doc", nil)
	require.NoError(t, err)
	assert.Contains(t, meta, "X-Parsed-By")
}

func TestTikaExtractorServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	extractor := NewTikaExtractor(server.URL, types.FormatPDF, WithMetadataMode(MetadataNone))
	_, _, err := extractor.ExtractTextFromBytes(context.Background(), []byte("DOCBYTES"), "cv.pdf", nil)
	assert.Error(t, err)
}
