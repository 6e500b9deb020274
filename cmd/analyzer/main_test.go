package main

import (
	"bytes"
	"testing"

	"resume-scorer/internal/config"
	"resume-scorer/internal/processor"
	"resume-scorer/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDocumentSize(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxDocumentMB = 1

	small := &types.SourceDocument{Filename: "cv.pdf", Format: types.FormatPDF, Data: bytes.Repeat([]byte("x"), 1<<20)}
	assert.NoError(t, checkDocumentSize(cfg, small))

	big := &types.SourceDocument{Filename: "cv.pdf", Format: types.FormatPDF, Data: bytes.Repeat([]byte("x"), 1<<20+1)}
	err := checkDocumentSize(cfg, big)
	require.Error(t, err)
	assert.ErrorIs(t, err, processor.ErrDocumentTooLarge)
	assert.Equal(t, exitValidation, exitCodeFor(processor.KindOf(err)))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, exitValidation, exitCodeFor(processor.KindValidation))
	assert.Equal(t, exitUnsupported, exitCodeFor(processor.KindUnsupportedFormat))
	assert.Equal(t, exitExtraction, exitCodeFor(processor.KindExtraction))
	assert.Equal(t, exitInternal, exitCodeFor(processor.KindInternal))
	assert.Equal(t, exitInternal, exitCodeFor(processor.ErrorKind("unknown")))
}
