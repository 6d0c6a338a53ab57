package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_ExtractText(t *testing.T) {
	ctx := context.Background()
	extractor := NewExtractor()

	t.Run("プレーンテキストはそのまま返る", func(t *testing.T) {
		text, err := extractor.ExtractText(ctx, []byte("Hello world.\n"), "text/plain")
		require.NoError(t, err)
		assert.Equal(t, "Hello world.\n", text)
	})

	t.Run("UTF-8でないデータはエラーになる", func(t *testing.T) {
		_, err := extractor.ExtractText(ctx, []byte{0xff, 0xfe, 0x00, 0x12}, "text/plain")
		assert.Error(t, err)
	})

	t.Run("壊れたPDFはエラーになる", func(t *testing.T) {
		_, err := extractor.ExtractText(ctx, []byte("%PDF-1.7 broken"), "application/pdf")
		assert.Error(t, err)
	})

	t.Run("MIMEヒントがなくてもマジックバイトでPDFと判定される", func(t *testing.T) {
		_, err := extractor.ExtractText(ctx, []byte("%PDF-1.7 broken"), "")
		assert.Error(t, err)
	})
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF([]byte("%PDF-1.4"), ""))
	assert.True(t, isPDF([]byte("anything"), "application/pdf"))
	assert.True(t, isPDF(nil, "Application/PDF"))
	assert.False(t, isPDF([]byte("plain text"), "text/plain"))
}
