package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenCounter_CountTokens(t *testing.T) {
	counter, err := NewTokenCounter()
	require.NoError(t, err)

	t.Run("空文字列は0トークン", func(t *testing.T) {
		assert.Equal(t, 0, counter.CountTokens(""))
	})

	t.Run("テキストが長いほどトークン数が増える", func(t *testing.T) {
		short := counter.CountTokens("Hello world.")
		long := counter.CountTokens(strings.Repeat("Hello world. ", 50))
		assert.Greater(t, short, 0)
		assert.Greater(t, long, short)
	})

	t.Run("同じ入力には同じトークン数を返す", func(t *testing.T) {
		text := "The quick brown fox jumps over the lazy dog."
		assert.Equal(t, counter.CountTokens(text), counter.CountTokens(text))
	})
}
