package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemo(t *testing.T) {
	t.Run("登録した結果を取得できる", func(t *testing.T) {
		memo := NewMemo()
		result := Result{Text: "訳文", Cost: CostSummary{InputTokens: 10, TotalCost: 0.01}}

		memo.Put("Hello world.", result)

		got, ok := memo.Get("Hello world.")
		require.True(t, ok)
		assert.Equal(t, result, got)
		assert.Equal(t, 1, memo.Len())
	})

	t.Run("未登録のチャンクはヒットしない", func(t *testing.T) {
		memo := NewMemo()
		_, ok := memo.Get("unknown")
		assert.False(t, ok)
	})

	t.Run("空白の違いだけのチャンクは同じエントリに当たる", func(t *testing.T) {
		memo := NewMemo()
		memo.Put("Hello   world.\n\n", Result{Text: "訳文"})

		got, ok := memo.Get("Hello world.")
		require.True(t, ok)
		assert.Equal(t, "訳文", got.Text)
		assert.Equal(t, 1, memo.Len())
	})

	t.Run("同じキーへの登録は上書きされる", func(t *testing.T) {
		memo := NewMemo()
		memo.Put("text", Result{Text: "first"})
		memo.Put("text", Result{Text: "second"})

		got, ok := memo.Get("text")
		require.True(t, ok)
		assert.Equal(t, "second", got.Text)
		assert.Equal(t, 1, memo.Len())
	})
}
