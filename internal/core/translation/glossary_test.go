package translation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactGlossary(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "空行区切りをセミコロンに置き換える",
			input:    "server: サーバ\n\ncache: キャッシュ",
			expected: "server: サーバ;cache: キャッシュ",
		},
		{
			name:     "空白の連続を畳む",
			input:    "term   one :  訳語",
			expected: "term one : 訳語",
		},
		{
			name:     "空文字列は空のまま",
			input:    "   \n  ",
			expected: "",
		},
		{
			name:     "単一行はそのまま",
			input:    "queue: キュー",
			expected: "queue: キュー",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompactGlossary(tt.input))
		})
	}
}

func TestParseGlossaryCSV(t *testing.T) {
	t.Run("原語と訳語のペアを変換する", func(t *testing.T) {
		data := []byte("server,サーバ\ncache,キャッシュ\n")
		got, err := ParseGlossaryCSV(data)
		require.NoError(t, err)
		assert.Equal(t, "server: サーバ; cache: キャッシュ", got)
	})

	t.Run("列が足りない行は読み飛ばす", func(t *testing.T) {
		data := []byte("server,サーバ\nincomplete\n,empty\ncache,キャッシュ\n")
		got, err := ParseGlossaryCSV(data)
		require.NoError(t, err)
		assert.Equal(t, "server: サーバ; cache: キャッシュ", got)
	})

	t.Run("前後の空白を除去する", func(t *testing.T) {
		data := []byte("server , サーバ \n")
		got, err := ParseGlossaryCSV(data)
		require.NoError(t, err)
		assert.Equal(t, "server: サーバ", got)
	})

	t.Run("壊れたCSVはエラーを返す", func(t *testing.T) {
		data := []byte("server,\"broken\nrow")
		_, err := ParseGlossaryCSV(data)
		assert.Error(t, err)
	})
}
