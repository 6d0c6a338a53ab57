package openai

import (
	"context"
	"errors"
	"testing"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("APIキーが空の場合はエラーになる", func(t *testing.T) {
		_, err := NewClient("", "gpt-4o-mini")
		assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	})

	t.Run("モデル未指定の場合はデフォルトモデルを使う", func(t *testing.T) {
		client, err := NewClient("sk-test", "")
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, client.ModelName())
	})

	t.Run("指定したモデルが使われる", func(t *testing.T) {
		client, err := NewClient("sk-test", "gpt-4o")
		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", client.ModelName())
	})
}

func TestClassifyError(t *testing.T) {
	t.Run("タイムアウトはErrCompletionTimeoutに変換される", func(t *testing.T) {
		err := classifyError(context.DeadlineExceeded)
		assert.ErrorIs(t, err, translation.ErrCompletionTimeout)
	})

	t.Run("その他のエラーはリトライ対象として素通しする", func(t *testing.T) {
		cause := errors.New("connection reset")
		err := classifyError(cause)
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, translation.ErrCompletionFatal)
		assert.NotErrorIs(t, err, translation.ErrContextLengthExceeded)
	})
}
