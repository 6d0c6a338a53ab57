package translation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompletionClient は呼び出しごとの応答をスクリプトできる補完クライアント
type fakeCompletionClient struct {
	complete func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	requests []CompletionRequest
}

func (f *fakeCompletionClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	f.requests = append(f.requests, req)
	return f.complete(ctx, req)
}

// fixedTokenCounter は常に固定のトークン数を返す
type fixedTokenCounter struct {
	tokens int
}

func (f fixedTokenCounter) CountTokens(string) int {
	return f.tokens
}

// noSleep はバックオフの待機時間を記録するだけで待たない
func noSleep(slept *[]time.Duration) func(ctx context.Context, d time.Duration) error {
	return func(_ context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return nil
	}
}

// echoTranslation は原文と同じ長さの訳文を返し、短すぎ判定を回避する
func echoTranslation(req CompletionRequest) CompletionResponse {
	return CompletionResponse{Text: strings.Repeat("x", len(req.Prompt))}
}

func TestChunkTranslator_Translate(t *testing.T) {
	ctx := context.Background()

	t.Run("1回で成功した場合は結果とコストを返す", func(t *testing.T) {
		client := &fakeCompletionClient{
			complete: func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
				return CompletionResponse{Text: "  訳文テキストが十分な長さで返る  "}, nil
			},
		}
		translator := NewChunkTranslator(client,
			WithTokenCounter(fixedTokenCounter{tokens: 1000}),
			WithPricingRates(PricingRates{InputPer1K: 0.0015, OutputPer1K: 0.0020}),
		)

		result, err := translator.Translate(ctx, ChunkRequest{
			Text:           "Short source.",
			SourceLanguage: "en",
			TargetLanguage: "ja",
		})
		require.NoError(t, err)

		assert.Equal(t, "訳文テキストが十分な長さで返る", result.Text)
		assert.Equal(t, 1000, result.Cost.InputTokens)
		assert.Equal(t, 1000, result.Cost.OutputTokens)
		assert.InDelta(t, 0.0015, result.Cost.InputCost, 1e-9)
		assert.InDelta(t, 0.0020, result.Cost.OutputCost, 1e-9)
		assert.InDelta(t, 0.0035, result.Cost.TotalCost, 1e-9)
		require.Len(t, client.requests, 1)
		assert.Contains(t, client.requests[0].Prompt, "Translate from en to ja:")
		assert.Contains(t, client.requests[0].Prompt, "Short source.")
	})

	t.Run("用語集がプロンプトに含まれる", func(t *testing.T) {
		client := &fakeCompletionClient{
			complete: func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
				return echoTranslation(req), nil
			},
		}
		translator := NewChunkTranslator(client)

		_, err := translator.Translate(ctx, ChunkRequest{
			Text:           "Source text.",
			SourceLanguage: "en",
			TargetLanguage: "ja",
			Glossary:       "server: サーバ",
		})
		require.NoError(t, err)
		assert.Contains(t, client.requests[0].Prompt, "Glossary:server: サーバ")
	})

	t.Run("リトライは2のべき乗秒のバックオフを挟む", func(t *testing.T) {
		var slept []time.Duration
		client := &fakeCompletionClient{
			complete: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
				return CompletionResponse{}, errors.New("transient failure")
			},
		}
		translator := NewChunkTranslator(client,
			WithAttemptBudget(3),
			WithSleepFunc(noSleep(&slept)),
		)

		_, err := translator.Translate(ctx, ChunkRequest{Text: "Some text.", SourceLanguage: "en", TargetLanguage: "ja"})

		var failure *TranslationFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, 3, failure.Attempts)
		assert.Len(t, client.requests, 3)
		assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, slept)
	})

	t.Run("回復不能なエラーはリトライしない", func(t *testing.T) {
		var slept []time.Duration
		client := &fakeCompletionClient{
			complete: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
				return CompletionResponse{}, fmt.Errorf("%w: invalid api key", ErrCompletionFatal)
			},
		}
		translator := NewChunkTranslator(client, WithSleepFunc(noSleep(&slept)))

		_, err := translator.Translate(ctx, ChunkRequest{Text: "Some text.", SourceLanguage: "en", TargetLanguage: "ja"})

		var failure *TranslationFailure
		require.ErrorAs(t, err, &failure)
		assert.ErrorIs(t, err, ErrCompletionFatal)
		assert.Len(t, client.requests, 1)
		assert.Empty(t, slept)
	})

	t.Run("短すぎる訳文はリトライ対象になる", func(t *testing.T) {
		var slept []time.Duration
		calls := 0
		client := &fakeCompletionClient{
			complete: func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
				calls++
				if calls == 1 {
					return CompletionResponse{Text: "x"}, nil
				}
				return echoTranslation(req), nil
			},
		}
		translator := NewChunkTranslator(client, WithSleepFunc(noSleep(&slept)))

		result, err := translator.Translate(ctx, ChunkRequest{
			Text:           "A reasonably long source sentence for the ratio check.",
			SourceLanguage: "en",
			TargetLanguage: "ja",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, result.Text)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []time.Duration{2 * time.Second}, slept)
	})

	t.Run("コンテキスト長超過は文境界で半分割して合算する", func(t *testing.T) {
		full := "First sentence goes here. Second sentence goes here."
		client := &fakeCompletionClient{}
		client.complete = func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
			if strings.Contains(req.Prompt, full) {
				return CompletionResponse{}, fmt.Errorf("%w: prompt too large", ErrContextLengthExceeded)
			}
			return echoTranslation(req), nil
		}
		translator := NewChunkTranslator(client,
			WithTokenCounter(fixedTokenCounter{tokens: 100}),
			WithMinSplitSize(10),
		)

		result, err := translator.Translate(ctx, ChunkRequest{Text: full, SourceLanguage: "en", TargetLanguage: "ja"})
		require.NoError(t, err)

		// 全文1回 + 前半 + 後半
		require.Len(t, client.requests, 3)
		assert.Contains(t, client.requests[1].Prompt, "First sentence goes here.")
		assert.Contains(t, client.requests[2].Prompt, "Second sentence goes here.")

		// 2回の成功呼び出し分のコストが合算される
		assert.Equal(t, 200, result.Cost.InputTokens)
		assert.Equal(t, 200, result.Cost.OutputTokens)
		assert.Contains(t, result.Text, " ")
	})

	t.Run("下限以下のチャンクはコンテキスト長超過でも分割しない", func(t *testing.T) {
		var slept []time.Duration
		client := &fakeCompletionClient{
			complete: func(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
				return CompletionResponse{}, fmt.Errorf("%w: prompt too large", ErrContextLengthExceeded)
			},
		}
		translator := NewChunkTranslator(client,
			WithAttemptBudget(2),
			WithMinSplitSize(1000),
			WithSleepFunc(noSleep(&slept)),
		)

		_, err := translator.Translate(ctx, ChunkRequest{Text: "Tiny chunk.", SourceLanguage: "en", TargetLanguage: "ja"})

		var failure *TranslationFailure
		require.ErrorAs(t, err, &failure)
		assert.ErrorIs(t, err, ErrContextLengthExceeded)
		assert.Len(t, client.requests, 2)
	})

	t.Run("上限を超えるチャンクはエラーを待たずに事前分割される", func(t *testing.T) {
		full := "Alpha sentence is here. Beta sentence is here. Gamma sentence is here. Delta sentence is here."
		client := &fakeCompletionClient{
			complete: func(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
				return echoTranslation(req), nil
			},
		}
		translator := NewChunkTranslator(client,
			WithMaxChunkSize(60),
			WithMinSplitSize(10),
		)

		_, err := translator.Translate(ctx, ChunkRequest{Text: full, SourceLanguage: "en", TargetLanguage: "ja"})
		require.NoError(t, err)

		require.Len(t, client.requests, 2)
		for _, req := range client.requests {
			assert.NotContains(t, req.Prompt, full)
		}
	})

	t.Run("API呼び出しのタイムアウトはタイムアウトエラーに変換される", func(t *testing.T) {
		var slept []time.Duration
		client := &fakeCompletionClient{
			complete: func(ctx context.Context, _ CompletionRequest) (CompletionResponse, error) {
				<-ctx.Done()
				return CompletionResponse{}, ctx.Err()
			},
		}
		translator := NewChunkTranslator(client,
			WithCallTimeout(10*time.Millisecond),
			WithAttemptBudget(1),
			WithSleepFunc(noSleep(&slept)),
		)

		_, err := translator.Translate(ctx, ChunkRequest{Text: "Some text.", SourceLanguage: "en", TargetLanguage: "ja"})
		assert.ErrorIs(t, err, ErrCompletionTimeout)
	})
}

func TestSplitPoint(t *testing.T) {
	t.Run("中間点直前の文境界を返す", func(t *testing.T) {
		text := "One short. A much longer second sentence follows."
		cut := splitPoint(text)
		assert.Equal(t, "One short.", strings.TrimSpace(text[:cut]))
	})

	t.Run("文境界がない場合は中間点を返す", func(t *testing.T) {
		text := strings.Repeat("a", 40)
		assert.Equal(t, 20, splitPoint(text))
	})
}
