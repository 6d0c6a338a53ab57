package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const (
	// DefaultAttemptBudget は1チャンクあたりのリトライ込み試行回数
	DefaultAttemptBudget = 2

	// DefaultCallTimeout は補完API呼び出し1回のタイムアウト
	DefaultCallTimeout = 60 * time.Second

	// DefaultMinSplitSize は再帰分割を打ち切る文字数の下限
	// これ以下のチャンクはコンテキスト長エラーでも分割しない
	DefaultMinSplitSize = 1000

	// DefaultTemperature は翻訳に使う温度パラメータ
	DefaultTemperature = 0.3

	// maxCompletionTokens は1回の補完で要求する出力トークン数の上限
	maxCompletionTokens = 4096

	// minOutputRatio は原文に対する訳文の最低長の比率
	// これを下回る結果は不完全な翻訳とみなしてリトライする
	minOutputRatio = 0.3
)

// PricingRates は1000トークンあたりの料金 (USD)
type PricingRates struct {
	InputPer1K  float64
	OutputPer1K float64
}

// DefaultPricingRates は gpt-3.5 世代の補完APIの料金
func DefaultPricingRates() PricingRates {
	return PricingRates{InputPer1K: 0.0015, OutputPer1K: 0.0020}
}

// ChunkRequest は1チャンクの翻訳リクエスト
type ChunkRequest struct {
	Text           string
	SourceLanguage string
	TargetLanguage string
	// Glossary は訳語を誘導する用語集テキスト（任意）
	Glossary string
}

// ChunkTranslator は外部の補完サービスで1チャンクを翻訳する
// タイムアウト・Exponential Backoff でのリトライ・コンテキスト長超過時の
// 再帰分割を担い、呼び出しごとのコスト見積もりを結果に含める
type ChunkTranslator struct {
	client        CompletionClient
	counter       TokenCounter
	rates         PricingRates
	model         string
	temperature   float64
	attemptBudget int
	callTimeout   time.Duration
	maxChunkSize  int
	minSplitSize  int
	logger        *slog.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// TranslatorOption は ChunkTranslator のオプション設定
type TranslatorOption func(*ChunkTranslator)

// WithTokenCounter はトークンカウンタを差し替える
// 未設定の場合は文字数ベースの推定 (ceil(len/4)) を使う
func WithTokenCounter(counter TokenCounter) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.counter = counter
	}
}

// WithTemperature は補完に使う温度パラメータを設定する
func WithTemperature(temperature float64) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.temperature = temperature
	}
}

// WithPricingRates はトークン料金を設定する
func WithPricingRates(rates PricingRates) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.rates = rates
	}
}

// WithModel は補完に使うモデル名を設定する
func WithModel(model string) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.model = model
	}
}

// WithAttemptBudget は1チャンクあたりの最大試行回数を設定する
func WithAttemptBudget(budget int) TranslatorOption {
	return func(t *ChunkTranslator) {
		if budget > 0 {
			t.attemptBudget = budget
		}
	}
}

// WithCallTimeout は補完API呼び出しのタイムアウトを設定する
func WithCallTimeout(timeout time.Duration) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.callTimeout = timeout
	}
}

// WithMaxChunkSize はこのサイズを超えるチャンクの事前分割の閾値を設定する
func WithMaxChunkSize(size int) TranslatorOption {
	return func(t *ChunkTranslator) {
		if size > 0 {
			t.maxChunkSize = size
		}
	}
}

// WithMinSplitSize は再帰分割の下限文字数を設定する
func WithMinSplitSize(size int) TranslatorOption {
	return func(t *ChunkTranslator) {
		if size > 0 {
			t.minSplitSize = size
		}
	}
}

// WithTranslatorLogger は ChunkTranslator にロガーを設定する
func WithTranslatorLogger(logger *slog.Logger) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.logger = logger
	}
}

// WithSleepFunc はバックオフの待機処理を差し替える（テスト用）
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) TranslatorOption {
	return func(t *ChunkTranslator) {
		t.sleep = sleep
	}
}

// NewChunkTranslator は新しい ChunkTranslator を作成する
func NewChunkTranslator(client CompletionClient, opts ...TranslatorOption) *ChunkTranslator {
	t := &ChunkTranslator{
		client:        client,
		counter:       heuristicTokenCounter{},
		rates:         DefaultPricingRates(),
		temperature:   DefaultTemperature,
		attemptBudget: DefaultAttemptBudget,
		callTimeout:   DefaultCallTimeout,
		maxChunkSize:  DefaultMaxChunkSize,
		minSplitSize:  DefaultMinSplitSize,
		logger:        slog.Default(),
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Translator = (*ChunkTranslator)(nil)

// Translate は1チャンクを翻訳する
// 試行回数を使い切った場合は TranslationFailure を返す
func (t *ChunkTranslator) Translate(ctx context.Context, req ChunkRequest) (Result, error) {
	req.Text = strings.TrimSpace(req.Text)
	return t.translate(ctx, req, false)
}

// translate は再帰分割のフラグ付き翻訳の本体
// forced は「すでにエラー起因の半分割で生成されたチャンク」であることを示し、
// コンテキスト長エラーでの再分割を1段に制限する
func (t *ChunkTranslator) translate(ctx context.Context, req ChunkRequest, forced bool) (Result, error) {
	// 上限超過チャンクはエラーを待たずに事前分割する
	if len(req.Text) > t.maxChunkSize && len(req.Text) > t.minSplitSize {
		return t.splitAndTranslate(ctx, req, forced)
	}

	var lastErr error
	for attempt := 1; attempt <= t.attemptBudget; attempt++ {
		result, err := t.translateOnce(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, ErrContextLengthExceeded) {
			// リトライカウントを消費せずに半分割へ切り替える
			if !forced && len(req.Text) > t.minSplitSize {
				t.logger.Info("context length exceeded, re-splitting chunk",
					"chunkLength", len(req.Text),
				)
				return t.splitAndTranslate(ctx, req, true)
			}
		}

		if errors.Is(err, ErrCompletionFatal) {
			break
		}

		t.logger.Warn("chunk translation attempt failed",
			"attempt", attempt,
			"error", err,
		)

		if attempt == t.attemptBudget {
			break
		}

		// Exponential Backoff: 2^attempt 秒
		backoff := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		if err := t.sleep(ctx, backoff); err != nil {
			return Result{}, err
		}
	}

	return Result{}, &TranslationFailure{Attempts: t.attemptBudget, Err: lastErr}
}

// splitAndTranslate はチャンクを中間点に最も近い文境界で2分割し、
// それぞれを独立に翻訳して結果とコストを合算する
func (t *ChunkTranslator) splitAndTranslate(ctx context.Context, req ChunkRequest, forced bool) (Result, error) {
	cut := splitPoint(req.Text)

	first := req
	first.Text = strings.TrimSpace(req.Text[:cut])
	second := req
	second.Text = strings.TrimSpace(req.Text[cut:])

	// エラー起因の分割 (forced) は1段のみ。事前分割は半分がなお上限を
	// 超える場合に限り翻訳本体の先頭で再度分割される
	firstResult, err := t.translate(ctx, first, true)
	if err != nil {
		return Result{}, err
	}
	secondResult, err := t.translate(ctx, second, true)
	if err != nil {
		return Result{}, err
	}

	combined := Result{
		Text: firstResult.Text + " " + secondResult.Text,
		Cost: firstResult.Cost,
	}
	combined.Cost.Add(secondResult.Cost)
	return combined, nil
}

// splitPoint は中間点直前の文境界を返す。見つからない場合は中間点そのもの
func splitPoint(text string) int {
	half := len(text) / 2
	if cut := strings.LastIndex(text[:half], ". "); cut >= 0 {
		return cut + 1
	}
	return half
}

// translateOnce は1回の補完API呼び出しで翻訳を試みる
func (t *ChunkTranslator) translateOnce(ctx context.Context, req ChunkRequest) (Result, error) {
	prompt := buildPrompt(req)

	callCtx, cancel := context.WithTimeout(ctx, t.callTimeout)
	defer cancel()

	maxTokens := int(float64(len(req.Text)) * 1.3 / 4)
	if maxTokens > maxCompletionTokens {
		maxTokens = maxCompletionTokens
	}
	if maxTokens < 1 {
		maxTokens = 1
	}

	resp, err := t.client.Complete(callCtx, CompletionRequest{
		Prompt:      prompt,
		Model:       t.model,
		Temperature: t.temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return Result{}, fmt.Errorf("%w: %v", ErrCompletionTimeout, err)
		}
		return Result{}, err
	}

	translated := strings.TrimSpace(resp.Text)
	if float64(len(translated)) < float64(len(req.Text))*minOutputRatio {
		return Result{}, fmt.Errorf("%w: %d chars from %d source chars",
			ErrIncompleteTranslation, len(translated), len(req.Text))
	}

	return Result{
		Text: translated,
		Cost: t.estimateCost(prompt, translated),
	}, nil
}

// estimateCost はプロンプトと訳文からトークン数とコストを見積もる
func (t *ChunkTranslator) estimateCost(prompt, output string) CostSummary {
	inputTokens := t.counter.CountTokens(prompt)
	outputTokens := t.counter.CountTokens(output)
	inputCost := float64(inputTokens) / 1000 * t.rates.InputPer1K
	outputCost := float64(outputTokens) / 1000 * t.rates.OutputPer1K

	return CostSummary{
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
	}
}

// heuristicTokenCounter は約4文字=1トークンの近似でトークン数を見積もる
type heuristicTokenCounter struct{}

func (heuristicTokenCounter) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

// sleepContext はキャンセル可能な待機
func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
