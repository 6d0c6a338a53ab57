package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel はデフォルトで使用するOpenAIモデル
	DefaultModel = "gpt-4o-mini"
)

var (
	// ErrAPIKeyNotSet はAPIキーが設定されていない場合のエラー
	ErrAPIKeyNotSet = errors.New("OpenAI API key not set: please set OPENAI_API_KEY environment variable")
)

// Client は OpenAI API を使用した補完クライアント実装
// リトライとバックオフは呼び出し側の ChunkTranslator が担うため、
// ここでは1回の呼び出しとエラーの分類のみを行う
type Client struct {
	client openai.Client
	model  string
}

// NewClient はAPIキーとモデルを指定して Client を作成する
func NewClient(apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if model == "" {
		model = DefaultModel
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Client{
		client: client,
		model:  model,
	}, nil
}

// ModelName はモデル名を返す
func (c *Client) ModelName() string {
	return c.model
}

// Complete は OpenAI API を使用して翻訳テキストを生成する
func (c *Client) Complete(ctx context.Context, req translation.CompletionRequest) (translation.CompletionResponse, error) {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return translation.CompletionResponse{}, classifyError(err)
	}

	if len(completion.Choices) == 0 {
		return translation.CompletionResponse{}, fmt.Errorf("no completion choices returned")
	}

	return translation.CompletionResponse{
		Text:       completion.Choices[0].Message.Content,
		TokensUsed: int(completion.Usage.TotalTokens),
		Model:      string(completion.Model),
	}, nil
}

// classifyError はAPIエラーを ChunkTranslator が扱う分類へ変換する
// コンテキスト長超過 / タイムアウト / 回復不能 / それ以外（リトライ対象）
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", translation.ErrCompletionTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if isContextLengthError(apiErr) {
			return fmt.Errorf("%w: %v", translation.ErrContextLengthExceeded, err)
		}
		switch apiErr.StatusCode {
		case 401, 403, 404:
			return fmt.Errorf("%w: %v", translation.ErrCompletionFatal, err)
		}
		// 429 および 5xx はリトライ対象として素通しする
		return fmt.Errorf("OpenAI API call failed: %w", err)
	}

	return fmt.Errorf("OpenAI API call failed: %w", err)
}

// isContextLengthError はコンテキスト長超過エラーかどうかを判定する
func isContextLengthError(apiErr *openai.Error) bool {
	if apiErr.StatusCode != 400 {
		return false
	}
	msg := apiErr.Error()
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length")
}

// インターフェース実装の確認
var _ translation.CompletionClient = (*Client)(nil)
