package tokenizer

import (
	"fmt"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter は tiktoken によるトークンカウンタ
// 文字数ベースの近似よりも実際の課金に近い値を返す
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成する
// cl100k_baseエンコーディングを使用する
func NewTokenCounter() (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding: %w", err)
	}

	return &TokenCounter{
		encoding: encoding,
	}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TokenCounter) CountTokens(text string) int {
	if tc.encoding == nil {
		return 0
	}
	tokens := tc.encoding.Encode(text, nil, nil)
	return len(tokens)
}

var _ translation.TokenCounter = (*TokenCounter)(nil)
