package translation

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateSubmission は同一ファイルの翻訳がすでに進行中の場合のエラー
	ErrDuplicateSubmission = errors.New("translation already in progress for this file")

	// ErrJobNotFound はジョブが存在しない場合のエラー
	ErrJobNotFound = errors.New("translation job not found")

	// ErrJobNotRunnable はジョブがすでに処理中または終了している場合のエラー
	ErrJobNotRunnable = errors.New("translation already in progress or finished")

	// ErrNoChunksTranslated は1チャンクも翻訳に成功しなかった場合のエラー
	ErrNoChunksTranslated = errors.New("no chunk translated successfully")

	// ErrContextLengthExceeded は補完APIのコンテキスト長超過エラー
	// 再分割の対象であり、それ自体は終了要因ではない
	ErrContextLengthExceeded = errors.New("context length exceeded")

	// ErrCompletionTimeout は補完API呼び出しのタイムアウト（リトライ対象）
	ErrCompletionTimeout = errors.New("completion call timed out")

	// ErrCompletionFatal は補完APIの回復不能なエラー（リトライしない）
	ErrCompletionFatal = errors.New("completion call failed permanently")

	// ErrIncompleteTranslation は翻訳結果が不完全と疑われる場合のエラー（リトライ対象）
	ErrIncompleteTranslation = errors.New("translation looks incomplete")
)

// ValidationError は投入時の入力検証エラー
// ジョブは作成されず、呼び出し元へ即座に返される
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ExtractionError は原文テキストの抽出失敗を表す
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract text from document: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// TranslationFailure はリトライ回数を使い切った1チャンクの翻訳失敗を表す
type TranslationFailure struct {
	Attempts int
	Err      error
}

func (e *TranslationFailure) Error() string {
	return fmt.Sprintf("translation failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TranslationFailure) Unwrap() error {
	return e.Err
}
