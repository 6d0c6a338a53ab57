package translation

import (
	"context"

	"github.com/google/uuid"
)

// Repository は翻訳ジョブの永続化を抽象化するインターフェース
type Repository interface {
	// Create はジョブを新規作成する
	Create(ctx context.Context, job *Job) error

	// Get はIDでジョブを取得する
	// 存在しない場合は ErrJobNotFound を返す
	Get(ctx context.Context, id uuid.UUID) (*Job, error)

	// Update はジョブを部分更新する
	// JobUpdate の nil フィールドは既存値を保持する
	Update(ctx context.Context, id uuid.UUID, update JobUpdate) error
}

// Storage は原文と成果物のファイルストレージを抽象化するインターフェース
type Storage interface {
	ReadBytes(ctx context.Context, ref string) ([]byte, error)
	WriteBytes(ctx context.Context, ref string, data []byte) error
	Exists(ctx context.Context, ref string) (bool, error)
	Delete(ctx context.Context, ref string) error
}

// Extractor はドキュメントからのテキスト抽出を抽象化するインターフェース
type Extractor interface {
	// ExtractText はバイト列からプレーンテキストを抽出する
	// mimeHint は "application/pdf" や "text/plain" などの形式ヒント
	ExtractText(ctx context.Context, data []byte, mimeHint string) (string, error)
}

// Renderer は翻訳済みテキストから成果物バイト列を生成するインターフェース
type Renderer interface {
	// Render は format ("pdf" または "text") に応じた成果物を生成する
	Render(text string, format string) ([]byte, error)
}

// CompletionRequest は補完APIへのリクエストパラメータ
type CompletionRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// CompletionResponse は補完APIからのレスポンス
type CompletionResponse struct {
	// Text は生成されたテキスト
	Text string

	// TokensUsed はAPIが報告した消費トークン数（報告がない場合は0）
	TokensUsed int

	// Model は実際に使用されたモデル名
	Model string
}

// CompletionClient は外部の補完サービスを抽象化するインターフェース
// エラーは ErrContextLengthExceeded / ErrCompletionTimeout / ErrCompletionFatal
// のいずれかでラップして分類する。どれにも該当しないエラーはリトライ対象として扱う
type CompletionClient interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// TokenCounter はテキストのトークン数を数えるインターフェース
type TokenCounter interface {
	CountTokens(text string) int
}

// Notifier は進捗イベントの配信ポート
// すべて fire-and-forget であり、配信失敗がジョブを失敗させてはならない
type Notifier interface {
	EmitStarted(job *Job)
	EmitProgress(jobID uuid.UUID, percent int)
	EmitCompleted(job *Job)
	EmitError(jobID uuid.UUID, message string)
}

// Translator は1チャンクの翻訳を抽象化するインターフェース
type Translator interface {
	Translate(ctx context.Context, req ChunkRequest) (Result, error)
}
