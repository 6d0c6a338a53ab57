package translation

import (
	"time"

	"github.com/google/uuid"
)

// Status は翻訳ジョブの状態を表す
type Status string

const (
	// StatusPending は投入済みで未処理の状態
	StatusPending Status = "pending"
	// StatusProcessing は翻訳処理中の状態
	StatusProcessing Status = "processing"
	// StatusProcessingWithErrors は一部チャンクの失敗を抱えたまま処理中の状態
	StatusProcessingWithErrors Status = "processing_with_errors"
	// StatusCompleted は全チャンクの翻訳に成功した終了状態
	StatusCompleted Status = "completed"
	// StatusCompletedWithErrors は一部チャンクが失敗したが成果物を生成できた終了状態
	StatusCompletedWithErrors Status = "completed_with_errors"
	// StatusError は翻訳に失敗した終了状態
	StatusError Status = "error"
)

// Active は処理を継続できる状態かどうかを返す
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

// Terminal は終了状態かどうかを返す
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCompletedWithErrors, StatusError:
		return true
	}
	return false
}

// CostSummary はトークン使用量とコストの累計を保持する
// 各フィールドは処理中に単調増加する
type CostSummary struct {
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	InputCost    float64 `json:"inputCost"`
	OutputCost   float64 `json:"outputCost"`
	TotalCost    float64 `json:"totalCost"`
}

// Add は別のコスト集計を加算する
func (c *CostSummary) Add(other CostSummary) {
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.InputCost += other.InputCost
	c.OutputCost += other.OutputCost
	c.TotalCost += other.TotalCost
}

// Job は永続化される翻訳ジョブを表す
type Job struct {
	ID             uuid.UUID
	OwnerID        string
	OriginalName   string
	SourceLanguage string
	TargetLanguage string

	// OriginalRef はアップロードされた原文ファイルへの参照
	OriginalRef string
	// TranslatedRef は翻訳成果物への参照（完了まで空）
	TranslatedRef string
	// GlossaryRef は用語集ファイルへの参照（任意）
	GlossaryRef string

	Status Status
	// Progress は処理中の進捗率 (0-100)。単調非減少
	Progress int
	Cost     CostSummary
	// ErrorMessage はエラー系の状態でのみ設定される
	ErrorMessage string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// JobUpdate はジョブの部分更新を表す
// nil のフィールドは更新対象に含めない
type JobUpdate struct {
	Status        *Status
	Progress      *int
	Cost          *CostSummary
	TranslatedRef *string
	ErrorMessage  *string
}

// Result は1チャンクの翻訳結果を表す
type Result struct {
	Text string
	Cost CostSummary
}
