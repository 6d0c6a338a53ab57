package notify

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jinford/honyaku/internal/core/translation"
)

// 配信トピック
const (
	TopicStarted   = "job:started"
	TopicProgress  = "job:progress"
	TopicCompleted = "job:completed"
	TopicError     = "job:error"
)

// Event は購読者へ配信されるイベント
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// StartedPayload はジョブ開始イベントのペイロード
type StartedPayload struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	Status       string `json:"status"`
}

// ProgressPayload は進捗イベントのペイロード
type ProgressPayload struct {
	ID       string `json:"id"`
	Progress int    `json:"progress"`
}

// CompletedPayload はジョブ完了イベントのペイロード
type CompletedPayload struct {
	ID            string `json:"id"`
	OriginalName  string `json:"originalName"`
	Status        string `json:"status"`
	TranslatedRef string `json:"translatedRef"`
}

// ErrorPayload はジョブ失敗イベントのペイロード
type ErrorPayload struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// defaultBufferSize は購読者ごとのイベントバッファ長
const defaultBufferSize = 64

// Hub は接続中のクライアントへ進捗イベントをファンアウトする
// 配信はすべて fire-and-forget: 購読者のバッファが詰まっている場合は
// イベントを落とし、ジョブ側を決してブロックさせない。正とする状態は
// 常に永続化されたジョブ行であり、クライアントは再取得で追いつける
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	logger *slog.Logger
}

// HubOption は Hub のオプション設定
type HubOption func(*Hub)

// WithHubLogger は Hub にロガーを設定する
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		h.logger = logger
	}
}

// NewHub は新しい Hub を作成する
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subs:   make(map[int]chan Event),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe はイベントの購読を開始する
// 返されたキャンセル関数で購読を解除する。解除後チャネルはクローズされる
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, defaultBufferSize)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount は現在の購読者数を返す
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// EmitStarted はジョブ開始イベントを配信する
func (h *Hub) EmitStarted(job *translation.Job) {
	h.publish(TopicStarted, StartedPayload{
		ID:           job.ID.String(),
		OriginalName: job.OriginalName,
		Status:       string(job.Status),
	})
}

// EmitProgress は進捗イベントを配信する
func (h *Hub) EmitProgress(jobID uuid.UUID, percent int) {
	h.publish(TopicProgress, ProgressPayload{
		ID:       jobID.String(),
		Progress: percent,
	})
}

// EmitCompleted はジョブ完了イベントを配信する
func (h *Hub) EmitCompleted(job *translation.Job) {
	h.publish(TopicCompleted, CompletedPayload{
		ID:            job.ID.String(),
		OriginalName:  job.OriginalName,
		Status:        string(job.Status),
		TranslatedRef: job.TranslatedRef,
	})
}

// EmitError はジョブ失敗イベントを配信する
func (h *Hub) EmitError(jobID uuid.UUID, message string) {
	h.publish(TopicError, ErrorPayload{
		ID:    jobID.String(),
		Error: message,
	})
}

// publish は全購読者へノンブロッキングで配信する
func (h *Hub) publish(topic string, payload any) {
	event := Event{Topic: topic, Payload: payload}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			// 追いつけない購読者にはイベントを落とす
			h.logger.Debug("dropping event for slow subscriber",
				"topic", topic,
				"subscriber", id,
			)
		}
	}
}

var _ translation.Notifier = (*Hub)(nil)
