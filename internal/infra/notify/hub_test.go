package notify

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(time.Second):
		t.Fatal("イベントを受信できなかった")
		return Event{}
	}
}

func TestHub(t *testing.T) {
	t.Run("購読者は発火したイベントを受信する", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe()
		defer cancel()

		job := &translation.Job{
			ID:           uuid.New(),
			OriginalName: "report.txt",
			Status:       translation.StatusPending,
		}
		hub.EmitStarted(job)

		ev := recvEvent(t, events)
		assert.Equal(t, TopicStarted, ev.Topic)
		payload, ok := ev.Payload.(StartedPayload)
		require.True(t, ok)
		assert.Equal(t, job.ID.String(), payload.ID)
		assert.Equal(t, "report.txt", payload.OriginalName)
		assert.Equal(t, "pending", payload.Status)
	})

	t.Run("進捗イベントにはジョブIDと進捗率が入る", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe()
		defer cancel()

		jobID := uuid.New()
		hub.EmitProgress(jobID, 40)

		ev := recvEvent(t, events)
		assert.Equal(t, TopicProgress, ev.Topic)
		payload := ev.Payload.(ProgressPayload)
		assert.Equal(t, jobID.String(), payload.ID)
		assert.Equal(t, 40, payload.Progress)
	})

	t.Run("エラーイベントにはメッセージが入る", func(t *testing.T) {
		hub := NewHub()
		events, cancel := hub.Subscribe()
		defer cancel()

		jobID := uuid.New()
		hub.EmitError(jobID, "expired due to timeout")

		ev := recvEvent(t, events)
		assert.Equal(t, TopicError, ev.Topic)
		payload := ev.Payload.(ErrorPayload)
		assert.Equal(t, "expired due to timeout", payload.Error)
	})

	t.Run("複数の購読者へ同じイベントが配信される", func(t *testing.T) {
		hub := NewHub()
		first, cancelFirst := hub.Subscribe()
		defer cancelFirst()
		second, cancelSecond := hub.Subscribe()
		defer cancelSecond()

		hub.EmitProgress(uuid.New(), 10)

		assert.Equal(t, TopicProgress, recvEvent(t, first).Topic)
		assert.Equal(t, TopicProgress, recvEvent(t, second).Topic)
	})

	t.Run("購読解除後はイベントが届かない", func(t *testing.T) {
		hub := NewHub()
		_, cancel := hub.Subscribe()
		require.Equal(t, 1, hub.SubscriberCount())

		cancel()
		assert.Equal(t, 0, hub.SubscriberCount())
	})

	t.Run("詰まった購読者がいてもイベント発火はブロックしない", func(t *testing.T) {
		hub := NewHub()
		_, cancel := hub.Subscribe()
		defer cancel()

		// バッファを大きく超えて発火しても返ってくること
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				hub.EmitProgress(uuid.New(), i%100)
			}
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("イベント発火がブロックした")
		}
	})
}
