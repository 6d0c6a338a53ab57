package translation

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "user-1-report.txt", LockKey("user-1", "report.txt"))
}

func TestLockTable_TryAcquire(t *testing.T) {
	t.Run("同一キーのロックは1つしか取得できない", func(t *testing.T) {
		table := NewLockTable()
		key := LockKey("user-1", "doc.txt")

		assert.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))
		assert.False(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))
		assert.Equal(t, 1, table.Len())
	})

	t.Run("別のキーは独立に取得できる", func(t *testing.T) {
		table := NewLockTable()

		assert.True(t, table.TryAcquire(LockKey("user-1", "a.txt"), "user-1", uuid.Nil, StatusPending))
		assert.True(t, table.TryAcquire(LockKey("user-1", "b.txt"), "user-1", uuid.Nil, StatusPending))
		assert.True(t, table.TryAcquire(LockKey("user-2", "a.txt"), "user-2", uuid.Nil, StatusPending))
	})

	t.Run("解放後は再取得できる", func(t *testing.T) {
		table := NewLockTable()
		key := LockKey("user-1", "doc.txt")

		require.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))
		table.Release(key)
		assert.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))
	})

	t.Run("並行に取得を試みても成功するのは1つだけ", func(t *testing.T) {
		table := NewLockTable()
		key := LockKey("user-1", "doc.txt")

		var acquired atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if table.TryAcquire(key, "user-1", uuid.Nil, StatusPending) {
					acquired.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), acquired.Load())
	})
}

func TestLockTable_SweepStale(t *testing.T) {
	t.Run("TTLを超えたロックは不在として扱われる", func(t *testing.T) {
		now := time.Now()
		clock := &now
		table := NewLockTable(
			WithLockTTL(5*time.Minute),
			WithLockClock(func() time.Time { return *clock }),
		)
		key := LockKey("user-1", "doc.txt")

		require.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))

		// TTL内は取得できない
		later := now.Add(4 * time.Minute)
		clock = &later
		assert.False(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))

		// TTL超過後は stale として掃除され再取得できる
		expired := now.Add(6 * time.Minute)
		clock = &expired
		assert.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))
	})

	t.Run("放置されたジョブの後始末コールバックが呼ばれる", func(t *testing.T) {
		now := time.Now()
		clock := &now
		var expiredJobs []uuid.UUID
		table := NewLockTable(
			WithLockTTL(5*time.Minute),
			WithLockClock(func() time.Time { return *clock }),
			WithExpirer(func(jobID uuid.UUID) {
				expiredJobs = append(expiredJobs, jobID)
			}),
		)

		jobID := uuid.New()
		key := LockKey("user-1", jobID.String())
		require.True(t, table.TryAcquire(key, "user-1", jobID, StatusProcessing))

		expired := now.Add(6 * time.Minute)
		clock = &expired
		table.SweepStale()

		require.Len(t, expiredJobs, 1)
		assert.Equal(t, jobID, expiredJobs[0])
		assert.Equal(t, 0, table.Len())
	})

	t.Run("ジョブID未設定のロックはコールバック対象にならない", func(t *testing.T) {
		now := time.Now()
		clock := &now
		called := false
		table := NewLockTable(
			WithLockTTL(time.Minute),
			WithLockClock(func() time.Time { return *clock }),
			WithExpirer(func(uuid.UUID) { called = true }),
		)

		require.True(t, table.TryAcquire("user-1-doc.txt", "user-1", uuid.Nil, StatusPending))

		expired := now.Add(2 * time.Minute)
		clock = &expired
		table.SweepStale()

		assert.False(t, called)
		assert.Equal(t, 0, table.Len())
	})

	t.Run("Bindで後付けしたジョブIDがコールバックに渡される", func(t *testing.T) {
		now := time.Now()
		clock := &now
		var expiredJobs []uuid.UUID
		table := NewLockTable(
			WithLockTTL(time.Minute),
			WithLockClock(func() time.Time { return *clock }),
			WithExpirer(func(jobID uuid.UUID) {
				expiredJobs = append(expiredJobs, jobID)
			}),
		)

		key := LockKey("user-1", "doc.txt")
		require.True(t, table.TryAcquire(key, "user-1", uuid.Nil, StatusPending))

		jobID := uuid.New()
		table.Bind(key, jobID)

		expired := now.Add(2 * time.Minute)
		clock = &expired
		table.SweepStale()

		require.Len(t, expiredJobs, 1)
		assert.Equal(t, jobID, expiredJobs[0])
	})

	t.Run("終了状態のロックはコールバック対象にならない", func(t *testing.T) {
		now := time.Now()
		clock := &now
		called := false
		table := NewLockTable(
			WithLockTTL(time.Minute),
			WithLockClock(func() time.Time { return *clock }),
			WithExpirer(func(uuid.UUID) { called = true }),
		)

		jobID := uuid.New()
		key := LockKey("user-1", jobID.String())
		require.True(t, table.TryAcquire(key, "user-1", jobID, StatusProcessing))
		table.SetStatus(key, StatusCompleted)

		expired := now.Add(2 * time.Minute)
		clock = &expired
		table.SweepStale()

		assert.False(t, called)
	})
}
