package translation

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultLockTTL はロックを stale とみなすまでの時間のデフォルト値
const DefaultLockTTL = 5 * time.Minute

// LockKey は (所有者, ジョブ識別値) の複合キーを生成する
// 投入時はファイル名、処理中はジョブIDを識別値として使う
func LockKey(ownerID, name string) string {
	return fmt.Sprintf("%s-%s", ownerID, name)
}

// jobLock はロックテーブルの1エントリ
type jobLock struct {
	ownerID   string
	jobID     uuid.UUID
	status    Status
	createdAt time.Time
}

// ExpireFunc は stale なロックに紐づくジョブの後始末を行うコールバック
// ロックの status が pending / processing のエントリに対してのみ呼ばれる
type ExpireFunc func(jobID uuid.UUID)

// LockTable はプロセス全体で共有される翻訳ジョブのロックテーブル
// 同一キーに対して同時に1つのロックしか存在しないことを保証する
// TTL を超えたロックは stale として読み手からは不在扱いになる
type LockTable struct {
	mu      sync.Mutex
	locks   map[string]*jobLock
	ttl     time.Duration
	now     func() time.Time
	expirer ExpireFunc
	logger  *slog.Logger
}

// LockTableOption は LockTable のオプション設定
type LockTableOption func(*LockTable)

// WithLockTTL はロックの有効期間を設定する
func WithLockTTL(ttl time.Duration) LockTableOption {
	return func(t *LockTable) {
		t.ttl = ttl
	}
}

// WithLockClock は現在時刻の取得方法を差し替える
func WithLockClock(now func() time.Time) LockTableOption {
	return func(t *LockTable) {
		t.now = now
	}
}

// WithExpirer は stale ロック検出時のコールバックを設定する
func WithExpirer(fn ExpireFunc) LockTableOption {
	return func(t *LockTable) {
		t.expirer = fn
	}
}

// WithLockLogger は LockTable にロガーを設定する
func WithLockLogger(logger *slog.Logger) LockTableOption {
	return func(t *LockTable) {
		t.logger = logger
	}
}

// NewLockTable は新しい LockTable を作成する
func NewLockTable(opts ...LockTableOption) *LockTable {
	t := &LockTable{
		locks:  make(map[string]*jobLock),
		ttl:    DefaultLockTTL,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TryAcquire はキーに対するロックの取得を試みる
// 生きているロックが存在する場合は false を返す。取得前に stale ロックの
// 掃除を行うため、TTL を超えたロックは不在として扱われる
func (t *LockTable) TryAcquire(key string, ownerID string, jobID uuid.UUID, status Status) bool {
	expired := t.sweepStale()

	t.mu.Lock()
	_, exists := t.locks[key]
	if !exists {
		t.locks[key] = &jobLock{
			ownerID:   ownerID,
			jobID:     jobID,
			status:    status,
			createdAt: t.now(),
		}
	}
	t.mu.Unlock()

	// repo への書き込みを伴うためロック外で実行する
	t.expireJobs(expired)

	return !exists
}

// Release はキーのロックを無条件に削除する
// 成功・失敗・パニックのどの経路でも必ず呼ぶこと（通常は defer で）
func (t *LockTable) Release(key string) {
	t.mu.Lock()
	delete(t.locks, key)
	t.mu.Unlock()
}

// Bind はロックにジョブIDを後付けする
// 投入時のファイル名ロックはジョブ作成前に取得されるため、作成後にここで紐づける
func (t *LockTable) Bind(key string, jobID uuid.UUID) {
	t.mu.Lock()
	if l, ok := t.locks[key]; ok {
		l.jobID = jobID
	}
	t.mu.Unlock()
}

// SetStatus はロックに紐づく状態タグを更新する
func (t *LockTable) SetStatus(key string, status Status) {
	t.mu.Lock()
	if l, ok := t.locks[key]; ok {
		l.status = status
	}
	t.mu.Unlock()
}

// Len は現在のロック数を返す
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.locks)
}

// SweepStale は TTL を超えたロックを削除し、pending / processing のまま
// 放置されたジョブをエラー状態へ遷移させる
func (t *LockTable) SweepStale() {
	t.expireJobs(t.sweepStale())
}

// sweepStale は stale なロックをテーブルから取り除き、
// ジョブの後始末が必要なエントリを返す
func (t *LockTable) sweepStale() []*jobLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var expired []*jobLock
	for key, l := range t.locks {
		if now.Sub(l.createdAt) <= t.ttl {
			continue
		}
		delete(t.locks, key)
		if l.status.Active() {
			expired = append(expired, l)
		}
	}
	return expired
}

func (t *LockTable) expireJobs(expired []*jobLock) {
	if t.expirer == nil {
		return
	}
	for _, l := range expired {
		if l.jobID == uuid.Nil {
			continue
		}
		t.logger.Warn("translation lock expired",
			"jobID", l.jobID,
			"ownerID", l.ownerID,
			"age", t.now().Sub(l.createdAt).String(),
		)
		t.expirer(l.jobID)
	}
}
