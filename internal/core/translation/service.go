package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultChunkDelay はチャンク間に挟む待機時間
	// 外部APIのレート制限をならすためのベストエフォートなペーシング
	DefaultChunkDelay = 500 * time.Millisecond

	// DefaultFailedChunkLimit はジョブ全体を中断するまでに許容する失敗チャンク数
	DefaultFailedChunkLimit = 2
)

// SubmitParams は翻訳ジョブの投入パラメータ
type SubmitParams struct {
	OwnerID        string
	Filename       string
	SourceLanguage string
	TargetLanguage string
	Data           []byte
	// GlossaryRef は用語集ファイルへの参照（任意）
	GlossaryRef string
}

func (p SubmitParams) validate() error {
	if p.OwnerID == "" {
		return &ValidationError{Field: "ownerID", Reason: "caller is not authenticated"}
	}
	if p.Filename == "" {
		return &ValidationError{Field: "filename", Reason: "must not be empty"}
	}
	if p.SourceLanguage == "" {
		return &ValidationError{Field: "sourceLanguage", Reason: "must not be empty"}
	}
	if p.TargetLanguage == "" {
		return &ValidationError{Field: "targetLanguage", Reason: "must not be empty"}
	}
	if len(p.Data) == 0 {
		return &ValidationError{Field: "file", Reason: "no file uploaded"}
	}
	return nil
}

// Service は翻訳ジョブのユースケースを提供する
// ジョブ1件の実行を駆動するオーケストレータであり、pending を離れた後の
// status / progress / cost の唯一の書き手となる
type Service struct {
	repo       Repository
	storage    Storage
	extractor  Extractor
	renderer   Renderer
	translator Translator
	notifier   Notifier
	locks      *LockTable
	logger     *slog.Logger

	maxChunkSize     int
	chunkDelay       time.Duration
	failedChunkLimit int

	sleep func(ctx context.Context, d time.Duration) error
	spawn func(fn func())
}

// ServiceOption は Service のオプション設定
type ServiceOption func(*Service)

// WithLogger は Service にロガーを設定する
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithServiceMaxChunkSize はチャンク分割の上限文字数を設定する
func WithServiceMaxChunkSize(size int) ServiceOption {
	return func(s *Service) {
		if size > 0 {
			s.maxChunkSize = size
		}
	}
}

// WithChunkDelay はチャンク間の待機時間を設定する
func WithChunkDelay(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.chunkDelay = d
	}
}

// WithFailedChunkLimit は許容する失敗チャンク数を設定する
func WithFailedChunkLimit(limit int) ServiceOption {
	return func(s *Service) {
		s.failedChunkLimit = limit
	}
}

// WithLockTable はロックテーブルを差し替える
func WithLockTable(locks *LockTable) ServiceOption {
	return func(s *Service) {
		s.locks = locks
	}
}

// WithSpawnFunc はジョブの非同期起動方法を差し替える（テスト用）
func WithSpawnFunc(spawn func(fn func())) ServiceOption {
	return func(s *Service) {
		s.spawn = spawn
	}
}

// WithServiceSleepFunc はペーシングの待機処理を差し替える（テスト用）
func WithServiceSleepFunc(sleep func(ctx context.Context, d time.Duration) error) ServiceOption {
	return func(s *Service) {
		s.sleep = sleep
	}
}

// NewService は新しい Service を作成する
func NewService(
	repo Repository,
	storage Storage,
	extractor Extractor,
	renderer Renderer,
	translator Translator,
	notifier Notifier,
	opts ...ServiceOption,
) *Service {
	s := &Service{
		repo:             repo,
		storage:          storage,
		extractor:        extractor,
		renderer:         renderer,
		translator:       translator,
		notifier:         notifier,
		logger:           slog.Default(),
		maxChunkSize:     DefaultMaxChunkSize,
		chunkDelay:       DefaultChunkDelay,
		failedChunkLimit: DefaultFailedChunkLimit,
		sleep:            sleepContext,
		spawn:            func(fn func()) { go fn() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locks == nil {
		s.locks = NewLockTable(
			WithExpirer(s.expireJob),
			WithLockLogger(s.logger),
		)
	}
	return s
}

// Locks は共有ロックテーブルを返す
func (s *Service) Locks() *LockTable {
	return s.locks
}

// Submit は翻訳ジョブを投入する
// (所有者, ファイル名) のロックで二重投入を弾き、ジョブ行を pending で
// 作成して非同期に Run を起動する。呼び出し元にはジョブIDを即座に返す
func (s *Service) Submit(ctx context.Context, params SubmitParams) (uuid.UUID, error) {
	if err := params.validate(); err != nil {
		return uuid.Nil, err
	}

	fileKey := LockKey(params.OwnerID, params.Filename)
	if !s.locks.TryAcquire(fileKey, params.OwnerID, uuid.Nil, StatusPending) {
		return uuid.Nil, ErrDuplicateSubmission
	}

	ref := uploadRef(params.Filename)
	if err := s.storage.WriteBytes(ctx, ref, params.Data); err != nil {
		s.locks.Release(fileKey)
		return uuid.Nil, fmt.Errorf("failed to store uploaded document: %w", err)
	}

	now := time.Now()
	job := &Job{
		ID:             uuid.New(),
		OwnerID:        params.OwnerID,
		OriginalName:   params.Filename,
		SourceLanguage: params.SourceLanguage,
		TargetLanguage: params.TargetLanguage,
		OriginalRef:    ref,
		GlossaryRef:    params.GlossaryRef,
		Status:         StatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		if derr := s.storage.Delete(ctx, ref); derr != nil {
			s.logger.Warn("failed to remove uploaded document", "ref", ref, "error", derr)
		}
		s.locks.Release(fileKey)
		return uuid.Nil, fmt.Errorf("failed to create translation job: %w", err)
	}
	s.locks.Bind(fileKey, job.ID)

	s.notifier.EmitStarted(job)

	// ジョブは投入リクエストから切り離して実行する
	runCtx := context.WithoutCancel(ctx)
	s.spawn(func() {
		defer s.locks.Release(fileKey)
		s.locks.SetStatus(fileKey, StatusProcessing)
		if err := s.Run(runCtx, job.ID); err != nil {
			s.logger.Error("translation job failed", "jobID", job.ID, "error", err)
		}
	})

	return job.ID, nil
}

// Run は翻訳ジョブを最後まで駆動する
// ジョブ内部の失敗はすべてここで捕捉され、ジョブ行の error 状態へ
// 変換される。ロックはどの経路でも必ず解放される
func (s *Service) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}
	if !job.Status.Active() {
		return ErrJobNotRunnable
	}

	runKey := LockKey(job.OwnerID, jobID.String())
	if !s.locks.TryAcquire(runKey, job.OwnerID, jobID, StatusProcessing) {
		return ErrJobNotRunnable
	}
	defer s.locks.Release(runKey)

	if err := s.process(ctx, job); err != nil {
		s.failJob(ctx, jobID, err)
		return err
	}
	return nil
}

// process は1ジョブの翻訳パイプライン本体
func (s *Service) process(ctx context.Context, job *Job) error {
	s.updateJobLogged(ctx, job.ID, statusUpdate(StatusProcessing, 0))

	data, err := s.storage.ReadBytes(ctx, job.OriginalRef)
	if err != nil {
		return fmt.Errorf("failed to read source document: %w", err)
	}

	text, err := s.extractor.ExtractText(ctx, data, mimeHintFor(job.OriginalName))
	if err != nil {
		return &ExtractionError{Err: err}
	}

	glossary := s.loadGlossary(ctx, job)

	chunks := Split(text, s.maxChunkSize)
	if len(chunks) == 0 {
		return errors.New("document contains no translatable text")
	}

	memo := NewMemo()
	var parts []string
	var total CostSummary
	failed := 0
	n := len(chunks)

	for i, chunk := range chunks {
		result, ok := memo.Get(chunk)
		if !ok {
			result, err = s.translator.Translate(ctx, ChunkRequest{
				Text:           chunk,
				SourceLanguage: job.SourceLanguage,
				TargetLanguage: job.TargetLanguage,
				Glossary:       glossary,
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed++
				s.logger.Error("failed to translate chunk",
					"jobID", job.ID,
					"chunk", i+1,
					"total", n,
					"error", err,
				)
				status := StatusProcessingWithErrors
				msg := fmt.Sprintf("failed to translate part %d: %v", i+1, err)
				s.updateJobLogged(ctx, job.ID, JobUpdate{Status: &status, ErrorMessage: &msg})

				if failed > s.failedChunkLimit {
					return fmt.Errorf("too many errors during translation: %d parts failed", failed)
				}
				continue
			}
			memo.Put(chunk, result)
		}

		parts = append(parts, result.Text)
		total.Add(result.Cost)

		percent := int(math.Round(float64(i+1) / float64(n) * 100))
		status := StatusProcessing
		if failed > 0 {
			status = StatusProcessingWithErrors
		}
		cost := total
		s.updateJobLogged(ctx, job.ID, JobUpdate{Status: &status, Progress: &percent, Cost: &cost})
		s.notifier.EmitProgress(job.ID, percent)

		s.logger.Info("translation progress",
			"jobID", job.ID,
			"percent", percent,
			"totalCost", fmt.Sprintf("$%.4f", total.TotalCost),
		)

		if i < n-1 {
			if err := s.sleep(ctx, s.chunkDelay); err != nil {
				return err
			}
		}
	}

	if len(parts) == 0 {
		return ErrNoChunksTranslated
	}

	output := strings.Join(parts, "\n")
	artifact, err := s.renderer.Render(output, formatFor(job.OriginalName))
	if err != nil {
		return fmt.Errorf("failed to render translated artifact: %w", err)
	}

	ref := translatedRef(job.OriginalName)
	if err := s.storage.WriteBytes(ctx, ref, artifact); err != nil {
		return fmt.Errorf("failed to save translated artifact: %w", err)
	}
	if ok, err := s.storage.Exists(ctx, ref); err != nil || !ok {
		return errors.New("translated artifact missing after write")
	}

	final := StatusCompleted
	msg := ""
	if failed > 0 {
		final = StatusCompletedWithErrors
		msg = fmt.Sprintf("completed with %d failed parts", failed)
	}
	hundred := 100
	cost := total
	update := JobUpdate{
		Status:        &final,
		Progress:      &hundred,
		Cost:          &cost,
		TranslatedRef: &ref,
		ErrorMessage:  &msg,
	}
	if err := s.updateJobWithRetry(ctx, job.ID, update); err != nil {
		s.logger.Error("failed to persist terminal status", "jobID", job.ID, "error", err)
	}

	job.Status = final
	job.Progress = 100
	job.Cost = total
	job.TranslatedRef = ref
	job.ErrorMessage = msg
	s.notifier.EmitCompleted(job)

	return nil
}

// loadGlossary は用語集を読み込んでプロンプト向けに圧縮する
// 読み込みの失敗はジョブを止めない（用語集なしで続行する）
func (s *Service) loadGlossary(ctx context.Context, job *Job) string {
	if job.GlossaryRef == "" {
		return ""
	}
	data, err := s.storage.ReadBytes(ctx, job.GlossaryRef)
	if err != nil {
		s.logger.Warn("failed to read glossary", "ref", job.GlossaryRef, "error", err)
		return ""
	}
	if strings.EqualFold(path.Ext(job.GlossaryRef), ".csv") {
		text, err := ParseGlossaryCSV(data)
		if err == nil {
			return text
		}
		s.logger.Warn("failed to parse glossary csv, using raw content", "ref", job.GlossaryRef, "error", err)
	}
	return CompactGlossary(string(data))
}

// failJob はジョブを error 状態へ遷移させてエラーイベントを流す
// 永続化は1回リトライし、それでも失敗した場合はログに残して飲み込む
func (s *Service) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	// 呼び出し元のキャンセルに巻き込まれないようにする
	ctx = context.WithoutCancel(ctx)

	status := StatusError
	msg := cause.Error()
	update := JobUpdate{Status: &status, ErrorMessage: &msg}
	if err := s.updateJobWithRetry(ctx, jobID, update); err != nil {
		s.logger.Error("failed to persist error status", "jobID", jobID, "error", err)
	}
	s.notifier.EmitError(jobID, msg)
}

// expireJob は stale ロック掃除で見つかった放置ジョブを error へ遷移させる
func (s *Service) expireJob(jobID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		s.logger.Error("failed to load expired job", "jobID", jobID, "error", err)
		return
	}
	if !job.Status.Active() {
		return
	}

	status := StatusError
	msg := "expired due to timeout"
	if err := s.repo.Update(ctx, jobID, JobUpdate{Status: &status, ErrorMessage: &msg}); err != nil {
		s.logger.Error("failed to expire job", "jobID", jobID, "error", err)
		return
	}
	s.notifier.EmitError(jobID, msg)
}

// updateJobWithRetry は部分更新を1回だけリトライ付きで永続化する
func (s *Service) updateJobWithRetry(ctx context.Context, jobID uuid.UUID, update JobUpdate) error {
	err := s.repo.Update(ctx, jobID, update)
	if err == nil {
		return nil
	}
	s.logger.Warn("job update failed, retrying once", "jobID", jobID, "error", err)
	return s.repo.Update(ctx, jobID, update)
}

// updateJobLogged は進捗系の部分更新をベストエフォートで永続化する
// 進捗更新の失敗は翻訳を中断させない
func (s *Service) updateJobLogged(ctx context.Context, jobID uuid.UUID, update JobUpdate) {
	if err := s.repo.Update(ctx, jobID, update); err != nil {
		s.logger.Warn("failed to persist job update", "jobID", jobID, "error", err)
	}
}

func statusUpdate(status Status, percent int) JobUpdate {
	return JobUpdate{Status: &status, Progress: &percent}
}

// uploadRef はアップロード原文の保存先参照を生成する
func uploadRef(filename string) string {
	ext := path.Ext(filename)
	base := strings.TrimSuffix(path.Base(filename), ext)
	return fmt.Sprintf("uploads/%s_%d%s", base, time.Now().UnixMilli(), ext)
}

// translatedRef は翻訳成果物の保存先参照を生成する
func translatedRef(filename string) string {
	ext := path.Ext(filename)
	if ext == "" {
		ext = ".txt"
	}
	return fmt.Sprintf("translated/translated_%d%s", time.Now().UnixMilli(), ext)
}

func mimeHintFor(filename string) string {
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	return "text/plain"
}

func formatFor(filename string) string {
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		return "pdf"
	}
	return "text"
}
