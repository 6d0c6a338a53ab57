package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinford/honyaku/internal/core/translation"
)

// JobRepository は翻訳ジョブの永続化アダプター
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository は新しい JobRepository を作成する
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

var _ translation.Repository = (*JobRepository)(nil)

// schema は translation_jobs テーブルの定義
const schema = `
CREATE TABLE IF NOT EXISTS translation_jobs (
	id UUID PRIMARY KEY,
	owner_id TEXT NOT NULL,
	original_name TEXT NOT NULL,
	source_language TEXT NOT NULL,
	target_language TEXT NOT NULL,
	original_ref TEXT NOT NULL,
	translated_ref TEXT NOT NULL DEFAULT '',
	glossary_ref TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	progress INT NOT NULL DEFAULT 0,
	input_tokens BIGINT NOT NULL DEFAULT 0,
	output_tokens BIGINT NOT NULL DEFAULT 0,
	input_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	output_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_cost DOUBLE PRECISION NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_translation_jobs_owner ON translation_jobs (owner_id, created_at DESC);
`

// EnsureSchema はテーブルを作成する（存在する場合は何もしない）
func (r *JobRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Create はジョブを新規作成する
func (r *JobRepository) Create(ctx context.Context, job *translation.Job) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO translation_jobs (
			id, owner_id, original_name, source_language, target_language,
			original_ref, translated_ref, glossary_ref, status, progress,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		job.ID,
		job.OwnerID,
		job.OriginalName,
		job.SourceLanguage,
		job.TargetLanguage,
		job.OriginalRef,
		job.TranslatedRef,
		job.GlossaryRef,
		string(job.Status),
		job.Progress,
		job.Cost.InputTokens,
		job.Cost.OutputTokens,
		job.Cost.InputCost,
		job.Cost.OutputCost,
		job.Cost.TotalCost,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create translation job: %w", err)
	}
	return nil
}

// Get はIDでジョブを取得する
func (r *JobRepository) Get(ctx context.Context, id uuid.UUID) (*translation.Job, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, owner_id, original_name, source_language, target_language,
			original_ref, translated_ref, glossary_ref, status, progress,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			error_message, created_at, updated_at
		FROM translation_jobs
		WHERE id = $1`,
		id,
	)

	var job translation.Job
	var status string
	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.OriginalName,
		&job.SourceLanguage,
		&job.TargetLanguage,
		&job.OriginalRef,
		&job.TranslatedRef,
		&job.GlossaryRef,
		&status,
		&job.Progress,
		&job.Cost.InputTokens,
		&job.Cost.OutputTokens,
		&job.Cost.InputCost,
		&job.Cost.OutputCost,
		&job.Cost.TotalCost,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, translation.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get translation job: %w", err)
	}
	job.Status = translation.Status(status)

	return &job, nil
}

// ListByOwner は所有者のジョブを新しい順に一覧取得する
func (r *JobRepository) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*translation.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_id, original_name, source_language, target_language,
			original_ref, translated_ref, glossary_ref, status, progress,
			input_tokens, output_tokens, input_cost, output_cost, total_cost,
			error_message, created_at, updated_at
		FROM translation_jobs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list translation jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*translation.Job
	for rows.Next() {
		var job translation.Job
		var status string
		if err := rows.Scan(
			&job.ID,
			&job.OwnerID,
			&job.OriginalName,
			&job.SourceLanguage,
			&job.TargetLanguage,
			&job.OriginalRef,
			&job.TranslatedRef,
			&job.GlossaryRef,
			&status,
			&job.Progress,
			&job.Cost.InputTokens,
			&job.Cost.OutputTokens,
			&job.Cost.InputCost,
			&job.Cost.OutputCost,
			&job.Cost.TotalCost,
			&job.ErrorMessage,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan translation job: %w", err)
		}
		job.Status = translation.Status(status)
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list translation jobs: %w", err)
	}
	return jobs, nil
}

// Update はジョブを部分更新する
// JobUpdate の nil フィールドは既存値を保持するため、並行して書かれた
// 他のフィールドを潰さない
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, update translation.JobUpdate) error {
	var sets []string
	var args []any

	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		add("status", string(*update.Status))
	}
	if update.Progress != nil {
		add("progress", *update.Progress)
	}
	if update.Cost != nil {
		add("input_tokens", update.Cost.InputTokens)
		add("output_tokens", update.Cost.OutputTokens)
		add("input_cost", update.Cost.InputCost)
		add("output_cost", update.Cost.OutputCost)
		add("total_cost", update.Cost.TotalCost)
	}
	if update.TranslatedRef != nil {
		add("translated_ref", *update.TranslatedRef)
	}
	if update.ErrorMessage != nil {
		add("error_message", *update.ErrorMessage)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf(
		"UPDATE translation_jobs SET %s WHERE id = $%d",
		strings.Join(sets, ", "),
		len(args),
	)

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update translation job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return translation.ErrJobNotFound
	}
	return nil
}
