package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/jinford/honyaku/internal/core/translation"
	"github.com/jinford/honyaku/internal/infra/notify"
)

// JobSubmitAction は翻訳ジョブを投入するコマンドのアクション
// ジョブはプロセス内で非同期に実行されるため、完了イベントを受信するまで待機する
func JobSubmitAction(ctx context.Context, cmd *cli.Command) error {
	filePath := cmd.String("file")
	glossaryPath := cmd.String("glossary")
	ownerID := cmd.String("owner")
	source := cmd.String("source")
	target := cmd.String("target")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("ファイルの読み込みに失敗: %w", err)
	}

	glossaryRef := ""
	if glossaryPath != "" {
		glossaryData, err := os.ReadFile(glossaryPath)
		if err != nil {
			return fmt.Errorf("用語集の読み込みに失敗: %w", err)
		}
		base := filepath.Base(glossaryPath)
		ext := filepath.Ext(base)
		glossaryRef = fmt.Sprintf("glossaries/%s_%d%s", base[:len(base)-len(ext)], time.Now().UnixMilli(), ext)
		if err := appCtx.Container.Storage.WriteBytes(ctx, glossaryRef, glossaryData); err != nil {
			return fmt.Errorf("用語集の保存に失敗: %w", err)
		}
	}

	// 完了イベントを取りこぼさないよう、投入前に購読する
	events, unsubscribe := appCtx.Container.Hub.Subscribe()
	defer unsubscribe()

	logger := appCtx.Logger()
	logger.Info("翻訳ジョブを投入します",
		"file", filePath,
		"source", source,
		"target", target,
	)

	jobID, err := appCtx.Container.Service.Submit(ctx, translation.SubmitParams{
		OwnerID:        ownerID,
		Filename:       filepath.Base(filePath),
		SourceLanguage: source,
		TargetLanguage: target,
		Data:           data,
		GlossaryRef:    glossaryRef,
	})
	if err != nil {
		if errors.Is(err, translation.ErrDuplicateSubmission) {
			return fmt.Errorf("同名ファイルの翻訳が進行中です: %s", filepath.Base(filePath))
		}
		return fmt.Errorf("ジョブの投入に失敗: %w", err)
	}

	fmt.Printf("ジョブを投入しました: %s\n", jobID)

	return waitForCompletion(ctx, appCtx, events, jobID)
}

// waitForCompletion は完了または失敗のイベントを受信するまで待機する
func waitForCompletion(ctx context.Context, appCtx *AppContext, events <-chan notify.Event, jobID uuid.UUID) error {
	id := jobID.String()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch payload := ev.Payload.(type) {
			case notify.ProgressPayload:
				if payload.ID == id {
					fmt.Printf("進捗: %d%%\n", payload.Progress)
				}
			case notify.CompletedPayload:
				if payload.ID == id {
					fmt.Printf("完了: status=%s translated=%s\n", payload.Status, payload.TranslatedRef)
					return nil
				}
			case notify.ErrorPayload:
				if payload.ID == id {
					return fmt.Errorf("翻訳に失敗しました: %s", payload.Error)
				}
			}
		}
	}
}

// JobStatusAction はジョブの状態を表示するコマンドのアクション
func JobStatusAction(ctx context.Context, cmd *cli.Command) error {
	idStr := cmd.String("id")
	envFile := cmd.String("env")

	jobID, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("不正なジョブID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job, err := appCtx.Container.Jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, translation.ErrJobNotFound) {
			return fmt.Errorf("ジョブが見つかりません: %s", idStr)
		}
		return err
	}

	printJob(job)
	return nil
}

// JobListAction は所有者のジョブ一覧を表示するコマンドのアクション
func JobListAction(ctx context.Context, cmd *cli.Command) error {
	ownerID := cmd.String("owner")
	limit := cmd.Int("limit")
	envFile := cmd.String("env")

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	jobs, err := appCtx.Container.Jobs.ListByOwner(ctx, ownerID, int(limit))
	if err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("ジョブがありません")
		return nil
	}

	for _, job := range jobs {
		fmt.Printf("%s  %-22s  %3d%%  %s\n", job.ID, job.Status, job.Progress, job.OriginalName)
	}
	return nil
}

// JobDownloadAction は翻訳済み成果物を取り出すコマンドのアクション
func JobDownloadAction(ctx context.Context, cmd *cli.Command) error {
	idStr := cmd.String("id")
	outPath := cmd.String("output")
	envFile := cmd.String("env")

	jobID, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("不正なジョブID: %w", err)
	}

	appCtx, err := NewAppContext(ctx, envFile)
	if err != nil {
		return err
	}
	defer appCtx.Close()

	job, err := appCtx.Container.Jobs.Get(ctx, jobID)
	if err != nil {
		if errors.Is(err, translation.ErrJobNotFound) {
			return fmt.Errorf("ジョブが見つかりません: %s", idStr)
		}
		return err
	}
	if job.TranslatedRef == "" {
		return fmt.Errorf("翻訳済み成果物がまだありません (status=%s)", job.Status)
	}

	data, err := appCtx.Container.Storage.ReadBytes(ctx, job.TranslatedRef)
	if err != nil {
		return fmt.Errorf("成果物の読み込みに失敗: %w", err)
	}

	if outPath == "" {
		outPath = filepath.Base(job.TranslatedRef)
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		return fmt.Errorf("成果物の書き出しに失敗: %w", err)
	}

	fmt.Printf("保存しました: %s\n", outPath)
	return nil
}

func printJob(job *translation.Job) {
	fmt.Printf("ID:             %s\n", job.ID)
	fmt.Printf("所有者:         %s\n", job.OwnerID)
	fmt.Printf("ファイル名:     %s\n", job.OriginalName)
	fmt.Printf("言語:           %s -> %s\n", job.SourceLanguage, job.TargetLanguage)
	fmt.Printf("状態:           %s\n", job.Status)
	fmt.Printf("進捗:           %d%%\n", job.Progress)
	fmt.Printf("コスト:         $%.4f (入力 %d / 出力 %d トークン)\n",
		job.Cost.TotalCost, job.Cost.InputTokens, job.Cost.OutputTokens)
	if job.TranslatedRef != "" {
		fmt.Printf("翻訳済み:       %s\n", job.TranslatedRef)
	}
	if job.ErrorMessage != "" {
		fmt.Printf("エラー:         %s\n", job.ErrorMessage)
	}
	fmt.Printf("作成日時:       %s\n", job.CreatedAt.Format(time.RFC3339))
	fmt.Printf("更新日時:       %s\n", job.UpdatedAt.Format(time.RFC3339))
}
