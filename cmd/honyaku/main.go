package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jinford/honyaku/cmd/honyaku/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 構造化ログの設定
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	app := &cli.Command{
		Name:  "honyaku",
		Usage: "ドキュメント翻訳ジョブ管理システム",
		Commands: []*cli.Command{
			{
				Name:  "job",
				Usage: "翻訳ジョブ管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "submit",
						Usage: "翻訳ジョブを投入して完了まで待機",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "file",
								Usage:    "翻訳対象ファイルパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "glossary",
								Usage: "用語集ファイルパス（任意）",
							},
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ID",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "source",
								Usage:    "翻訳元言語 (例: en)",
								Required: true,
							},
							&cli.StringFlag{
								Name:     "target",
								Usage:    "翻訳先言語 (例: ja)",
								Required: true,
							},
						},
						Action: commands.JobSubmitAction,
					},
					{
						Name:  "status",
						Usage: "ジョブの状態を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ジョブID",
								Required: true,
							},
						},
						Action: commands.JobStatusAction,
					},
					{
						Name:  "list",
						Usage: "所有者のジョブ一覧を表示",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "owner",
								Usage:    "所有者ID",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "limit",
								Usage: "取得件数",
								Value: 50,
							},
						},
						Action: commands.JobListAction,
					},
					{
						Name:  "download",
						Usage: "翻訳済み成果物を取り出す",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "env",
								Usage: "環境変数ファイルパス",
								Value: ".env",
							},
							&cli.StringFlag{
								Name:     "id",
								Usage:    "ジョブID",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "output",
								Usage: "出力ファイルパス（省略時は成果物名）",
							},
						},
						Action: commands.JobDownloadAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
