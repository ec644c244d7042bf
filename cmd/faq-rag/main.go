package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/cmd/faq-rag/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.Command{
		Name:  "faq-rag",
		Usage: "FAQ 文書と Web ページを対象にした RAG 質問応答システム",
		Commands: []*cli.Command{
			{
				Name:  "ingest",
				Usage: "取り込みコマンド",
				Commands: []*cli.Command{
					{
						Name:  "document",
						Usage: "FAQ 文書（PDF / テキスト）をチャンク化して JSON に書き出す",
						Flags: []cli.Flag{
							commands.EnvFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "FAQ 文書のパス",
								Required: true,
							},
							&cli.StringFlag{
								Name:  "chunks-out",
								Usage: "チャンクの出力先",
								Value: commands.DefaultDocChunksFile,
							},
							&cli.StringFlag{
								Name:  "qa-out",
								Usage: "QAペアの出力先",
								Value: commands.DefaultQAPairsFile,
							},
						},
						Action: commands.IngestDocumentAction,
					},
					{
						Name:  "web",
						Usage: "Webページを取得してチャンク化し JSON に書き出す",
						Flags: []cli.Flag{
							commands.EnvFlag(),
							&cli.StringSliceFlag{
								Name:  "url",
								Usage: "取得するページURL（複数指定可、省略時はデフォルトのページ）",
							},
							&cli.StringFlag{
								Name:  "content-out",
								Usage: "ページ本文の出力先",
								Value: commands.DefaultWebContentFile,
							},
							&cli.StringFlag{
								Name:  "chunks-out",
								Usage: "チャンクの出力先",
								Value: commands.DefaultWebChunksFile,
							},
						},
						Action: commands.IngestWebAction,
					},
				},
			},
			{
				Name:  "index",
				Usage: "コーパス管理コマンド",
				Commands: []*cli.Command{
					{
						Name:  "build",
						Usage: "チャンクファイルから Embedding を生成してコーパスを保存",
						Flags: []cli.Flag{
							commands.EnvFlag(),
							&cli.StringFlag{
								Name:  "doc-chunks",
								Usage: "文書チャンクファイル",
								Value: commands.DefaultDocChunksFile,
							},
							&cli.StringFlag{
								Name:  "web-chunks",
								Usage: "Webチャンクファイル（空文字で読み飛ばす）",
								Value: commands.DefaultWebChunksFile,
							},
						},
						Action: commands.IndexBuildAction,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "コーパスを検索",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					commands.EnvFlag(),
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"top-k"},
						Usage:   "取得件数",
						Value:   5,
					},
				},
				Action: commands.SearchAction,
			},
			{
				Name:      "ask",
				Usage:     "質問に回答",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					commands.EnvFlag(),
					&cli.BoolFlag{
						Name:  "show-sources",
						Usage: "参照したチャンクを表示",
					},
				},
				Action: commands.AskAction,
			},
			{
				Name:  "serve",
				Usage: "チャット API サーバーを起動",
				Flags: []cli.Flag{
					commands.EnvFlag(),
					&cli.IntFlag{
						Name:  "port",
						Usage: "待ち受けポート（省略時は SERVER_PORT）",
					},
				},
				Action: commands.ServeAction,
			},
			{
				Name:  "pipeline",
				Usage: "一括実行コマンド",
				Commands: []*cli.Command{
					{
						Name:  "run",
						Usage: "文書処理・Web取得・コーパス保存・サンプル検索を一括実行",
						Flags: []cli.Flag{
							commands.EnvFlag(),
							&cli.StringFlag{
								Name:     "file",
								Usage:    "FAQ 文書のパス",
								Required: true,
							},
							&cli.StringSliceFlag{
								Name:  "url",
								Usage: "取得するページURL（複数指定可）",
							},
							&cli.StringFlag{
								Name:  "out-dir",
								Usage: "中間ファイルの出力ディレクトリ",
								Value: ".",
							},
						},
						Action: commands.PipelineRunAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
