package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/internal/core/search"
	"github.com/jinford/faq-rag/internal/platform/container"
)

// SampleQuestions はパイプライン実行後に検索を確認する質問
var SampleQuestions = []string{
	"How do I cancel a booking?",
	"What happens if a renter cancels last-minute?",
	"Will I be charged a fee for canceling a booking?",
	"What if the renter is late returning my item?",
	"How does Leechy handle payments?",
}

// sampleTopK はサンプル質問ごとに表示する件数
const sampleTopK = 2

// PipelineRunAction は文書処理からコーパス保存、サンプル検索までを一括で実行するコマンドのアクション
func PipelineRunAction(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.StringSlice("url")
	if len(urls) == 0 {
		urls = DefaultWebPages
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	return runPipeline(ctx, os.Stdout, appCtx.Container, cmd.String("file"), urls, cmd.String("out-dir"))
}

func runPipeline(ctx context.Context, w io.Writer, c *container.Container, file string, urls []string, outDir string) error {
	docChunks := filepath.Join(outDir, DefaultDocChunksFile)
	webChunks := filepath.Join(outDir, DefaultWebChunksFile)

	fmt.Fprintln(w, "1. 文書を処理しています...")
	if _, err := runIngestDocument(ctx, w, c.Ingestion, file, docChunks, filepath.Join(outDir, DefaultQAPairsFile)); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n2. Webページを取得しています...")
	if _, err := runIngestWeb(ctx, w, c.Ingestion, urls, filepath.Join(outDir, DefaultWebContentFile), webChunks); err != nil {
		return err
	}

	fmt.Fprintln(w, "\n3. コーパスを構築しています...")
	corpus, err := runIndexBuild(ctx, w, c.Ingestion, docChunks, webChunks)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "\n4. サンプル質問で検索を確認しています...")
	serving, err := c.NewServing(corpus)
	if err != nil {
		return err
	}
	runSampleQuestions(ctx, w, serving.Search, SampleQuestions, sampleTopK)

	fmt.Fprintln(w, "\nパイプラインが完了しました")
	return nil
}

// Retriever はサンプル検索に使う検索インターフェース
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]search.Result, error)
}

func runSampleQuestions(ctx context.Context, w io.Writer, r Retriever, questions []string, k int) {
	for _, q := range questions {
		fmt.Fprintf(w, "\nQuestion: %s\n", q)

		results, err := r.Retrieve(ctx, q, k)
		if err != nil {
			fmt.Fprintf(w, "検索に失敗: %v\n", err)
			continue
		}

		fmt.Fprintf(w, "Top %d results:\n", k)
		for i, res := range results {
			fmt.Fprintf(w, "Result %d (score: %.4f):\n", i+1, res.Score)
			fmt.Fprintf(w, "%s\n", truncateString(res.Document, 200))
		}
	}
}
