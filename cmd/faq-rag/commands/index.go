package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/internal/core/index"
	"github.com/jinford/faq-rag/internal/core/ingestion"
)

// IndexBuildAction はチャンクファイルからコーパスを構築して保存するコマンドのアクション
func IndexBuildAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	_, err = runIndexBuild(ctx, os.Stdout, appCtx.Container.Ingestion, cmd.String("doc-chunks"), cmd.String("web-chunks"))
	return err
}

func runIndexBuild(ctx context.Context, w io.Writer, svc *ingestion.Service, docChunks, webChunks string) (*index.Corpus, error) {
	if docChunks == "" && webChunks == "" {
		return nil, fmt.Errorf("--doc-chunks または --web-chunks のいずれかが必要です")
	}

	corpus, stats, err := svc.BuildFromChunkFiles(ctx, docChunks, webChunks)
	if err != nil {
		return nil, fmt.Errorf("コーパスの構築に失敗: %w", err)
	}

	renderBuildStats(w, stats)

	slog.Info("コーパスを保存しました", "documents", corpus.Len(), "dimension", corpus.Dimension())
	return corpus, nil
}

func renderBuildStats(w io.Writer, stats *ingestion.BuildStats) {
	renderSummaryTable(w, [][]string{
		{"Input Chunks", strconv.Itoa(stats.InputChunks)},
		{"Documents", strconv.Itoa(stats.Documents)},
		{"Empty", strconv.Itoa(stats.Empty)},
		{"Skipped", strconv.Itoa(stats.Skipped)},
	})
}
