package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/internal/core/ingestion"
)

// 出力ファイルのデフォルト名
const (
	DefaultDocChunksFile  = "faq_chunks.json"
	DefaultQAPairsFile    = "faq_qa_pairs.json"
	DefaultWebContentFile = "website_content.json"
	DefaultWebChunksFile  = "website_chunks.json"
)

// DefaultWebPages は取得対象のデフォルトページ
var DefaultWebPages = []string{
	"https://www.leechy.app/",
	"https://www.leechy.app/terms-of-service",
	"https://www.leechy.app/privacy-policy",
}

// IngestDocumentAction は FAQ 文書をチャンク化して JSON に書き出すコマンドのアクション
func IngestDocumentAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	_, err = runIngestDocument(ctx, os.Stdout, appCtx.Container.Ingestion,
		cmd.String("file"), cmd.String("chunks-out"), cmd.String("qa-out"))
	return err
}

// IngestWebAction はWebページを取得してチャンクを JSON に書き出すコマンドのアクション
func IngestWebAction(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.StringSlice("url")
	if len(urls) == 0 {
		urls = DefaultWebPages
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	_, err = runIngestWeb(ctx, os.Stdout, appCtx.Container.Ingestion,
		urls, cmd.String("content-out"), cmd.String("chunks-out"))
	return err
}

func runIngestDocument(ctx context.Context, w io.Writer, svc *ingestion.Service, file, chunksOut, qaOut string) (*ingestion.DocumentResult, error) {
	if file == "" {
		return nil, fmt.Errorf("--file は必須です")
	}

	result, err := svc.ProcessDocument(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("文書の処理に失敗: %w", err)
	}

	if err := ingestion.WriteJSONFile(chunksOut, result.Chunks); err != nil {
		return nil, err
	}
	if err := ingestion.WriteJSONFile(qaOut, result.QAPairs); err != nil {
		return nil, err
	}

	renderSummaryTable(w, [][]string{
		{"Source", result.Source},
		{"Pages", strconv.Itoa(result.Pages)},
		{"Chunks", strconv.Itoa(len(result.Chunks))},
		{"QA Pairs", strconv.Itoa(len(result.QAPairs))},
		{"Chunks File", chunksOut},
		{"QA File", qaOut},
	})

	slog.Info("文書の取り込みが完了", "source", file, "chunks", len(result.Chunks), "qaPairs", len(result.QAPairs))
	return result, nil
}

func runIngestWeb(ctx context.Context, w io.Writer, svc *ingestion.Service, urls []string, contentOut, chunksOut string) (*ingestion.WebResult, error) {
	result, err := svc.ProcessWebPages(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("Webページの処理に失敗: %w", err)
	}

	if err := ingestion.WriteJSONFile(contentOut, ingestion.WebContent(result.Pages)); err != nil {
		return nil, err
	}
	if err := ingestion.WriteJSONFile(chunksOut, result.Chunks); err != nil {
		return nil, err
	}

	renderSummaryTable(w, [][]string{
		{"Pages", strconv.Itoa(len(result.Pages))},
		{"Failed", strconv.Itoa(len(result.Failed))},
		{"Chunks", strconv.Itoa(len(result.Chunks))},
		{"Content File", contentOut},
		{"Chunks File", chunksOut},
	})

	slog.Info("Webページの取り込みが完了", "pages", len(result.Pages), "failed", len(result.Failed), "chunks", len(result.Chunks))
	return result, nil
}

// renderSummaryTable は項目と値の2列テーブルを表示します
func renderSummaryTable(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.Header("Item", "Value")
	for _, row := range rows {
		table.Append(row[0], row[1])
	}
	table.Render()
}
