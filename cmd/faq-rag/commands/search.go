package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/internal/core/search"
)

// SearchAction はコーパスを検索して結果を表示するコマンドのアクション
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("検索クエリを指定してください")
	}

	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	serving, err := appCtx.Container.LoadServing(ctx)
	if err != nil {
		return err
	}

	results, err := serving.Search.Retrieve(ctx, query, int(cmd.Int("k")))
	if err != nil {
		return fmt.Errorf("検索に失敗: %w", err)
	}

	renderResultsTable(os.Stdout, results)
	return nil
}

// renderResultsTable は検索結果をテーブル表示します
func renderResultsTable(w io.Writer, results []search.Result) {
	if len(results) == 0 {
		fmt.Fprintln(w, "該当するチャンクはありません")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Rank", "Score", "QA", "Document")
	for i, r := range results {
		qa := ""
		if search.IsStructured(r.Document) {
			qa = "yes"
		}
		table.Append(
			strconv.Itoa(i+1),
			fmt.Sprintf("%.4f", r.Score),
			qa,
			truncateString(r.Document, 80),
		)
	}
	table.Render()
}
