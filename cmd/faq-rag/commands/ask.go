package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jinford/faq-rag/internal/core/ask"
)

// AskAction は質問に回答するコマンドのアクション
func AskAction(ctx context.Context, cmd *cli.Command) error {
	question := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("質問を指定してください")
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

	result, err := serving.Ask.AnswerQuestion(ctx, question)
	if err != nil {
		return fmt.Errorf("質問応答に失敗: %w", err)
	}

	printAskResult(os.Stdout, result, cmd.Bool("show-sources"))
	return nil
}

func printAskResult(w io.Writer, result *ask.AskResult, showSources bool) {
	fmt.Fprintln(w, result.Answer)

	if !showSources || len(result.Sources) == 0 {
		return
	}

	fmt.Fprintf(w, "\n参照したチャンク:\n")
	for i, src := range result.Sources {
		fmt.Fprintf(w, "  %d. (score: %.4f) %s\n", i+1, src.Score, truncateString(src.Document, 120))
	}
}
