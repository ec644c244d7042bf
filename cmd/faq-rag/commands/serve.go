package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	httpapi "github.com/jinford/faq-rag/internal/interface/http"
)

// ServeAction はチャットAPIサーバーを起動するコマンドのアクション
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	appCtx, err := NewAppContext(ctx, cmd.String("env"))
	if err != nil {
		return err
	}
	defer appCtx.Close()

	// コーパスが読めなければ起動しない
	serving, err := appCtx.Container.LoadServing(ctx)
	if err != nil {
		return err
	}

	cfg := httpapi.DefaultConfig()
	cfg.Host = appCtx.Config.Server.Host
	cfg.Port = appCtx.Config.Server.Port
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}

	server := httpapi.NewServer(cfg, serving.Ask,
		httpapi.WithSearcher(serving.Search),
		httpapi.WithLogger(appCtx.Logger()),
	)

	appCtx.Logger().Info("コーパスを読み込みました", "documents", serving.Corpus.Len(), "addr", server.Addr())
	return server.Run(ctx)
}
