package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/jinford/lava-submit/cmd/lava-submit/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args)
	stop()
	os.Exit(code)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:   "lava-submit",
		Usage:  "LAVAにテストジョブを投入し、終了を待って結果を報告する",
		Flags:  commands.SubmitFlags(),
		Action: commands.SubmitAction(),
		Commands: []*cli.Command{
			{
				Name:   "results",
				Usage:  "終了済みジョブのテストケース結果を報告する",
				Flags:  commands.ResultsFlags(),
				Action: commands.ResultsAction(),
			},
		},
	}
}

// run はコマンドを実行し、終了コードを返す
func run(ctx context.Context, args []string) int {
	if err := newApp().Run(ctx, args); err != nil {
		slog.Error("lava-submit failed", "error", err)
		return 1
	}
	return 0
}
