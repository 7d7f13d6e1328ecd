package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/jinford/lava-submit/internal/core/testrun"
	"github.com/jinford/lava-submit/internal/platform/config"
	"github.com/jinford/lava-submit/internal/platform/container"
)

// ResultsFlags は results サブコマンドのフラグ
func ResultsFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     "job-id",
			Usage:    "結果を取得するLAVAジョブID",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "テスト種別（指定時はログ表示・ベンチマーク取得も行う）",
		},
		&cli.StringFlag{
			Name:    "build-id",
			Aliases: []string{"id"},
			Usage:   "ベンチマーク結果のビルド番号（baremetal-benchmarks の場合に必須）",
		},
		&cli.BoolFlag{
			Name:  "bundle",
			Usage: "結果バンドルの内容も表示する",
		},
	}
	return append(flags, commonFlags()...)
}

// ResultsAction は終了済みジョブの結果を報告するアクションを返す
func ResultsAction(opts ...container.ContainerOption) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		out := writer(cmd)
		jobID := testrun.JobID(cmd.String("job-id"))

		var testType testrun.TestType
		if v := cmd.String("type"); v != "" {
			t, err := testrun.ParseTestType(v)
			if err != nil {
				return err
			}
			testType = t
		}
		if testType.FetchesBenchmarks() && cmd.String("build-id") == "" {
			return fmt.Errorf("%w: build-id", ErrMissingFlags)
		}

		appCtx, err := NewAppContext(ctx, cmd, opts...)
		if err != nil {
			return err
		}
		defer appCtx.Close()

		if err := appCtx.Config.RequireToken(); err != nil {
			fmt.Fprintf(out, "%s not found in the environment variable. Exiting...\n", config.TokenEnvVar)
			return err
		}

		cont, err := appCtx.Container()
		if err != nil {
			return err
		}
		svc := cont.TestRunService

		state, err := cont.Scheduler.JobState(ctx, jobID)
		if err != nil {
			return fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
		}
		fmt.Fprintf(out, "Lava job URL: %s\n", cont.Scheduler.JobURL(jobID))
		fmt.Fprintf(out, "Job ended with %s status.\n", state)
		if !state.IsTerminal() {
			return fmt.Errorf("%w: job %s is %s", testrun.ErrJobNotFinished, jobID, state)
		}

		if cmd.Bool("bundle") {
			bundle, err := svc.FetchBundle(ctx, jobID)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(bundle, "", "  ")
			if err != nil {
				return fmt.Errorf("結果バンドルの整形に失敗: %w", err)
			}
			fmt.Fprintln(out, string(data))
		}

		summary, reportErr := svc.Report(ctx, jobID, testType, cmd.String("build-id"))
		if len(summary.Cases) > 0 {
			renderTestCases(out, summary, cont.Scheduler)
		}
		if reportErr != nil {
			return reportErr
		}

		if state != testrun.JobStateFinished {
			return fmt.Errorf("%w: job %s ended with %s", testrun.ErrJobNotFinished, jobID, state)
		}
		return nil
	}
}
