package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/jinford/lava-submit/internal/core/testrun"
	"github.com/jinford/lava-submit/internal/platform/config"
	"github.com/jinford/lava-submit/internal/platform/container"
)

// ErrMissingFlags は必須フラグが指定されていない場合のエラー
var ErrMissingFlags = errors.New("required flags not set")

// submitRequiredFlags はジョブ投入に必須のフラグ
// results サブコマンドの実行を妨げないよう、Required ではなくアクション内で検証する
var submitRequiredFlags = []string{"type", "jobname", "kernel", "lmodule", "tools-commit", "build-id"}

// SubmitFlags はジョブ投入（ルートコマンド）のフラグ
func SubmitFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "type",
			Aliases: []string{"t"},
			Usage:   "テスト種別（" + strings.Join(testrun.TestTypeNames(), ", ") + "）",
		},
		&cli.StringFlag{
			Name:    "jobname",
			Aliases: []string{"j"},
			Usage:   "LAVAジョブ名",
		},
		&cli.StringFlag{
			Name:    "kernel",
			Aliases: []string{"k"},
			Usage:   "カーネルイメージのURL",
		},
		&cli.StringFlag{
			Name:    "lmodule",
			Aliases: []string{"lm"},
			Usage:   "lttng-modules アーカイブのURL",
		},
		&cli.StringFlag{
			Name:    "tools-commit",
			Aliases: []string{"tc"},
			Usage:   "lttng-tools のコミット",
		},
		&cli.StringFlag{
			Name:    "build-id",
			Aliases: []string{"id"},
			Usage:   "Jenkinsのビルド番号",
		},
		&cli.StringFlag{
			Name:    "ust-commit",
			Aliases: []string{"uc"},
			Usage:   "lttng-ust のコミット（省略時は lttng-ust をビルドしない）",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "ジョブ定義を表示するだけで投入しない",
		},
		&cli.StringFlag{
			Name:  "template",
			Usage: "ジョブテンプレートファイル（省略時は組み込みテンプレート）",
		},
		&cli.IntFlag{
			Name:  "seed",
			Usage: "ファジング用のランダムシード（省略時はランダム）",
		},
	}
	return append(flags, commonFlags()...)
}

// SubmitAction はジョブを投入して結果を報告するアクションを返す
// opts はサービスコンテナの構築時に適用される
func SubmitAction(opts ...container.ContainerOption) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		out := writer(cmd)

		if err := requireFlags(cmd, submitRequiredFlags...); err != nil {
			return err
		}

		testType, err := testrun.ParseTestType(cmd.String("type"))
		if err != nil {
			fmt.Fprintf(out, "argument -t/--type %s unrecognized.\n", cmd.String("type"))
			fmt.Fprintln(out, "Possible values are:")
			for _, name := range testrun.TestTypeNames() {
				fmt.Fprintf(out, "\t %s\n", name)
			}
			return err
		}

		appCtx, err := NewAppContext(ctx, cmd, opts...)
		if err != nil {
			return err
		}
		defer appCtx.Close()

		debug := cmd.Bool("debug")
		if !debug {
			if err := appCtx.Config.RequireToken(); err != nil {
				fmt.Fprintf(out, "%s not found in the environment variable. Exiting...\n", config.TokenEnvVar)
				return err
			}
		}

		req, err := buildJobRequest(cmd, appCtx.Config, testType)
		if err != nil {
			return err
		}

		definition, err := testrun.RenderJob(req)
		if err != nil {
			return err
		}

		fmt.Fprintln(out, "Job to be submitted:")
		fmt.Fprintln(out, definition)

		if debug {
			return nil
		}

		appCtx.Logger.Info("submitting job",
			"job_name", req.JobName,
			"test_type", string(req.TestType),
			"device_type", string(req.DeviceType()),
			"build_id", req.BuildID,
		)

		cont, err := appCtx.Container()
		if err != nil {
			return err
		}

		outcome, err := cont.TestRunService.Run(ctx, definition, req)
		if outcome != nil && len(outcome.Summary.Cases) > 0 {
			renderTestCases(out, outcome.Summary, cont.Scheduler)
		}
		return err
	}
}

// buildJobRequest はフラグと設定からジョブリクエストを組み立てる
func buildJobRequest(cmd *cli.Command, cfg *config.Config, testType testrun.TestType) (testrun.JobRequest, error) {
	req := testrun.JobRequest{
		JobName:       cmd.String("jobname"),
		TestType:      testType,
		KernelURL:     cmd.String("kernel"),
		ModulesURL:    cmd.String("lmodule"),
		ToolsCommit:   cmd.String("tools-commit"),
		USTCommit:     cmd.String("ust-commit"),
		BuildID:       cmd.String("build-id"),
		RandomSeed:    rand.IntN(testrun.MaxRandomSeed + 1),
		KprobeRoundNB: testrun.DefaultKprobeRoundNB,
		NFSRootfsURL:  cfg.NFSRootfsURL,
		VlttngPath:    testrun.DefaultVlttngPath,
	}

	if cmd.IsSet("seed") {
		seed := int(cmd.Int("seed"))
		if seed < 0 || seed > testrun.MaxRandomSeed {
			return req, fmt.Errorf("--seed must be between 0 and %d: %d", testrun.MaxRandomSeed, seed)
		}
		req.RandomSeed = seed
	}

	if path := cmd.String("template"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("テンプレートファイルの読み込みに失敗: %w", err)
		}
		req.TemplateSource = string(data)
	}

	return req, nil
}

// requireFlags は指定されたフラグがすべて設定されていることを確認する
func requireFlags(cmd *cli.Command, names ...string) error {
	var missing []string
	for _, name := range names {
		if !cmd.IsSet(name) || strings.TrimSpace(cmd.String(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFlags, strings.Join(missing, ", "))
	}
	return nil
}

// renderTestCases はテストケースの一覧を表形式で出力する
func renderTestCases(w io.Writer, summary testrun.Summary, scheduler testrun.Scheduler) {
	table := tablewriter.NewWriter(w)
	table.Header("Test Case", "Result", "URL")

	for _, tc := range summary.Cases {
		table.Append(tc.Name, tc.Result, scheduler.ResultURL(tc.URL))
	}

	table.Render()
}
