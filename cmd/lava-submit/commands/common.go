package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/jinford/lava-submit/internal/platform/config"
	"github.com/jinford/lava-submit/internal/platform/container"
	"github.com/jinford/lava-submit/internal/platform/logger"
	"github.com/jinford/lava-submit/internal/platform/tracing"
)

// AppContext はコマンド実行に必要な共通コンテキストを保持する
type AppContext struct {
	Config *config.Config
	Logger *slog.Logger
	Out    io.Writer

	containerOpts []container.ContainerOption
	container     *container.ServiceContainer
	shutdown      tracing.ShutdownFunc
}

// NewAppContext は設定ファイルを読み込み、ロガーを初期化して AppContext を作成する
// LAVAへの接続はこの時点では行わない（Container を参照した時点で作成する）
func NewAppContext(ctx context.Context, cmd *cli.Command, opts ...container.ContainerOption) (*AppContext, error) {
	cfg, err := config.Load(cmd.String("env"))
	if err != nil {
		return nil, fmt.Errorf("設定の読み込みに失敗: %w", err)
	}

	// フラグが指定された場合は環境変数より優先する
	if v := cmd.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.Log.Level = v
	}

	appLogger := logger.New(logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	shutdown, err := tracing.Init(ctx, tracing.Config{
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
	}, tracing.TracerName)
	if err != nil {
		return nil, fmt.Errorf("トレースの初期化に失敗: %w", err)
	}

	return &AppContext{
		Config:        cfg,
		Logger:        appLogger,
		Out:           writer(cmd),
		containerOpts: opts,
		shutdown:      shutdown,
	}, nil
}

// Container はサービスコンテナを返す。初回呼び出し時に作成する
func (ac *AppContext) Container() (*container.ServiceContainer, error) {
	if ac.container != nil {
		return ac.container, nil
	}

	opts := append([]container.ContainerOption{
		container.WithContainerLogger(ac.Logger),
		container.WithContainerOutput(ac.Out),
	}, ac.containerOpts...)

	cont, err := container.NewContainer(ac.Config, opts...)
	if err != nil {
		return nil, fmt.Errorf("コンテナの初期化に失敗: %w", err)
	}
	ac.container = cont
	return cont, nil
}

// Close はAppContextが保持するリソースをクリーンアップする
func (ac *AppContext) Close() {
	if ac.container != nil {
		ac.container.Close()
	}
	if ac.shutdown != nil {
		// キャンセル済みのcontextでも未送信のスパンを送れるよう独立したcontextを使う
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.shutdown(ctx); err != nil {
			ac.Logger.Warn("failed to flush traces", "error", err)
		}
	}
}

// writer はコマンドの出力先を返す（未設定の場合は標準出力）
func writer(cmd *cli.Command) io.Writer {
	if root := cmd.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// commonFlags はすべてのコマンドで共通のフラグ
func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "環境変数ファイルパス",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "ログ形式（text または json、省略時は LOG_FORMAT）",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "ログレベル（debug, info, warn, error、省略時は LOG_LEVEL）",
		},
	}
}
