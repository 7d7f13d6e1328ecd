package container

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jinford/lava-submit/internal/core/testrun"
	"github.com/jinford/lava-submit/internal/infra/lava"
	"github.com/jinford/lava-submit/internal/infra/objstore"
	"github.com/jinford/lava-submit/internal/platform/config"
)

// ServiceContainer はジョブ投入に必要な依存関係を保持する。
type ServiceContainer struct {
	TestRunService *testrun.Service
	Scheduler      testrun.Scheduler

	logger *slog.Logger
	client *lava.Client
}

type containerOptions struct {
	logger    *slog.Logger
	scheduler testrun.Scheduler
	store     testrun.ArtifactStore
	out       io.Writer
	workDir   string
}

// ContainerOption は ServiceContainer 構築時のオプション
type ContainerOption func(*containerOptions)

// WithContainerLogger はロガーを差し替える
func WithContainerLogger(logger *slog.Logger) ContainerOption {
	return func(opts *containerOptions) {
		opts.logger = logger
	}
}

// WithContainerScheduler は LAVA クライアントの代わりに任意の Scheduler を注入する
func WithContainerScheduler(scheduler testrun.Scheduler) ContainerOption {
	return func(opts *containerOptions) {
		opts.scheduler = scheduler
	}
}

// WithContainerArtifactStore はオブジェクトストレージを差し替える
func WithContainerArtifactStore(store testrun.ArtifactStore) ContainerOption {
	return func(opts *containerOptions) {
		opts.store = store
	}
}

// WithContainerOutput はレポートの出力先を差し替える（デフォルトは標準出力）
func WithContainerOutput(w io.Writer) ContainerOption {
	return func(opts *containerOptions) {
		opts.out = w
	}
}

// WithContainerWorkDir はベンチマーク結果の保存先を指定する
func WithContainerWorkDir(dir string) ContainerOption {
	return func(opts *containerOptions) {
		opts.workDir = dir
	}
}

// NewContainer は設定からコンテナを生成する。
// Scheduler が注入されていない場合は設定から LAVA クライアントを作成する。
func NewContainer(cfg *config.Config, opts ...ContainerOption) (*ServiceContainer, error) {
	options := containerOptions{
		logger:  slog.Default(),
		out:     os.Stdout,
		workDir: ".",
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	c := &ServiceContainer{logger: options.logger}

	scheduler := options.scheduler
	if scheduler == nil {
		client, err := lava.NewClient(lava.Config{
			Hostname: cfg.LAVA.Hostname,
			Username: cfg.LAVA.Username,
			Token:    cfg.LAVA.Token,
			Timeout:  cfg.LAVA.RPCTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("LAVAクライアント初期化に失敗しました: %w", err)
		}
		options.logger.Debug("lava client created", "endpoint", client.Endpoint())
		c.client = client
		scheduler = client
	}

	store := options.store
	if store == nil {
		s, err := objstore.New(objstore.Config{
			Endpoint:      cfg.ObjStore.Endpoint,
			Bucket:        cfg.ObjStore.Bucket,
			ResultsPrefix: cfg.ObjStore.ResultsPrefix,
			AccessKey:     cfg.ObjStore.AccessKey,
			SecretKey:     cfg.ObjStore.SecretKey,
			UseSSL:        cfg.ObjStore.UseSSL,
		})
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("オブジェクトストレージ初期化に失敗しました: %w", err)
		}
		store = s
	}

	c.Scheduler = scheduler
	c.TestRunService = testrun.NewService(scheduler, store, options.out, options.logger, testrun.Options{
		SubmitMaxAttempts:     cfg.LAVA.SubmitMaxAttempts,
		SubmitRetryInterval:   cfg.LAVA.SubmitRetryInterval,
		PollInterval:          cfg.LAVA.PollInterval,
		PollMaxProtocolErrors: cfg.LAVA.PollMaxProtocolErrors,
		WorkDir:               options.workDir,
	})

	return c, nil
}

// Close は内部リソースを解放する。
func (c *ServiceContainer) Close() {
	if c != nil && c.client != nil {
		_ = c.client.Close()
	}
}

// Logger はロガーを返す。
func (c *ServiceContainer) Logger() *slog.Logger {
	if c == nil || c.logger == nil {
		return slog.Default()
	}
	return c.logger
}
