package testrun

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jinford/lava-submit/internal/platform/tracing"
)

const (
	// DefaultSubmitMaxAttempts はジョブ投入の最大試行回数
	DefaultSubmitMaxAttempts = 10

	// DefaultSubmitRetryInterval はプロトコルエラー後の投入リトライまでの待機時間
	DefaultSubmitRetryInterval = 5 * time.Second

	// DefaultPollInterval はジョブ状態の問い合わせ間隔
	DefaultPollInterval = 30 * time.Second
)

// Options はServiceの動作パラメータ
type Options struct {
	SubmitMaxAttempts   int
	SubmitRetryInterval time.Duration
	PollInterval        time.Duration

	// PollMaxProtocolErrors は1回の状態問い合わせで許容する連続プロトコルエラー数
	// この回数に達した時点で失敗とする。0 の場合は無制限に再試行する
	PollMaxProtocolErrors int

	// WorkDir はベンチマーク結果の保存先ディレクトリ
	WorkDir string
}

// DefaultOptions はデフォルトのServiceパラメータを返す
func DefaultOptions() Options {
	return Options{
		SubmitMaxAttempts:   DefaultSubmitMaxAttempts,
		SubmitRetryInterval: DefaultSubmitRetryInterval,
		PollInterval:        DefaultPollInterval,
		WorkDir:             ".",
	}
}

// Service はLAVAジョブの投入から結果報告までを提供する
type Service struct {
	scheduler Scheduler
	store     ArtifactStore
	out       io.Writer
	logger    *slog.Logger
	opts      Options
}

// NewService は新しいServiceを作成する
// out にはジョブID・ログ・集計結果など利用者向けの出力を書き出す
func NewService(scheduler Scheduler, store ArtifactStore, out io.Writer, logger *slog.Logger, opts Options) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SubmitMaxAttempts < 1 {
		opts.SubmitMaxAttempts = 1
	}
	if opts.WorkDir == "" {
		opts.WorkDir = "."
	}
	return &Service{
		scheduler: scheduler,
		store:     store,
		out:       out,
		logger:    logger,
		opts:      opts,
	}
}

// Outcome は1回のジョブ実行の結果
type Outcome struct {
	JobID   JobID
	State   JobState
	Summary Summary
}

// Run はレンダリング済みのジョブ定義を投入し、終了まで待機して結果を報告する
func (s *Service) Run(ctx context.Context, definition string, req JobRequest) (*Outcome, error) {
	jobID, err := s.Submit(ctx, definition)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(s.out, "Lava jobid:%s\n", jobID)
	fmt.Fprintf(s.out, "Lava job URL: %s\n", s.scheduler.JobURL(jobID))

	outcome := &Outcome{JobID: jobID}

	state, err := s.Wait(ctx, jobID)
	if err != nil {
		return outcome, err
	}
	outcome.State = state

	fmt.Fprintf(s.out, "Job ended with %s status.\n", state)
	if state != JobStateFinished {
		return outcome, fmt.Errorf("%w: job %s ended with %s", ErrJobNotFinished, jobID, state)
	}

	summary, err := s.Report(ctx, jobID, req.TestType, req.BuildID)
	outcome.Summary = summary
	return outcome, err
}

// Submit はジョブを投入する
// プロトコルエラーの場合のみ一定間隔で再試行し、それ以外のエラーは即座に返す
func (s *Service) Submit(ctx context.Context, definition string) (_ JobID, err error) {
	ctx, span := tracing.StartSpan(ctx, "lava.submit_job")
	defer func() { endSpan(span, err) }()

	var (
		jobID   JobID
		attempt int
	)

	operation := func() error {
		id, err := s.scheduler.SubmitJob(ctx, definition)
		if err != nil {
			if !IsProtocolError(err) {
				return backoff.Permanent(err)
			}
			fmt.Fprintf(s.out, "Protocol error on submit, sleeping and retrying. Attempt #%d\n", attempt)
			s.logger.Warn("protocol error on submit", "attempt", attempt, "error", err)
			attempt++
			return err
		}
		jobID = id
		return nil
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.opts.SubmitRetryInterval), uint64(s.opts.SubmitMaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, b); err != nil {
		if IsProtocolError(err) {
			return "", fmt.Errorf("%w after %d attempts: %w", ErrSubmitRetriesExceeded, attempt, err)
		}
		return "", fmt.Errorf("ジョブの投入に失敗: %w", err)
	}

	span.SetAttributes(
		attribute.String("lava.job_id", string(jobID)),
		attribute.Int("lava.submit_attempts", attempt+1),
	)
	s.logger.Info("job submitted", "job_id", string(jobID), "attempts", attempt+1)
	return jobID, nil
}

// Wait はジョブが終了状態になるまでポーリングし、最終状態を返す
func (s *Service) Wait(ctx context.Context, id JobID) (_ JobState, err error) {
	ctx, span := tracing.StartSpan(ctx, "lava.wait", attribute.String("lava.job_id", string(id)))
	defer func() { endSpan(span, err) }()

	state, err := s.queryState(ctx, id)
	if err != nil {
		return "", err
	}

	running := false
	for !state.IsTerminal() {
		if !running && state == JobStateRunning {
			fmt.Fprintln(s.out, "Job started running")
			running = true
		}

		select {
		case <-ctx.Done():
			return state, fmt.Errorf("ジョブの待機を中断: %w", ctx.Err())
		case <-time.After(s.opts.PollInterval):
		}

		next, err := s.queryState(ctx, id)
		if err != nil {
			return state, err
		}
		if next != state {
			s.logger.Debug("job state changed", "job_id", string(id), "from", string(state), "to", string(next))
		}
		state = next
	}

	span.SetAttributes(attribute.String("lava.job_state", string(state)))
	return state, nil
}

// queryState はジョブ状態を1回問い合わせる
// プロトコルエラーは待機せずに再試行する
func (s *Service) queryState(ctx context.Context, id JobID) (JobState, error) {
	var state JobState

	operation := func() error {
		st, err := s.scheduler.JobState(ctx, id)
		if err != nil {
			if !IsProtocolError(err) {
				return backoff.Permanent(err)
			}
			fmt.Fprintln(s.out, "Protocol error, retrying")
			s.logger.Warn("protocol error on job state", "job_id", string(id), "error", err)
			return err
		}
		state = st
		return nil
	}

	var b backoff.BackOff = &backoff.ZeroBackOff{}
	if s.opts.PollMaxProtocolErrors > 0 {
		// 最初の呼び出しは再試行に数えない
		b = backoff.WithMaxRetries(b, uint64(s.opts.PollMaxProtocolErrors-1))
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		if IsProtocolError(err) {
			return "", fmt.Errorf("%w: %w", ErrPollRetriesExceeded, err)
		}
		return "", fmt.Errorf("ジョブ状態の取得に失敗: %w", err)
	}
	return state, nil
}

// Report はテスト種別に応じたログ・成果物の取得を行い、テストケースを集計する
// 失敗したテストケースがある場合は ErrTestCasesFailed をラップしたエラーを返す
func (s *Service) Report(ctx context.Context, id JobID, testType TestType, buildID string) (_ Summary, err error) {
	ctx, span := tracing.StartSpan(ctx, "lava.report",
		attribute.String("lava.job_id", string(id)),
		attribute.String("lava.test_type", string(testType)),
	)
	defer func() { endSpan(span, err) }()

	switch {
	case testType.PrintsTestOutput():
		if err := s.PrintTestOutput(ctx, id); err != nil {
			return Summary{}, err
		}
	case testType.FetchesBenchmarks():
		if err := s.FetchBenchmarkResults(ctx, buildID); err != nil {
			return Summary{}, err
		}
	}

	summary, err := s.CountTestCases(ctx, id)
	if err != nil {
		return Summary{}, err
	}

	span.SetAttributes(
		attribute.Int("lava.tests_passed", summary.Passed),
		attribute.Int("lava.tests_failed", summary.Failed),
	)
	fmt.Fprintf(s.out, "With %d passed and %d failed Lava test cases.\n", summary.Passed, summary.Failed)

	if summary.Failed != 0 {
		return summary, fmt.Errorf("%w: %d of %d", ErrTestCasesFailed, summary.Failed, summary.Total())
	}
	return summary, nil
}

// PrintTestOutput はターゲットログからテストスイート自身の出力だけを表示する
func (s *Service) PrintTestOutput(ctx context.Context, id JobID) error {
	data, err := s.scheduler.JobLogs(ctx, id)
	if err != nil {
		return fmt.Errorf("ジョブログの取得に失敗: %w", err)
	}

	lines, err := ParseLogLines(data)
	if err != nil {
		return err
	}

	written := WriteTestSuiteOutput(s.out, lines)
	s.logger.Debug("test suite output extracted", "job_id", string(id), "lines", written)
	return nil
}

// FetchBenchmarkResults はベンチマーク結果のCSVをWorkDirに保存する
func (s *Service) FetchBenchmarkResults(ctx context.Context, buildID string) error {
	if s.store == nil {
		return errors.New("artifact store is not configured")
	}

	for _, name := range BenchmarkResultFiles {
		fmt.Fprintf(s.out, "Fetching %s\n", s.store.ObjectURL(buildID, name))

		dest := filepath.Join(s.opts.WorkDir, name)
		if err := s.store.FetchObject(ctx, buildID, name, dest); err != nil {
			return fmt.Errorf("ベンチマーク結果 %s の取得に失敗: %w", name, err)
		}
	}
	return nil
}

// CountTestCases はテストケース結果を取得して集計し、失敗したものへのリンクを表示する
func (s *Service) CountTestCases(ctx context.Context, id JobID) (Summary, error) {
	fmt.Fprintln(s.out, "Testcase result:")

	content, err := s.scheduler.TestJobResultsYAML(ctx, id)
	if err != nil {
		return Summary{}, fmt.Errorf("テストケース結果の取得に失敗: %w", err)
	}

	cases, err := ParseTestCases(content)
	if err != nil {
		return Summary{}, err
	}

	summary := TallyTestCases(cases)
	for _, tc := range summary.Failures {
		fmt.Fprintf(s.out, "\tFAILED %s\n\t\t See %s\n", tc.Name, s.scheduler.ResultURL(tc.URL))
	}
	return summary, nil
}

// FetchBundle は結果バンドルを取得してデコードする
func (s *Service) FetchBundle(ctx context.Context, id JobID) (map[string]any, error) {
	content, err := s.scheduler.BundleContent(ctx, id)
	if err != nil {
		fmt.Fprintln(s.out, "Error while fetching results bundle", err)
		return nil, fmt.Errorf("結果バンドルの取得に失敗: %w", err)
	}
	return ParseBundle(content)
}

// endSpan はエラーをスパンに記録して終了する
func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
