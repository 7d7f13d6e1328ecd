package testing

import (
	"context"
	"fmt"
	"os"

	"github.com/jinford/lava-submit/internal/core/testrun"
)

// MockScheduler はテスト用のモックSchedulerです
type MockScheduler struct {
	SubmitJobFunc          func(ctx context.Context, definition string) (testrun.JobID, error)
	JobStateFunc           func(ctx context.Context, id testrun.JobID) (testrun.JobState, error)
	JobLogsFunc            func(ctx context.Context, id testrun.JobID) ([]byte, error)
	TestJobResultsYAMLFunc func(ctx context.Context, id testrun.JobID) (string, error)
	BundleContentFunc      func(ctx context.Context, id testrun.JobID) (string, error)

	SubmitCalls   int
	JobStateCalls int
}

// SubmitJob はSubmitJobのモック実装です
func (m *MockScheduler) SubmitJob(ctx context.Context, definition string) (testrun.JobID, error) {
	m.SubmitCalls++
	if m.SubmitJobFunc != nil {
		return m.SubmitJobFunc(ctx, definition)
	}
	return "1", nil
}

// JobState はJobStateのモック実装です
func (m *MockScheduler) JobState(ctx context.Context, id testrun.JobID) (testrun.JobState, error) {
	m.JobStateCalls++
	if m.JobStateFunc != nil {
		return m.JobStateFunc(ctx, id)
	}
	return testrun.JobStateFinished, nil
}

// JobLogs はJobLogsのモック実装です
func (m *MockScheduler) JobLogs(ctx context.Context, id testrun.JobID) ([]byte, error) {
	if m.JobLogsFunc != nil {
		return m.JobLogsFunc(ctx, id)
	}
	return []byte("[]"), nil
}

// TestJobResultsYAML はTestJobResultsYAMLのモック実装です
func (m *MockScheduler) TestJobResultsYAML(ctx context.Context, id testrun.JobID) (string, error) {
	if m.TestJobResultsYAMLFunc != nil {
		return m.TestJobResultsYAMLFunc(ctx, id)
	}
	return "[]", nil
}

// BundleContent はBundleContentのモック実装です
func (m *MockScheduler) BundleContent(ctx context.Context, id testrun.JobID) (string, error) {
	if m.BundleContentFunc != nil {
		return m.BundleContentFunc(ctx, id)
	}
	return "{}", nil
}

// JobURL はJobURLのモック実装です
func (m *MockScheduler) JobURL(id testrun.JobID) string {
	return fmt.Sprintf("http://lava.example.com/scheduler/job/%s", id)
}

// ResultURL はResultURLのモック実装です
func (m *MockScheduler) ResultURL(path string) string {
	return "http://lava.example.com" + path
}

// StateSequence は呼び出しごとに順番に状態を返すJobStateFuncを作成します
// 最後の状態は以降の呼び出しでも返し続けます
func StateSequence(states ...testrun.JobState) func(context.Context, testrun.JobID) (testrun.JobState, error) {
	i := 0
	return func(context.Context, testrun.JobID) (testrun.JobState, error) {
		st := states[i]
		if i < len(states)-1 {
			i++
		}
		return st, nil
	}
}

// MockArtifactStore はテスト用のモックArtifactStoreです
// FetchObjectFunc が未設定の場合は Content を書き出します
type MockArtifactStore struct {
	FetchObjectFunc func(ctx context.Context, buildID, name, destPath string) error
	Content         []byte
	Fetched         []string
}

// FetchObject はFetchObjectのモック実装です
func (m *MockArtifactStore) FetchObject(ctx context.Context, buildID, name, destPath string) error {
	m.Fetched = append(m.Fetched, name)
	if m.FetchObjectFunc != nil {
		return m.FetchObjectFunc(ctx, buildID, name, destPath)
	}
	return os.WriteFile(destPath, m.Content, 0644)
}

// ObjectURL はObjectURLのモック実装です
func (m *MockArtifactStore) ObjectURL(buildID, name string) string {
	return fmt.Sprintf("https://obj.example.com/lava/results/%s/%s", buildID, name)
}
