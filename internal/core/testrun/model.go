package testrun

import (
	"fmt"
	"strings"
)

// TestType はLAVAに投入するテストの種別
type TestType string

const (
	TestTypeBaremetalBenchmarks TestType = "baremetal-benchmarks"
	TestTypeBaremetalTests      TestType = "baremetal-tests"
	TestTypeKVMTests            TestType = "kvm-tests"
	TestTypeKVMFuzzingTests     TestType = "kvm-fuzzing-tests"
)

// TestTypes は有効なテスト種別の一覧（表示順）
var TestTypes = []TestType{
	TestTypeBaremetalBenchmarks,
	TestTypeBaremetalTests,
	TestTypeKVMTests,
	TestTypeKVMFuzzingTests,
}

// ParseTestType は文字列をTestTypeに変換する
// 未知の値の場合は ErrUnknownTestType をラップしたエラーを返す
func ParseTestType(s string) (TestType, error) {
	for _, t := range TestTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q (possible values: %s)", ErrUnknownTestType, s, strings.Join(TestTypeNames(), ", "))
}

// TestTypeNames は有効なテスト種別を文字列で返す
func TestTypeNames() []string {
	names := make([]string, 0, len(TestTypes))
	for _, t := range TestTypes {
		names = append(names, string(t))
	}
	return names
}

// DeviceType はテスト種別から導出する。ベアメタル系はx86、それ以外はqemu
func (t TestType) DeviceType() DeviceType {
	switch t {
	case TestTypeBaremetalBenchmarks, TestTypeBaremetalTests:
		return DeviceTypeX86
	default:
		return DeviceTypeKVM
	}
}

// PrintsTestOutput はターゲットログからテストスイートの出力を抜き出す種別かどうか
func (t TestType) PrintsTestOutput() bool {
	return t == TestTypeKVMTests || t == TestTypeBaremetalTests
}

// FetchesBenchmarks はベンチマーク結果のCSVを取得する種別かどうか
func (t TestType) FetchesBenchmarks() bool {
	return t == TestTypeBaremetalBenchmarks
}

// DeviceType はLAVAのデバイス種別
type DeviceType string

const (
	DeviceTypeX86 DeviceType = "x86"
	DeviceTypeKVM DeviceType = "qemu"
)

// JobState はLAVAスケジューラが返すジョブの状態
type JobState string

const (
	JobStateSubmitted  JobState = "Submitted"
	JobStateScheduling JobState = "Scheduling"
	JobStateScheduled  JobState = "Scheduled"
	JobStateRunning    JobState = "Running"
	JobStateFinished   JobState = "Finished"
)

// unfinishedJobStates はポーリングを継続する状態
var unfinishedJobStates = map[JobState]bool{
	JobStateSubmitted:  true,
	JobStateScheduling: true,
	JobStateScheduled:  true,
	JobStateRunning:    true,
}

// IsTerminal はポーリングを終了すべき状態かどうかを返す
// 上記4状態以外（未知の値を含む）はすべて終了状態として扱う
func (s JobState) IsTerminal() bool {
	return !unfinishedJobStates[s]
}

// JobID はsubmit_jobが返すジョブ識別子
type JobID string

// JobRequest は1回の投入に必要なパラメータ
type JobRequest struct {
	JobName        string
	TestType       TestType
	KernelURL      string
	ModulesURL     string
	ToolsCommit    string
	USTCommit      string // 空の場合はlttng-ustをビルドしない
	BuildID        string
	RandomSeed     int
	KprobeRoundNB  int
	NFSRootfsURL   string
	VlttngPath     string
	TemplateSource string // 空の場合は組み込みテンプレート
}

// DeviceType はリクエストのテスト種別から導出したデバイス種別を返す
func (r JobRequest) DeviceType() DeviceType {
	return r.TestType.DeviceType()
}

// TestCase は results.get_testjob_results_yaml の1エントリ
type TestCase struct {
	Name   string `yaml:"name"`
	Result string `yaml:"result"`
	URL    string `yaml:"url"`
}

// Passed はテストケースが成功したかどうか
func (tc TestCase) Passed() bool {
	return tc.Result == "pass"
}

// Summary はテストケースの集計結果
type Summary struct {
	Passed   int
	Failed   int
	Cases    []TestCase
	Failures []TestCase
}

// Total は集計対象のテストケース数
func (s Summary) Total() int {
	return s.Passed + s.Failed
}

// LogLine は scheduler.jobs.logs が返すYAMLログの1行
type LogLine struct {
	DT  string `yaml:"dt"`
	Lvl string `yaml:"lvl"`
	Msg any    `yaml:"msg"`
}

// Message はmsgを文字列として返す（target以外ではmsgがマップの場合がある）
func (l LogLine) Message() string {
	switch v := l.Msg.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
