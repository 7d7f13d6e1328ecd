package testrun

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	// TestSuiteStartMarker はテストスイート出力の開始を示すターゲットログの行
	TestSuiteStartMarker = "<LAVA_SIGNAL_STARTTC run-tests>"

	// TestSuiteEndMarker はテストスイート出力の終了を示すターゲットログの行
	TestSuiteEndMarker = "<LAVA_SIGNAL_ENDTC run-tests>"

	targetLogLevel = "target"
)

// BenchmarkResultFiles はベンチマークジョブがオブジェクトストレージに保存する成果物
var BenchmarkResultFiles = []string{
	"processed_results_close.csv",
	"processed_results_ioctl.csv",
	"processed_results_open_efault.csv",
	"processed_results_open_enoent.csv",
	"processed_results_dup_close.csv",
	"processed_results_raw_syscall_getpid.csv",
	"processed_results_lttng_test_filter.csv",
}

// ParseTestCases は results.get_testjob_results_yaml の内容をデコードする
func ParseTestCases(content string) ([]TestCase, error) {
	var cases []TestCase
	if err := yaml.Unmarshal([]byte(content), &cases); err != nil {
		return nil, fmt.Errorf("テストケース結果の解析に失敗: %w", err)
	}
	return cases, nil
}

// TallyTestCases はresultフィールドでテストケースを分類する
// result が "pass" 以外のものはすべて失敗として数える
func TallyTestCases(cases []TestCase) Summary {
	summary := Summary{Cases: cases}
	for _, tc := range cases {
		if tc.Passed() {
			summary.Passed++
			continue
		}
		summary.Failed++
		summary.Failures = append(summary.Failures, tc)
	}
	return summary
}

// ParseLogLines は scheduler.jobs.logs が返すYAMLログをデコードする
func ParseLogLines(data []byte) ([]LogLine, error) {
	var lines []LogLine
	if err := yaml.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("ジョブログの解析に失敗: %w", err)
	}
	return lines, nil
}

// WriteTestSuiteOutput はターゲットログのうち開始・終了マーカーに挟まれた行を
// タイムスタンプ付きで書き出す。書き出した行数を返す
func WriteTestSuiteOutput(w io.Writer, lines []LogLine) int {
	printing := false
	written := 0
	for _, line := range lines {
		if line.Lvl != targetLogLevel {
			continue
		}
		msg := line.Message()
		if msg == TestSuiteStartMarker {
			fmt.Fprintln(w, "---- TEST SUITE OUTPUT BEGIN ----")
			printing = true
			continue
		}
		if msg == TestSuiteEndMarker {
			fmt.Fprintln(w, "----- TEST SUITE OUTPUT END -----")
			break
		}
		if printing {
			fmt.Fprintf(w, "%s %s\n", line.DT, msg)
			written++
		}
	}
	return written
}

// ParseBundle は結果バンドルのJSONをデコードする
func ParseBundle(content string) (map[string]any, error) {
	var bundle map[string]any
	if err := json.Unmarshal([]byte(content), &bundle); err != nil {
		return nil, fmt.Errorf("結果バンドルの解析に失敗: %w", err)
	}
	return bundle, nil
}
