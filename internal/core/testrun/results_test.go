package testrun

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTallyTestCases(t *testing.T) {
	tests := []struct {
		name       string
		cases      []TestCase
		wantPassed int
		wantFailed int
	}{
		{name: "空", cases: nil},
		{
			name: "すべて成功",
			cases: []TestCase{
				{Name: "a", Result: "pass"},
				{Name: "b", Result: "pass"},
			},
			wantPassed: 2,
		},
		{
			name: "pass以外はすべて失敗",
			cases: []TestCase{
				{Name: "a", Result: "pass"},
				{Name: "b", Result: "fail"},
				{Name: "c", Result: "skip"},
				{Name: "d", Result: "unknown"},
			},
			wantPassed: 1,
			wantFailed: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary := TallyTestCases(tt.cases)
			assert.Equal(t, tt.wantPassed, summary.Passed)
			assert.Equal(t, tt.wantFailed, summary.Failed)
			assert.Equal(t, len(tt.cases), summary.Total())
			assert.Len(t, summary.Failures, tt.wantFailed)
		})
	}
}

func TestParseTestCases(t *testing.T) {
	content := `
- job: '1234'
  level: None
  log_end_line: '120'
  log_start_line: '10'
  logged: '2024-01-01 00:00:00'
  metadata: {definition: kernel-tests, result: pass}
  name: run-tests
  result: pass
  suite: 1_kernel-tests
  url: /results/1234/1_kernel-tests/run-tests
- name: lttng-kernel-test
  result: fail
  url: /results/1234/1_kernel-tests/lttng-kernel-test
`
	cases, err := ParseTestCases(content)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, TestCase{Name: "run-tests", Result: "pass", URL: "/results/1234/1_kernel-tests/run-tests"}, cases[0])
	assert.False(t, cases[1].Passed())
}

func TestParseTestCases_Invalid(t *testing.T) {
	_, err := ParseTestCases("name: [unterminated")
	assert.Error(t, err)
}

func TestWriteTestSuiteOutput(t *testing.T) {
	data := []byte(`
- {dt: '2024-01-01T00:00:00', lvl: target, msg: 'before markers'}
- {dt: '2024-01-01T00:00:01', lvl: info, msg: '<LAVA_SIGNAL_STARTTC run-tests>'}
- {dt: '2024-01-01T00:00:02', lvl: target, msg: '<LAVA_SIGNAL_STARTTC run-tests>'}
- {dt: '2024-01-01T00:00:03', lvl: target, msg: 'ok 1 - first'}
- {dt: '2024-01-01T00:00:04', lvl: debug, msg: {case: ignored}}
- {dt: '2024-01-01T00:00:05', lvl: target, msg: 'ok 2 - second'}
- {dt: '2024-01-01T00:00:06', lvl: target, msg: '<LAVA_SIGNAL_ENDTC run-tests>'}
- {dt: '2024-01-01T00:00:07', lvl: target, msg: 'after markers'}
`)
	lines, err := ParseLogLines(data)
	require.NoError(t, err)

	var buf bytes.Buffer
	written := WriteTestSuiteOutput(&buf, lines)

	assert.Equal(t, 2, written)
	assert.Equal(t,
		"---- TEST SUITE OUTPUT BEGIN ----\n"+
			"2024-01-01T00:00:03 ok 1 - first\n"+
			"2024-01-01T00:00:05 ok 2 - second\n"+
			"----- TEST SUITE OUTPUT END -----\n",
		buf.String())
}

func TestWriteTestSuiteOutput_NoMarkers(t *testing.T) {
	lines := []LogLine{
		{DT: "t0", Lvl: "target", Msg: "boot"},
		{DT: "t1", Lvl: "target", Msg: "login"},
	}

	var buf bytes.Buffer
	assert.Equal(t, 0, WriteTestSuiteOutput(&buf, lines))
	assert.Empty(t, buf.String())
}

func TestParseBundle(t *testing.T) {
	bundle, err := ParseBundle(`{"format": "Dashboard Bundle Format 1.7"}`)
	require.NoError(t, err)
	assert.Equal(t, "Dashboard Bundle Format 1.7", bundle["format"])

	_, err = ParseBundle("not json")
	assert.Error(t, err)
}
