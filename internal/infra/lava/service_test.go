package lava

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/lava-submit/internal/core/testrun"
)

// 実クライアント経由で testrun.Service の報告処理を通す
func TestClient_ServiceReport_KVMTests(t *testing.T) {
	logs := `
- {dt: "2024-01-01T00:00:00", lvl: info, msg: "start: 0 lava-test-retry"}
- {dt: "2024-01-01T00:00:01", lvl: target, msg: "<LAVA_SIGNAL_STARTTC run-tests>"}
- {dt: "2024-01-01T00:00:02", lvl: target, msg: "ok 1 - lttng create"}
- {dt: "2024-01-01T00:00:03", lvl: target, msg: "not ok 2 - lttng enable-event"}
- {dt: "2024-01-01T00:00:04", lvl: target, msg: "<LAVA_SIGNAL_ENDTC run-tests>"}
- {dt: "2024-01-01T00:00:05", lvl: target, msg: "after"}
`
	results := `
- {name: run-tests, result: pass, url: /results/1234/0_kernel-tests/run-tests}
- {name: test-a, result: pass, url: /results/1234/0_kernel-tests/test-a}
- {name: test-b, result: pass, url: /results/1234/0_kernel-tests/test-b}
- {name: test-c, result: fail, url: /results/1234/0_kernel-tests/test-c}
`
	encoded := base64.StdEncoding.EncodeToString([]byte(logs))
	fake := &fakeLAVA{responses: map[string]string{
		"scheduler.jobs.logs":              methodResponse(`<array><data><value><boolean>1</boolean></value><value><base64>` + encoded + `</base64></value></data></array>`),
		"results.get_testjob_results_yaml": methodResponse(`<string>` + results + `</string>`),
	}}
	client := newFakeClient(t, fake)

	var out bytes.Buffer
	svc := testrun.NewService(client, nil, &out, nil, testrun.DefaultOptions())

	summary, err := svc.Report(context.Background(), "1234", testrun.TestTypeKVMTests, "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, testrun.ErrTestCasesFailed)
	assert.Equal(t, 3, summary.Passed)
	assert.Equal(t, 1, summary.Failed)

	output := out.String()
	assert.Contains(t, output, "---- TEST SUITE OUTPUT BEGIN ----\n"+
		"2024-01-01T00:00:02 ok 1 - lttng create\n"+
		"2024-01-01T00:00:03 not ok 2 - lttng enable-event\n"+
		"----- TEST SUITE OUTPUT END -----\n")
	assert.NotContains(t, output, "after")
	assert.Contains(t, output, "\tFAILED test-c\n\t\t See http://")
	assert.Contains(t, output, "/results/1234/0_kernel-tests/test-c\n")
	assert.Contains(t, output, "With 3 passed and 1 failed Lava test cases.\n")
	assert.Equal(t, []string{"scheduler.jobs.logs", "results.get_testjob_results_yaml"}, fake.calls)
}
