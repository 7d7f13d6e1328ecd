package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/jinford/lava-submit/internal/core/testrun"
	testrunmock "github.com/jinford/lava-submit/internal/core/testrun/testing"
	"github.com/jinford/lava-submit/internal/platform/config"
	"github.com/jinford/lava-submit/internal/platform/container"
)

func newTestApp(out *bytes.Buffer, opts ...container.ContainerOption) *cli.Command {
	return &cli.Command{
		Name:   "lava-submit",
		Writer: out,
		Flags:  SubmitFlags(),
		Action: SubmitAction(opts...),
		Commands: []*cli.Command{
			{
				Name:   "results",
				Flags:  ResultsFlags(),
				Action: ResultsAction(opts...),
			},
		},
	}
}

func submitArgs(testType string, extra ...string) []string {
	args := []string{
		"lava-submit",
		"-t", testType,
		"-j", "lttng-kvm-tests",
		"-k", "https://obj.example.com/kernel/bzImage",
		"-lm", "https://obj.example.com/modules/lttng-modules.tar.gz",
		"-tc", "abc123",
		"-id", "42",
	}
	return append(args, extra...)
}

// fastPolling はテスト用にリトライ・ポーリング間隔を短くする
func fastPolling(t *testing.T) {
	t.Setenv("LAVA_SUBMIT_RETRY_INTERVAL", "1ms")
	t.Setenv("LAVA_POLL_INTERVAL", "1ms")
}

func TestSubmitAction_UnknownType(t *testing.T) {
	var out bytes.Buffer
	err := newTestApp(&out).Run(context.Background(), submitArgs("kvm-benchmarks"))

	require.Error(t, err)
	assert.ErrorIs(t, err, testrun.ErrUnknownTestType)
	assert.Contains(t, out.String(), "argument -t/--type kvm-benchmarks unrecognized.\n")
	assert.Contains(t, out.String(), "Possible values are:\n")
	for _, tt := range testrun.TestTypes {
		assert.Contains(t, out.String(), "\t "+string(tt)+"\n")
	}
}

func TestSubmitAction_MissingFlags(t *testing.T) {
	var out bytes.Buffer
	err := newTestApp(&out).Run(context.Background(), []string{"lava-submit", "-t", "kvm-tests"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingFlags)
	assert.Contains(t, err.Error(), "jobname")
	assert.Contains(t, err.Error(), "build-id")
}

func TestSubmitAction_MissingToken(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "")
	sched := &testrunmock.MockScheduler{}

	var out bytes.Buffer
	err := newTestApp(&out, container.WithContainerScheduler(sched)).
		Run(context.Background(), submitArgs("kvm-tests"))

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrTokenNotSet)
	assert.Contains(t, out.String(), "LAVA2_JENKINS_TOKEN not found in the environment variable. Exiting...")
	assert.Equal(t, 0, sched.SubmitCalls)
}

func TestSubmitAction_Debug(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "")
	sched := &testrunmock.MockScheduler{}

	var out bytes.Buffer
	err := newTestApp(&out, container.WithContainerScheduler(sched)).
		Run(context.Background(), submitArgs("kvm-fuzzing-tests", "-d", "--seed", "4242"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Job to be submitted:\n")
	assert.Contains(t, out.String(), "device_type: qemu")
	assert.Contains(t, out.String(), "job_name: lttng-kvm-tests")
	assert.Contains(t, out.String(), "RANDOM_SEED: 4242")
	assert.NotContains(t, out.String(), "Lava jobid")
	assert.Equal(t, 0, sched.SubmitCalls)
	assert.Equal(t, 0, sched.JobStateCalls)
}

func TestSubmitAction_SeedOutOfRange(t *testing.T) {
	var out bytes.Buffer
	err := newTestApp(&out).Run(context.Background(), submitArgs("kvm-fuzzing-tests", "-d", "--seed", "1000001"))
	assert.Error(t, err)
}

func TestSubmitAction_KVMTestsWithFailure(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "s3cr3t")
	fastPolling(t)

	sched := &testrunmock.MockScheduler{
		SubmitJobFunc: func(ctx context.Context, definition string) (testrun.JobID, error) {
			return "1234", nil
		},
		JobStateFunc: testrunmock.StateSequence(testrun.JobStateSubmitted, testrun.JobStateRunning, testrun.JobStateFinished),
		TestJobResultsYAMLFunc: func(ctx context.Context, id testrun.JobID) (string, error) {
			return `
- {name: run-tests, result: pass, url: /results/1234/0_kernel-tests/run-tests}
- {name: test-a, result: pass, url: /results/1234/0_kernel-tests/test-a}
- {name: test-b, result: pass, url: /results/1234/0_kernel-tests/test-b}
- {name: test-c, result: fail, url: /results/1234/0_kernel-tests/test-c}
`, nil
		},
	}

	var out bytes.Buffer
	err := newTestApp(&out,
		container.WithContainerScheduler(sched),
		container.WithContainerArtifactStore(&testrunmock.MockArtifactStore{}),
	).Run(context.Background(), submitArgs("kvm-tests"))

	require.Error(t, err)
	assert.ErrorIs(t, err, testrun.ErrTestCasesFailed)
	assert.Equal(t, 1, sched.SubmitCalls)

	output := out.String()
	assert.Contains(t, output, "Lava jobid:1234\n")
	assert.Contains(t, output, "Job started running\n")
	assert.Contains(t, output, "Job ended with Finished status.\n")
	assert.Contains(t, output, "\tFAILED test-c\n\t\t See http://lava.example.com/results/1234/0_kernel-tests/test-c\n")
	assert.Contains(t, output, "With 3 passed and 1 failed Lava test cases.\n")
	assert.Contains(t, output, "test-a")
}

func TestSubmitAction_JobIncomplete(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "s3cr3t")
	fastPolling(t)

	sched := &testrunmock.MockScheduler{
		JobStateFunc: testrunmock.StateSequence(testrun.JobStateRunning, "Incomplete"),
	}

	var out bytes.Buffer
	err := newTestApp(&out, container.WithContainerScheduler(sched)).
		Run(context.Background(), submitArgs("kvm-tests"))

	require.Error(t, err)
	assert.ErrorIs(t, err, testrun.ErrJobNotFinished)
	assert.Contains(t, out.String(), "Job ended with Incomplete status.\n")
	assert.NotContains(t, out.String(), "Testcase result:")
}

func TestSubmitAction_AllPassed(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "s3cr3t")
	fastPolling(t)

	sched := &testrunmock.MockScheduler{
		TestJobResultsYAMLFunc: func(ctx context.Context, id testrun.JobID) (string, error) {
			return "- {name: run-tests, result: pass, url: /results/1/run-tests}\n", nil
		},
	}

	var out bytes.Buffer
	err := newTestApp(&out, container.WithContainerScheduler(sched)).
		Run(context.Background(), submitArgs("kvm-fuzzing-tests"))

	require.NoError(t, err)
	assert.Contains(t, out.String(), "With 1 passed and 0 failed Lava test cases.\n")
}
