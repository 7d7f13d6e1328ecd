package testrun

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed templates/lava_job.yaml.tmpl
var templateFiles embed.FS

const defaultTemplateName = "templates/lava_job.yaml.tmpl"

const (
	// DefaultVlttngPath はジョブ内でvlttngが仮想環境を作成するパス
	DefaultVlttngPath = "/tmp/virtenv"

	// DefaultKprobeRoundNB はkprobeファジングの反復回数
	DefaultKprobeRoundNB = 10

	// MaxRandomSeed はランダムシードの上限（両端を含む）
	MaxRandomSeed = 1000000
)

// VlttngCommand はジョブのセットアップで実行するvlttngコマンドを組み立てる
// ustCommit が空の場合はlttng-ustのプロファイルを含めない
func VlttngCommand(toolsCommit, ustCommit, vlttngPath string) string {
	var b strings.Builder
	b.WriteString("vlttng --jobs=$(nproc) --profile urcu-master")
	b.WriteString(" --override projects.babeltrace.build-env.PYTHON=python3")
	b.WriteString(" --override projects.babeltrace.build-env.PYTHON_CONFIG=python3-config")
	b.WriteString(" --profile babeltrace-stable-1.4")
	b.WriteString(" --profile babeltrace-python")
	b.WriteString(" --profile lttng-tools-master")
	b.WriteString(" --override projects.lttng-tools.checkout=" + toolsCommit)
	b.WriteString(" --profile lttng-tools-no-man-pages")

	if ustCommit != "" {
		b.WriteString(" --profile lttng-ust-master ")
		b.WriteString(" --override projects.lttng-ust.checkout=" + ustCommit)
		b.WriteString(" --profile lttng-ust-no-man-pages")
	}

	b.WriteString(" " + vlttngPath)
	return b.String()
}

// TemplateContext はテンプレートに渡すパラメータを組み立てる
func TemplateContext(req JobRequest) map[string]any {
	vlttngPath := req.VlttngPath
	if vlttngPath == "" {
		vlttngPath = DefaultVlttngPath
	}

	rounds := make([]int, req.KprobeRoundNB)
	for i := range rounds {
		rounds[i] = i
	}

	return map[string]any{
		"job_name":          req.JobName,
		"test_type":         string(req.TestType),
		"device_type":       string(req.DeviceType()),
		"random_seed":       req.RandomSeed,
		"vlttng_cmd":        VlttngCommand(req.ToolsCommit, req.USTCommit, vlttngPath),
		"vlttng_path":       vlttngPath,
		"kernel_url":        req.KernelURL,
		"nfsrootfs_url":     req.NFSRootfsURL,
		"lttng_modules_url": req.ModulesURL,
		"jenkins_build_id":  req.BuildID,
		"kprobe_round_nb":   req.KprobeRoundNB,
		"kprobe_rounds":     rounds,
	}
}

// RenderJob はジョブ定義を生成する。副作用はない
// req.TemplateSource が空の場合は組み込みテンプレートを使用する
func RenderJob(req JobRequest) (string, error) {
	source := req.TemplateSource
	if source == "" {
		data, err := templateFiles.ReadFile(defaultTemplateName)
		if err != nil {
			return "", fmt.Errorf("組み込みテンプレートの読み込みに失敗: %w", err)
		}
		source = string(data)
	}

	tmpl, err := template.New("lava_job").Option("missingkey=error").Parse(source)
	if err != nil {
		return "", fmt.Errorf("テンプレートの解析に失敗: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, TemplateContext(req)); err != nil {
		return "", fmt.Errorf("テンプレートの展開に失敗: %w", err)
	}

	return buf.String(), nil
}
