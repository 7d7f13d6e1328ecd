package lava

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"

	"github.com/jinford/lava-submit/internal/core/testrun"
)

const (
	// DefaultUsername はLAVAのAPIトークンに対応するユーザー名
	DefaultUsername = "lava-jenkins"

	// DefaultHostname はLAVAマスターのホスト名
	DefaultHostname = "lava-master-02.internal.efficios.com"

	// DefaultTimeout は1回のRPC呼び出しのタイムアウト
	DefaultTimeout = 5 * time.Minute
)

var (
	// ErrHostnameNotSet はホスト名が空の場合のエラー
	ErrHostnameNotSet = errors.New("LAVA hostname not set")

	// ErrUnexpectedReply はRPCの応答形式が想定と異なる場合のエラー
	ErrUnexpectedReply = errors.New("unexpected xml-rpc reply")
)

// Config はLAVAクライアントの設定
type Config struct {
	Scheme   string // 省略時は "http"
	Hostname string
	Username string
	Token    string
	Timeout  time.Duration
}

// Client はLAVAスケジューラのXML-RPC APIクライアント
type Client struct {
	rpc      *xmlrpc.Client
	baseURL  *url.URL
	endpoint *url.URL
}

// NewClient は新しい Client を作成する
// 認証情報はエンドポイントURLのユーザー情報として送信する
func NewClient(cfg Config) (*Client, error) {
	if cfg.Hostname == "" {
		return nil, ErrHostnameNotSet
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Username == "" {
		cfg.Username = DefaultUsername
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	baseURL := &url.URL{Scheme: cfg.Scheme, Host: cfg.Hostname}
	endpoint := &url.URL{
		Scheme: cfg.Scheme,
		Host:   cfg.Hostname,
		Path:   "/RPC2",
		User:   url.UserPassword(cfg.Username, cfg.Token),
	}

	rpc, err := xmlrpc.NewClient(endpoint.String(), newStatusCheckTransport(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("XML-RPCクライアントの作成に失敗: %w", err)
	}

	return &Client{
		rpc:      rpc,
		baseURL:  baseURL,
		endpoint: endpoint,
	}, nil
}

// Close はクライアントを閉じる
func (c *Client) Close() error {
	return c.rpc.Close()
}

// Endpoint は認証情報を伏せたエンドポイントURLを返す（ログ出力用）
func (c *Client) Endpoint() string {
	return c.endpoint.Redacted()
}

// JobURL はジョブのWeb UIのURLを返す
func (c *Client) JobURL(id testrun.JobID) string {
	return c.baseURL.JoinPath("scheduler", "job", string(id)).String()
}

// ResultURL は results.get_testjob_results_yaml の url フィールドから閲覧用URLを組み立てる
func (c *Client) ResultURL(path string) string {
	return c.baseURL.String() + path
}

// call はcontextのキャンセルを考慮してRPCを呼び出す
// net/rpc は呼び出し単位のキャンセルを持たないため、キャンセル時は応答を待たずに戻る
func (c *Client) call(ctx context.Context, method string, args any, reply any) error {
	done := make(chan error, 1)
	go func() {
		done <- c.rpc.Call(method, args, reply)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return nil
	}
}

// SubmitJob は scheduler.submit_job を呼び出す
func (c *Client) SubmitJob(ctx context.Context, definition string) (testrun.JobID, error) {
	var reply any
	if err := c.call(ctx, "scheduler.submit_job", definition, &reply); err != nil {
		return "", err
	}
	return jobIDFromReply(reply)
}

// jobIDFromReply はsubmit_jobの応答をJobIDに変換する
// マルチノードジョブではIDのリストが返るため先頭を使用する
func jobIDFromReply(reply any) (testrun.JobID, error) {
	switch v := reply.(type) {
	case int64:
		return testrun.JobID(strconv.FormatInt(v, 10)), nil
	case int:
		return testrun.JobID(strconv.Itoa(v)), nil
	case string:
		if v == "" {
			return "", fmt.Errorf("%w: empty job id", ErrUnexpectedReply)
		}
		return testrun.JobID(v), nil
	case []any:
		if len(v) == 0 {
			return "", fmt.Errorf("%w: empty job id list", ErrUnexpectedReply)
		}
		return jobIDFromReply(v[0])
	default:
		return "", fmt.Errorf("%w: job id of type %T", ErrUnexpectedReply, reply)
	}
}

type jobStateReply struct {
	JobState string `xmlrpc:"job_state"`
}

// JobState は scheduler.job_state を呼び出す
func (c *Client) JobState(ctx context.Context, id testrun.JobID) (testrun.JobState, error) {
	var reply jobStateReply
	if err := c.call(ctx, "scheduler.job_state", string(id), &reply); err != nil {
		return "", err
	}
	return testrun.JobState(reply.JobState), nil
}

// JobLogs は scheduler.jobs.logs を呼び出し、ログ本文を返す
// 応答は [finished, base64(log)] の配列
// xmlrpc パッケージは <base64> 値を文字列のまま返すため、ここでデコードする
func (c *Client) JobLogs(ctx context.Context, id testrun.JobID) ([]byte, error) {
	var reply []any
	if err := c.call(ctx, "scheduler.jobs.logs", string(id), &reply); err != nil {
		return nil, err
	}
	if len(reply) < 2 {
		return nil, fmt.Errorf("%w: logs reply has %d elements", ErrUnexpectedReply, len(reply))
	}

	switch v := reply[1].(type) {
	case []byte:
		return v, nil
	case string:
		return decodeLogData(v)
	default:
		return nil, fmt.Errorf("%w: log data of type %T", ErrUnexpectedReply, reply[1])
	}
}

// decodeLogData は <base64> 値の本文をデコードする
// 本文中の改行・空白は区切りとして無視する
func decodeLogData(encoded string) ([]byte, error) {
	compact := strings.Join(strings.Fields(encoded), "")
	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: log data is not base64: %w", ErrUnexpectedReply, err)
	}
	return data, nil
}

// TestJobResultsYAML は results.get_testjob_results_yaml を呼び出す
func (c *Client) TestJobResultsYAML(ctx context.Context, id testrun.JobID) (string, error) {
	var reply string
	if err := c.call(ctx, "results.get_testjob_results_yaml", string(id), &reply); err != nil {
		return "", err
	}
	return reply, nil
}

type jobStatusReply struct {
	BundleSHA1 string `xmlrpc:"bundle_sha1"`
}

type bundleReply struct {
	Content string `xmlrpc:"content"`
}

// BundleContent は scheduler.job_status でバンドルのSHA1を取得し、dashboard.get で内容を返す
func (c *Client) BundleContent(ctx context.Context, id testrun.JobID) (string, error) {
	var status jobStatusReply
	if err := c.call(ctx, "scheduler.job_status", string(id), &status); err != nil {
		return "", err
	}
	if status.BundleSHA1 == "" {
		return "", fmt.Errorf("%w: job %s has no results bundle", ErrUnexpectedReply, id)
	}

	var bundle bundleReply
	if err := c.call(ctx, "dashboard.get", status.BundleSHA1, &bundle); err != nil {
		return "", err
	}
	return bundle.Content, nil
}
