package lava

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jinford/lava-submit/internal/core/testrun"
)

// ProtocolError はHTTPレベルでRPC呼び出しが失敗したことを表す
// errors.Is(err, testrun.ErrProtocol) が真になる
type ProtocolError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error for %s: %s", e.URL, e.Status)
}

// Is はリトライ判定用の共通エラーに一致させる
func (e *ProtocolError) Is(target error) bool {
	return target == testrun.ErrProtocol
}

// statusCheckTransport は2xx以外の応答を ProtocolError に変換する
type statusCheckTransport struct {
	base http.RoundTripper
}

func newStatusCheckTransport(timeout time.Duration) *statusCheckTransport {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = timeout
	return &statusCheckTransport{base: base}
}

func (t *statusCheckTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &ProtocolError{
			URL:        req.URL.Redacted(),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		}
	}
	return resp, nil
}
