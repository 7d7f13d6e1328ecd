package testrun

import (
	"context"
	"errors"
)

// ErrProtocol はRPCトランスポート層の一時的な失敗を表す
// インフラ層のエラーは errors.Is(err, ErrProtocol) で判定できるようにする
var ErrProtocol = errors.New("rpc protocol error")

// IsProtocolError はリトライ対象のプロトコルエラーかどうかを返す
func IsProtocolError(err error) bool {
	return errors.Is(err, ErrProtocol)
}

// Scheduler はLAVAスケジューラのRPCを抽象化するインターフェース
type Scheduler interface {
	// SubmitJob はジョブ定義を投入し、ジョブIDを返す
	SubmitJob(ctx context.Context, definition string) (JobID, error)

	// JobState はジョブの現在の状態を返す
	JobState(ctx context.Context, id JobID) (JobState, error)

	// JobLogs はジョブのログストリーム（YAML）を返す
	JobLogs(ctx context.Context, id JobID) ([]byte, error)

	// TestJobResultsYAML はテストケース結果の一覧（YAML）を返す
	TestJobResultsYAML(ctx context.Context, id JobID) (string, error)

	// BundleContent は結果バンドルの内容（JSON文字列）を返す
	BundleContent(ctx context.Context, id JobID) (string, error)

	// JobURL はジョブのWeb UIのURLを返す
	JobURL(id JobID) string

	// ResultURL はテストケース結果の相対パスから閲覧用URLを組み立てる
	ResultURL(path string) string
}

// ArtifactStore はベンチマーク結果を保存しているオブジェクトストレージを抽象化する
type ArtifactStore interface {
	// FetchObject はビルドIDごとの成果物をローカルファイルに保存する
	FetchObject(ctx context.Context, buildID, name, destPath string) error

	// ObjectURL は表示用の成果物URLを返す
	ObjectURL(buildID, name string) string
}
