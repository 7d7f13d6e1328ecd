package testrun

import "errors"

var (
	// ErrUnknownTestType はテスト種別が認識できない場合のエラー
	ErrUnknownTestType = errors.New("unrecognized test type")

	// ErrSubmitRetriesExceeded はジョブ投入のリトライ上限に達した場合のエラー
	ErrSubmitRetriesExceeded = errors.New("job submission retries exceeded")

	// ErrPollRetriesExceeded はポーリング中のプロトコルエラーが上限に達した場合のエラー
	ErrPollRetriesExceeded = errors.New("job state polling retries exceeded")

	// ErrJobNotFinished はジョブがFinished以外の状態で終了した場合のエラー
	ErrJobNotFinished = errors.New("job did not finish")

	// ErrTestCasesFailed は失敗したテストケースが存在する場合のエラー
	ErrTestCasesFailed = errors.New("lava test cases failed")
)
