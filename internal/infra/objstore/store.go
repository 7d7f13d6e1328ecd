package objstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	// DefaultEndpoint はベンチマーク結果を保存しているオブジェクトストレージ
	DefaultEndpoint = "obj.internal.efficios.com"

	// DefaultBucket はLAVAの成果物を保存しているバケット
	DefaultBucket = "lava"

	// DefaultResultsPrefix はビルドIDごとの結果を保存しているプレフィックス
	DefaultResultsPrefix = "results"

	defaultRegion = "us-east-1"
)

// ErrEndpointNotSet はエンドポイントが空の場合のエラー
var ErrEndpointNotSet = errors.New("object storage endpoint not set")

// Config はオブジェクトストレージの接続設定
// AccessKey が空の場合は匿名アクセスになる
type Config struct {
	Endpoint      string
	Bucket        string
	ResultsPrefix string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
}

// Store はS3互換ストレージからLAVAの成果物を取得する
type Store struct {
	client *minio.Client
	cfg    Config
}

// New は新しい Store を作成する
func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, ErrEndpointNotSet
	}
	if cfg.Bucket == "" {
		cfg.Bucket = DefaultBucket
	}
	cfg.Endpoint = endpoint

	client, err := minio.New(endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       defaultRegion,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("オブジェクトストレージクライアントの作成に失敗: %w", err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// objectName はビルドIDと成果物名からオブジェクト名を組み立てる
func (s *Store) objectName(buildID, name string) string {
	return path.Join(s.cfg.ResultsPrefix, buildID, name)
}

// ObjectURL は成果物のURLを返す
func (s *Store) ObjectURL(buildID, name string) string {
	scheme := "http"
	if s.cfg.UseSSL {
		scheme = "https"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   s.cfg.Endpoint,
		Path:   "/" + path.Join(s.cfg.Bucket, s.objectName(buildID, name)),
	}
	return u.String()
}

// FetchObject は成果物を destPath に保存する
func (s *Store) FetchObject(ctx context.Context, buildID, name, destPath string) error {
	object := s.objectName(buildID, name)
	if err := s.client.FGetObject(ctx, s.cfg.Bucket, object, destPath, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("%s/%s の取得に失敗: %w", s.cfg.Bucket, object, err)
	}
	return nil
}
