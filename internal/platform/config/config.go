package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TokenEnvVar はLAVAのAPIトークンを保持する環境変数名
const TokenEnvVar = "LAVA2_JENKINS_TOKEN"

// ErrTokenNotSet はAPIトークンが設定されていない場合のエラー
var ErrTokenNotSet = errors.New(TokenEnvVar + " not found in the environment variable")

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// LAVA設定
	LAVA LAVAConfig

	// オブジェクトストレージ設定（ベンチマーク結果の取得用）
	ObjStore ObjStoreConfig

	// ログ設定
	Log LogConfig

	// トレース設定
	Tracing TracingConfig

	// NFSRootfsURL はジョブで使用するルートファイルシステムのイメージ
	NFSRootfsURL string
}

// LAVAConfig はLAVAスケジューラへの接続とポーリングの設定
type LAVAConfig struct {
	Token    string
	Username string
	Hostname string

	SubmitMaxAttempts     int
	SubmitRetryInterval   time.Duration
	PollInterval          time.Duration
	PollMaxProtocolErrors int // 0 は無制限
	RPCTimeout            time.Duration
}

// ObjStoreConfig はS3互換オブジェクトストレージの設定
type ObjStoreConfig struct {
	Endpoint      string
	Bucket        string
	ResultsPrefix string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
}

// LogConfig はログ出力の設定
type LogConfig struct {
	Format string // "json" or "text"
	Level  string // "debug", "info", "warn", "error"
}

// TracingConfig はOpenTelemetryのエクスポート設定
type TracingConfig struct {
	Exporter string // "none", "stdout", "otlp", "otlphttp"
	Endpoint string
	Insecure bool
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		LAVA: LAVAConfig{
			Token:                 getEnv(TokenEnvVar, ""),
			Username:              getEnv("LAVA_USERNAME", "lava-jenkins"),
			Hostname:              getEnv("LAVA_HOSTNAME", "lava-master-02.internal.efficios.com"),
			SubmitMaxAttempts:     getEnvAsInt("LAVA_SUBMIT_MAX_ATTEMPTS", 10),
			SubmitRetryInterval:   getEnvAsDuration("LAVA_SUBMIT_RETRY_INTERVAL", 5*time.Second),
			PollInterval:          getEnvAsDuration("LAVA_POLL_INTERVAL", 30*time.Second),
			PollMaxProtocolErrors: getEnvAsInt("LAVA_POLL_MAX_PROTOCOL_ERRORS", 0),
			RPCTimeout:            getEnvAsDuration("LAVA_RPC_TIMEOUT", 5*time.Minute),
		},
		ObjStore: ObjStoreConfig{
			Endpoint:      getEnv("OBJSTORE_ENDPOINT", "obj.internal.efficios.com"),
			Bucket:        getEnv("OBJSTORE_BUCKET", "lava"),
			ResultsPrefix: getEnv("OBJSTORE_RESULTS_PREFIX", "results"),
			AccessKey:     getEnv("OBJSTORE_ACCESS_KEY", ""),
			SecretKey:     getEnv("OBJSTORE_SECRET_KEY", ""),
			UseSSL:        getEnvAsBool("OBJSTORE_USE_SSL", true),
		},
		Log: LogConfig{
			Format: getEnv("LOG_FORMAT", "text"),
			Level:  getEnv("LOG_LEVEL", "info"),
		},
		Tracing: TracingConfig{
			Exporter: getEnv("TRACING_EXPORTER", "none"),
			Endpoint: getEnv("TRACING_ENDPOINT", ""),
			Insecure: getEnvAsBool("TRACING_INSECURE", true),
		},
		NFSRootfsURL: getEnv("LAVA_NFS_ROOTFS_URL", "https://obj.internal.efficios.com/lava/rootfs/rootfs_amd64_xenial_2018-12-05.tar.gz"),
	}

	return cfg, nil
}

// RequireToken はAPIトークンが設定されていることを確認します
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.LAVA.Token) == "" {
		return ErrTokenNotSet
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "30s"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
