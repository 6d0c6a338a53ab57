package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（翻訳用）
	OpenAI OpenAIConfig

	// 翻訳パイプライン設定
	Translation TranslationConfig

	// ファイル保存先ディレクトリ
	StorageDir string

	// モデル単価ファイル（YAML）のパス
	PricingPath string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey string
	Model  string // 翻訳に使用するモデル名
}

// TranslationConfig は翻訳パイプラインの調整値
type TranslationConfig struct {
	MaxChunkSize     int
	ChunkDelay       time.Duration
	FailedChunkLimit int
	AttemptBudget    int
	CallTimeout      time.Duration
	Temperature      float64
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
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "honyaku"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "honyaku"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_MODEL", "gpt-4o-mini"), // デフォルトはgpt-4o-mini
		},
		Translation: TranslationConfig{
			MaxChunkSize:     getEnvAsInt("TRANSLATION_MAX_CHUNK_SIZE", 24000),
			ChunkDelay:       time.Duration(getEnvAsInt("TRANSLATION_CHUNK_DELAY_MS", 500)) * time.Millisecond,
			FailedChunkLimit: getEnvAsInt("TRANSLATION_FAILED_CHUNK_LIMIT", 2),
			AttemptBudget:    getEnvAsInt("TRANSLATION_ATTEMPT_BUDGET", 2),
			CallTimeout:      time.Duration(getEnvAsInt("TRANSLATION_CALL_TIMEOUT_SEC", 60)) * time.Second,
			Temperature:      getEnvAsFloat("TRANSLATION_TEMPERATURE", 0.3),
		},
		StorageDir:  getEnv("STORAGE_DIR", "/var/lib/honyaku/files"),
		PricingPath: getEnv("PRICING_PATH", ""),
	}

	return cfg, nil
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

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
