// Package config は環境変数ベースの設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Bot API
	BotAPIToken string
	BotAPIURL   string

	// Avatar
	AvatarDir       string
	DownloadTimeout time.Duration
	DownloadMaxSize int64

	// Dialogue
	SessionTTL       time.Duration
	PollTimeout      time.Duration
	BotMaxConcurrent int

	// Rate Limit（req/min/IP）
	RateLimitRegister int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BotAPIToken = os.Getenv("BOT_API_TOKEN")
	if cfg.BotAPIToken == "" {
		missing = append(missing, "BOT_API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.BotAPIURL = getEnvString("BOT_API_URL", "https://api.telegram.org")
	cfg.AvatarDir = getEnvString("AVATAR_DIR", "data/image")
	cfg.DownloadTimeout = getEnvDuration("DOWNLOAD_TIMEOUT", 10*time.Second)
	cfg.DownloadMaxSize = getEnvInt64("DOWNLOAD_MAX_SIZE", 5242880)
	cfg.SessionTTL = getEnvDuration("SESSION_TTL", 30*time.Minute)
	cfg.PollTimeout = getEnvDuration("POLL_TIMEOUT", 30*time.Second)
	cfg.BotMaxConcurrent = getEnvInt("BOT_MAX_CONCURRENT", 10)
	cfg.RateLimitRegister = getEnvInt("RATE_LIMIT_REGISTER", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
