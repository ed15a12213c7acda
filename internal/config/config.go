package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL   string
	MongoDatabase string

	// Auth
	JWTSecret     string
	TokenTTL      time.Duration // 0の場合はトークンに有効期限を設定しない
	SessionMaxAge int           // トークンCookieの有効期間（秒）
	BcryptCost    int

	// Site
	SiteTitle       string
	SiteDescription string
	ContactName     string
	ContactPhone    string
	PostsPerPage    int

	// Rate Limit
	RateLimitLogin int // req/min/IP

	// Import
	ImportTimeout time.Duration
	ImportMaxSize int64

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// minBcryptCost はパスワードハッシュに許容する最小コスト。
const minBcryptCost = 10

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.MongoDatabase = getEnvString("MONGO_DATABASE", "blog")
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 0)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 36000)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", minBcryptCost)
	if cfg.BcryptCost < minBcryptCost {
		cfg.BcryptCost = minBcryptCost
	}
	cfg.SiteTitle = getEnvString("SITE_TITLE", "Go Blog")
	cfg.SiteDescription = getEnvString("SITE_DESCRIPTION", "Simple Blog created with Go, chi & PostgreSQL.")
	cfg.ContactName = getEnvString("CONTACT_NAME", "Blog Admin")
	cfg.ContactPhone = getEnvString("CONTACT_PHONE", "")
	cfg.PostsPerPage = getEnvInt("POSTS_PER_PAGE", 10)
	if cfg.PostsPerPage < 1 {
		cfg.PostsPerPage = 10
	}
	cfg.RateLimitLogin = getEnvInt("RATE_LIMIT_LOGIN", 10)
	cfg.ImportTimeout = getEnvDuration("IMPORT_TIMEOUT", 10*time.Second)
	cfg.ImportMaxSize = getEnvInt64("IMPORT_MAX_SIZE", 5242880)
	cfg.ServerPort = getEnvString("SERVER_PORT", "5002")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	return cfg, nil
}

// UsesMongo はDATABASE_URLがMongoDBを指しているかを返す。
func (c *Config) UsesMongo() bool {
	return strings.HasPrefix(c.DatabaseURL, "mongodb://") ||
		strings.HasPrefix(c.DatabaseURL, "mongodb+srv://")
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
