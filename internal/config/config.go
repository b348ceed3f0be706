package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv, AppPort, BaseURL string
	DBDSN                    string
	RedisAddr                string
	RedisDB                  int
	SessionCookieName        string
	SessionCookieSecret      string

	GoogleClientID, GoogleClientSecret, GoogleRedirectURL string
	OAuthAllowedDomains                                   []string
	CORSOrigins                                           []string

	LLMKey, LLMModel, LLMBaseURL string
	LLMTemperature               float64
	LLMMaxTokens                 int
	LLMRPS                       int
	LLMBurst                     int

	RenderTimeout    time.Duration
	RenderWidthCard  int
	RenderWidthWide  int
	RenderHeightHint int
	ChromeNoSandbox  bool

	StorageDir     string
	StoragePublic  string
	ThumbnailMaxW  int
	LatestCacheTTL time.Duration

	SignupPoints int
}

func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		AppEnv:              get("APP_ENV", "dev"),
		AppPort:             get("APP_PORT", "8080"),
		BaseURL:             get("APP_BASE_URL", "http://localhost:8080"),
		DBDSN:               must("DB_DSN"),
		RedisAddr:           get("REDIS_ADDR", "127.0.0.1:6379"),
		RedisDB:             atoi(get("REDIS_DB", "0")),
		SessionCookieName:   get("SESSION_COOKIE_NAME", "cardsum_sid"),
		SessionCookieSecret: must("SESSION_COOKIE_SECRET"),
		CORSOrigins:         split(get("CORS_ORIGINS", "http://localhost:3000")),
		GoogleClientID:      must("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:  must("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:   must("GOOGLE_REDIRECT_URL"),
		OAuthAllowedDomains: split(get("OAUTH_ALLOWED_DOMAINS", "")),
		LLMKey:              get("LLM_API_KEY", ""),
		LLMModel:            get("LLM_MODEL", "deepseek-chat"),
		LLMBaseURL:          get("LLM_BASE_URL", "https://api.deepseek.com/v1/chat/completions"),
		LLMTemperature:      parseFloat(get("LLM_TEMPERATURE", "0.7")),
		LLMMaxTokens:        atoi(get("LLM_MAX_TOKENS", "8192")),
		LLMRPS:              atoi(get("LLM_RPS", "2")),
		LLMBurst:            atoi(get("LLM_BURST", "2")),
		RenderTimeout:       mustDuration(get("RENDER_TIMEOUT", "30s")),
		RenderWidthCard:     atoi(get("RENDER_WIDTH_CARD", "720")),
		RenderWidthWide:     atoi(get("RENDER_WIDTH_WIDE", "1280")),
		RenderHeightHint:    atoi(get("RENDER_HEIGHT_HINT", "600")),
		ChromeNoSandbox:     parseBool(get("CHROME_NO_SANDBOX", "true")),
		StorageDir:          get("STORAGE_DIR", "./storage"),
		StoragePublic:       get("STORAGE_PUBLIC_PATH", "/storage"),
		ThumbnailMaxW:       atoi(get("THUMBNAIL_MAX_W", "360")),
		LatestCacheTTL:      mustDuration(get("LATEST_CACHE_TTL", "1h")),
		SignupPoints:        atoi(get("SIGNUP_POINTS", "5")),
	}
	return c
}

func get(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		log.Fatalf("missing env %s", k)
	}
	return v
}
func atoi(s string) int                   { i, _ := strconv.Atoi(s); return i }
func parseBool(s string) bool             { b, _ := strconv.ParseBool(s); return b }
func parseFloat(s string) float64         { f, _ := strconv.ParseFloat(s, 64); return f }
func mustDuration(s string) time.Duration { d, _ := time.ParseDuration(s); return d }
func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func GetEnv(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
