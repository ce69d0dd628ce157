package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	AppPort        string
	DatabaseURL    string
	SQLitePath     string
	JWTSecret      string
	JWTExpiresMin  int
	PasswordScheme string
	LogLevel       string

	AnalyzerURL        string
	AnalyzerTimeoutSec int
	UploadDir          string
	StaticDir          string

	RedisAddr           string
	RedisPassword       string
	AnalysisCacheTTLMin int

	CORSAllowOrigins string

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

func Load() Config {
	return Config{
		AppPort:        get("PORT", get("APP_PORT", "8000")),
		DatabaseURL:    NormalizeDatabaseURL(get("DATABASE_URL", "")),
		SQLitePath:     get("SQLITE_PATH", "healthmate.db"),
		JWTSecret:      must("JWT_SECRET"),
		JWTExpiresMin:  getInt("JWT_EXPIRES_MIN", 10080),
		PasswordScheme: strings.ToLower(get("PASSWORD_SCHEME", "sha256")),
		LogLevel:       get("LOG_LEVEL", "info"),

		AnalyzerURL:        get("ANALYZER_URL", ""),
		AnalyzerTimeoutSec: getInt("ANALYZER_TIMEOUT_SEC", 30),
		UploadDir:          get("UPLOAD_DIR", "./uploads"),
		StaticDir:          get("STATIC_DIR", "./static"),

		RedisAddr:           get("REDIS_ADDR", ""),
		RedisPassword:       get("REDIS_PASSWORD", ""),
		AnalysisCacheTTLMin: getInt("ANALYSIS_CACHE_TTL_MIN", 60),

		CORSAllowOrigins: get("CORS_ALLOW_ORIGINS", "*"),

		GoogleClientID:  get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:    get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:  get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL: get("FRONTEND_BASE_URL", ""),
	}
}

// NormalizeDatabaseURL rewrites the legacy postgres:// scheme some hosting
// providers hand out. An empty URL selects the local sqlite file.
func NormalizeDatabaseURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasPrefix(u, "postgres://") {
		return "postgresql://" + strings.TrimPrefix(u, "postgres://")
	}
	return u
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(get(k, ""))
	if err != nil {
		return def
	}
	return v
}

func must(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing env: " + k)
	}
	return v
}
