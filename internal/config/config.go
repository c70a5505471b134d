package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all service configuration loaded from environment variables.
type Config struct {
	Port           string
	PostgresDSN    string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins       []string
	LogLevel          string
	LogPretty         bool
	RateLimitRequests string
	EventsRelay       bool
	DevMode           bool
	MaxPhotoBytes     int64
}

var defaults = map[string]any{
	"PORT":                "5000",
	"POSTGRES_DSN":        "",
	"MONGO_URI":           "mongodb://localhost:27017",
	"MONGO_DB":            "skillswap",
	"REDIS_ADDR":          "redis:6379",
	"REDIS_PASSWORD":      "",
	"MINIO_ENDPOINT":      "minio:9000",
	"MINIO_ACCESS_KEY":    "",
	"MINIO_SECRET_KEY":    "",
	"MINIO_BUCKET":        "profile-photos",
	"MINIO_USE_SSL":       false,
	"JWT_SECRET":          "",
	"JWT_TTL":             "168h",
	"CORS_ORIGINS":        "http://localhost:3000,http://localhost:5173",
	"LOG_LEVEL":           "info",
	"LOG_PRETTY":          false,
	"RATE_LIMIT_REQUESTS": "30-M",
	"EVENTS_RELAY":        false,
	"DEV_MODE":            false,
	"MAX_PHOTO_BYTES":     5_000_000,
}

// Load reads an optional .env file (path from envFile, or ".env") and then
// the process environment. Missing .env is not an error.
func Load(envFile ...string) *Config {
	if len(envFile) == 0 {
		envFile = []string{".env"}
	}
	// godotenv never overrides variables already set in the environment.
	_ = godotenv.Load(envFile...)

	v := viper.New()
	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	return &Config{
		Port:              v.GetString("PORT"),
		PostgresDSN:       v.GetString("POSTGRES_DSN"),
		MongoURI:          v.GetString("MONGO_URI"),
		MongoDB:           v.GetString("MONGO_DB"),
		RedisAddr:         v.GetString("REDIS_ADDR"),
		RedisPassword:     v.GetString("REDIS_PASSWORD"),
		MinioEndpoint:     v.GetString("MINIO_ENDPOINT"),
		MinioAccessKey:    v.GetString("MINIO_ACCESS_KEY"),
		MinioSecretKey:    v.GetString("MINIO_SECRET_KEY"),
		MinioBucket:       v.GetString("MINIO_BUCKET"),
		MinioUseSSL:       v.GetBool("MINIO_USE_SSL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		JWTTTL:            v.GetDuration("JWT_TTL"),
		CORSOrigins:       splitList(v.GetString("CORS_ORIGINS")),
		LogLevel:          v.GetString("LOG_LEVEL"),
		LogPretty:         v.GetBool("LOG_PRETTY"),
		RateLimitRequests: v.GetString("RATE_LIMIT_REQUESTS"),
		EventsRelay:       v.GetBool("EVENTS_RELAY"),
		DevMode:           v.GetBool("DEV_MODE"),
		MaxPhotoBytes:     v.GetInt64("MAX_PHOTO_BYTES"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
