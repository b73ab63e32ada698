package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	APIUrl      string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret               string
	JWTAccessTokenDuration  time.Duration
	JWTRefreshTokenDuration time.Duration

	// Signed download URLs
	DownloadURLSecret string
	DownloadURLLease  time.Duration

	// Local storage (assets + published bundles)
	StoragePath string

	// Publish
	PublishLockTTL time.Duration

	// Bundle mirror S3 - optional offsite copy of published bundles
	BundleS3Enabled         bool
	BundleS3Endpoint        string
	BundleS3Region          string
	BundleS3AccessKeyID     string
	BundleS3SecretAccessKey string
	BundleS3UsePathStyle    bool
	BundleBucket            string

	// Routing
	ValhallaURL string

	// Security
	BcryptCost        int
	RateLimitRequests int
	RateLimitDuration time.Duration
	UploadMaxPerDay   int

	// CORS
	AllowedOrigins []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		APIUrl:      getEnv("API_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "tourforge"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "tourforge_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),
		JWTRefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", "168h"),

		// Signed download URLs
		DownloadURLSecret: getEnv("DOWNLOAD_URL_SECRET", "download-url-secret"),
		DownloadURLLease:  getEnvAsDuration("DOWNLOAD_URL_LEASE", "600s"),

		// Local storage
		StoragePath: getEnv("STORAGE_PATH", "./data"),

		// Publish
		PublishLockTTL: getEnvAsDuration("PUBLISH_LOCK_TTL", "5m"),

		// Bundle mirror S3
		BundleS3Enabled:         getEnvAsBool("BUNDLE_S3_ENABLED", false),
		BundleS3Endpoint:        getEnv("BUNDLE_S3_ENDPOINT", ""),
		BundleS3Region:          getEnv("BUNDLE_S3_REGION", "us-east-1"),
		BundleS3AccessKeyID:     getEnv("BUNDLE_S3_ACCESS_KEY_ID", ""),
		BundleS3SecretAccessKey: getEnv("BUNDLE_S3_SECRET_ACCESS_KEY", ""),
		BundleS3UsePathStyle:    getEnvAsBool("BUNDLE_S3_USE_PATH_STYLE", true),
		BundleBucket:            getEnv("BUNDLE_BUCKET", ""),

		// Routing
		ValhallaURL: getEnv("VALHALLA_URL", "https://valhalla1.openstreetmap.de"),

		// Security
		BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),
		UploadMaxPerDay:   getEnvAsInt("UPLOAD_MAX_PER_DAY", 500),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", "http://localhost:3000"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	value, _ := time.ParseDuration(defaultValue)
	return value
}

func getEnvAsSlice(key, defaultValue string) []string {
	valueStr := getEnv(key, defaultValue)
	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
