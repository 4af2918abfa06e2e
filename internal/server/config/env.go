package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables win over .env values per godotenv semantics.
//
// Recognized variables:
//
//	DATABASE_DSN              PostgreSQL DSN
//	REDIS_ADDR                Redis address for the validation cache
//	JWT_SECRET                HMAC signing secret
//	ACCESS_TOKEN_TTL_MINUTES  access token lifetime
//	REFRESH_TOKEN_TTL_MINUTES refresh token lifetime
//	RETENTION_DAYS            retention period for expired rows
//	SWEEP_BATCH_SIZE          rows per sweep delete statement
func parseEnv(config *Config) {
	_ = godotenv.Load()

	config.DatabaseDSN = getEnv("DATABASE_DSN", config.DatabaseDSN)
	config.RedisAddr = getEnv("REDIS_ADDR", config.RedisAddr)
	config.SecretKey = getEnv("JWT_SECRET", config.SecretKey)

	if v := getEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 0); v > 0 {
		config.AccessTokenTTL = time.Duration(v) * time.Minute
	}
	if v := getEnvAsInt("REFRESH_TOKEN_TTL_MINUTES", 0); v > 0 {
		config.RefreshTokenTTL = time.Duration(v) * time.Minute
	}
	if v := getEnvAsInt("RETENTION_DAYS", 0); v > 0 {
		config.RetentionPeriod = time.Duration(v) * 24 * time.Hour
	}
	if v := getEnvAsInt("SWEEP_BATCH_SIZE", 0); v > 0 {
		config.SweepBatchSize = v
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
