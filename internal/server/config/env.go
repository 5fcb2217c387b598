package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays Config fields from environment variables. A .env file
// in the working directory is loaded first if present; real environment
// variables win over .env values (godotenv does not override existing
// ones). Unset variables leave the current value untouched; malformed
// values are ignored.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		config.RedisAddr = v
	}
	if v := os.Getenv("SECRET_KEY"); v != "" {
		config.SecretKey = v
	}

	setDuration := func(name string, dst *time.Duration) {
		if v := os.Getenv(name); v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	setInt := func(name string, dst *int) {
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setDuration("SESSION_TTL", &config.SessionTTL)
	setDuration("RESET_TOKEN_TTL", &config.ResetTokenTTL)
	setDuration("RESET_WINDOW", &config.ResetWindow)
	setDuration("TOKEN_CLEANUP_INTERVAL", &config.TokenCleanupInterval)
	setInt("RESET_MAX_PER_USER", &config.ResetMaxPerUser)
	setInt("RESET_MAX_PER_IP", &config.ResetMaxPerIP)
	setInt("ARGON_TIME", &config.ArgonTime)
	setInt("ARGON_MEMORY_K", &config.ArgonMemoryK)
	setInt("ARGON_THREADS", &config.ArgonThreads)
}
