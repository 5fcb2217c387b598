package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/metabot/lockr/internal/flagx"
	"github.com/metabot/lockr/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON
// unmarshalling. It uses timex.Duration for interval fields, which allows
// parsing both string values such as "30m" and integer nanoseconds.
//
// This struct is an intermediate DTO used only for reading JSON
// configuration files; after unmarshalling, its fields are copied into
// the runtime Config.
type JsonConfig struct {
	DatabaseDSN          string         `json:"database_dsn"`
	RedisAddr            string         `json:"redis_addr"`
	SecretKey            string         `json:"secret_key"`
	SessionTTL           timex.Duration `json:"session_ttl"`
	ResetTokenTTL        timex.Duration `json:"reset_token_ttl"`
	ResetWindow          timex.Duration `json:"reset_window"`
	ResetMaxPerUser      int            `json:"reset_max_per_user"`
	ResetMaxPerIP        int            `json:"reset_max_per_ip"`
	TokenCleanupInterval timex.Duration `json:"token_cleanup_interval"`
	ArgonTime            int            `json:"argon_time"`
	ArgonMemoryK         int            `json:"argon_memory_k"`
	ArgonThreads         int            `json:"argon_threads"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance. The file path comes from the -c or -config flags; if
// neither is set, no JSON file is loaded. If the file cannot be read or
// contains invalid JSON, the function panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	config.DatabaseDSN = c.DatabaseDSN
	config.RedisAddr = c.RedisAddr
	config.SecretKey = c.SecretKey
	config.SessionTTL = time.Duration(c.SessionTTL.Duration)
	config.ResetTokenTTL = time.Duration(c.ResetTokenTTL.Duration)
	config.ResetWindow = time.Duration(c.ResetWindow.Duration)
	config.ResetMaxPerUser = c.ResetMaxPerUser
	config.ResetMaxPerIP = c.ResetMaxPerIP
	config.TokenCleanupInterval = time.Duration(c.TokenCleanupInterval.Duration)
	config.ArgonTime = c.ArgonTime
	config.ArgonMemoryK = c.ArgonMemoryK
	config.ArgonThreads = c.ArgonThreads
}
