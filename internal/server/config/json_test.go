package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"database_dsn":           "vault.db",
		"redis_addr":             "cache:6379",
		"secret_key":             "my_secret_key",
		"session_ttl":            "30m",
		"reset_token_ttl":        "15m",
		"reset_window":           "1h",
		"reset_max_per_user":     3,
		"reset_max_per_ip":       5,
		"token_cleanup_interval": "10m",
		"argon_time":             2,
		"argon_memory_k":         32768,
		"argon_threads":          2,
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "cache:6379", cfg.RedisAddr)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 15*time.Minute, cfg.ResetTokenTTL)
		assert.Equal(t, time.Hour, cfg.ResetWindow)
		assert.Equal(t, 3, cfg.ResetMaxPerUser)
		assert.Equal(t, 5, cfg.ResetMaxPerIP)
		assert.Equal(t, 10*time.Minute, cfg.TokenCleanupInterval)
		assert.Equal(t, 2, cfg.ArgonTime)
		assert.Equal(t, 32768, cfg.ArgonMemoryK)
		assert.Equal(t, 2, cfg.ArgonThreads)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			DatabaseDSN:     "keep-dsn",
			SecretKey:       "keep-key",
			SessionTTL:      2 * time.Minute,
			ResetTokenTTL:   3 * time.Minute,
			ResetMaxPerUser: 7,
		}
		parseJson(cfg)

		assert.Equal(t, "keep-dsn", cfg.DatabaseDSN)
		assert.Equal(t, "keep-key", cfg.SecretKey)
		assert.Equal(t, 2*time.Minute, cfg.SessionTTL)
		assert.Equal(t, 3*time.Minute, cfg.ResetTokenTTL)
		assert.Equal(t, 7, cfg.ResetMaxPerUser)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
