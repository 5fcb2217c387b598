package config

import (
	"flag"
	"os"
	"time"

	"github.com/metabot/lockr/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   PostgreSQL DSN
//	-e string   Redis address for the reset rate limiter (empty = use DB)
//	-s string   JWT HMAC secret key
//	-t int      vault session TTL, minutes
//	-l int      reset token TTL, minutes
//	-w int      reset rate-limit window, minutes
//	-m int      max reset requests per user per window
//	-i int      max reset requests per IP per window
//	-g int      expired-token cleanup interval, minutes
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes
//     using flagx.FilterArgs, avoiding collisions with other components.
//   - Duration flags are accepted as integers in minutes and then
//     converted to time.Duration values.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-e", "-s", "-t", "-l", "-w", "-m", "-i", "-g"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "e", config.RedisAddr, "redis address")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	sessionTTL := fs.Int("t", int(config.SessionTTL.Minutes()), "session TTL (in minutes)")
	resetTokenTTL := fs.Int("l", int(config.ResetTokenTTL.Minutes()), "reset token TTL (in minutes)")
	resetWindow := fs.Int("w", int(config.ResetWindow.Minutes()), "reset rate-limit window (in minutes)")
	cleanupInterval := fs.Int("g", int(config.TokenCleanupInterval.Minutes()), "token cleanup interval (in minutes)")

	fs.IntVar(&config.ResetMaxPerUser, "m", config.ResetMaxPerUser, "max reset requests per user per window")
	fs.IntVar(&config.ResetMaxPerIP, "i", config.ResetMaxPerIP, "max reset requests per IP per window")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SessionTTL = time.Duration(*sessionTTL) * time.Minute
	config.ResetTokenTTL = time.Duration(*resetTokenTTL) * time.Minute
	config.ResetWindow = time.Duration(*resetWindow) * time.Minute
	config.TokenCleanupInterval = time.Duration(*cleanupInterval) * time.Minute
}
