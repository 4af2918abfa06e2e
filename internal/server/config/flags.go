package config

import (
	"flag"
	"os"
	"time"

	"github.com/newsplatform/sessiond/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-d string   PostgreSQL DSN
//	-x string   Redis address for the validation cache
//	-s string   JWT HMAC secret key
//	-t int      access token TTL, minutes
//	-r int      refresh token TTL, minutes
//	-k int      retention period, days
//	-b int      sweep batch size
//
// os.Args is filtered to only the flags handled here via flagx.FilterArgs,
// avoiding collisions with flags owned by other components. Durations are
// accepted as integers and converted.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-x", "-s", "-t", "-r", "-k", "-b"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "x", config.RedisAddr, "redis address (empty disables cache)")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTTL := fs.Int("t", int(config.AccessTokenTTL.Minutes()), "access token TTL (minutes)")
	refreshTTL := fs.Int("r", int(config.RefreshTokenTTL.Minutes()), "refresh token TTL (minutes)")
	retention := fs.Int("k", int(config.RetentionPeriod.Hours()/24), "retention period (days)")
	fs.IntVar(&config.SweepBatchSize, "b", config.SweepBatchSize, "sweep batch size")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
	config.RetentionPeriod = time.Duration(*retention) * 24 * time.Hour
}
