package config

import (
	"encoding/json"
	"os"

	"github.com/newsplatform/sessiond/internal/flagx"
	"github.com/newsplatform/sessiond/internal/timex"
)

// JsonConfig is the intermediate DTO for JSON configuration files. Interval
// fields use timex.Duration so both "24h" strings and integer nanoseconds
// parse. Zero values are treated as absent and do not override the target.
type JsonConfig struct {
	DatabaseDSN       string         `json:"database_dsn"`
	RedisAddr         string         `json:"redis_addr"`
	SecretKey         string         `json:"secret_key"`
	AccessTokenTTL    timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL   timex.Duration `json:"refresh_token_ttl"`
	RetentionPeriod   timex.Duration `json:"retention_period"`
	SweepInterval     timex.Duration `json:"sweep_interval"`
	ReconcileInterval timex.Duration `json:"reconcile_interval"`
	SweepBatchSize    int            `json:"sweep_batch_size"`
	CacheTTL          timex.Duration `json:"cache_ttl"`
}

// parseJson loads configuration from the JSON file named by the -c/-config
// flags. When no flag is given, nothing is loaded. An unreadable or invalid
// file panics: a requested config file that cannot be applied is fatal.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
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

	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.AccessTokenTTL.Duration > 0 {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL.Duration > 0 {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.RetentionPeriod.Duration > 0 {
		config.RetentionPeriod = c.RetentionPeriod.Duration
	}
	if c.SweepInterval.Duration > 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.ReconcileInterval.Duration > 0 {
		config.ReconcileInterval = c.ReconcileInterval.Duration
	}
	if c.SweepBatchSize > 0 {
		config.SweepBatchSize = c.SweepBatchSize
	}
	if c.CacheTTL.Duration > 0 {
		config.CacheTTL = c.CacheTTL.Duration
	}
}
