package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// RedisConfig configures the optional metadata cache.
// An empty Addr disables Redis and the bot falls back to an in-memory cache.
type RedisConfig struct {
	Addr        string        `env:"REDIS_ADDR"`
	Password    string        `env:"REDIS_PASSWORD"`
	MetadataTTL time.Duration `env:"REDIS_METADATA_TTL, default=24h"`

	// HistoryStream receives an entry for every song that starts playing.
	HistoryStream string `env:"REDIS_HISTORY_STREAM, default=jukebox:history"`
	HistoryMaxLen int64  `env:"REDIS_HISTORY_MAX_LEN, default=10000"`
}

func NewRedisConfigFromEnv() (*RedisConfig, error) {
	return newRedisConfig(context.Background(), envconfig.OsLookuper())
}

func newRedisConfig(ctx context.Context, lookuper envconfig.Lookuper) (*RedisConfig, error) {
	var cfg RedisConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.MetadataTTL <= 0 {
		return nil, fmt.Errorf("REDIS_METADATA_TTL must be positive, got %s", cfg.MetadataTTL)
	}
	if cfg.HistoryMaxLen <= 0 {
		return nil, fmt.Errorf("REDIS_HISTORY_MAX_LEN must be positive, got %d", cfg.HistoryMaxLen)
	}
	return &cfg, nil
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}
