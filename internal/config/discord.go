package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type DiscordConfig struct {
	Token         string `env:"DISCORD_TOKEN, required"`
	CommandPrefix string `env:"COMMAND_PREFIX, default=!"`
}

func NewDiscordConfigFromEnv() (*DiscordConfig, error) {
	return newDiscordConfig(context.Background(), envconfig.OsLookuper())
}

func newDiscordConfig(ctx context.Context, lookuper envconfig.Lookuper) (*DiscordConfig, error) {
	var cfg DiscordConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.CommandPrefix) == "" || strings.ContainsAny(cfg.CommandPrefix, " \t\n") {
		return nil, fmt.Errorf("COMMAND_PREFIX must be non-empty and contain no whitespace, got %q", cfg.CommandPrefix)
	}

	return &cfg, nil
}
