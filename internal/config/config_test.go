package config

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/sethvargo/go-envconfig"
)

func TestNewDiscordConfig(t *testing.T) {
	tc := []struct {
		name     string
		env      map[string]string
		expected *DiscordConfig
		err      bool
	}{
		{
			name:     "token with default prefix",
			env:      map[string]string{"DISCORD_TOKEN": "secret"},
			expected: &DiscordConfig{Token: "secret", CommandPrefix: "!"},
		},
		{
			name:     "custom prefix",
			env:      map[string]string{"DISCORD_TOKEN": "secret", "COMMAND_PREFIX": "?"},
			expected: &DiscordConfig{Token: "secret", CommandPrefix: "?"},
		},
		{
			name: "missing token fails fast",
			env:  map[string]string{},
			err:  true,
		},
		{
			name: "prefix with whitespace",
			env:  map[string]string{"DISCORD_TOKEN": "secret", "COMMAND_PREFIX": "! "},
			err:  true,
		},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := newDiscordConfig(context.Background(), envconfig.MapLookuper(test.env))
			if test.err {
				if err == nil {
					t.Errorf("expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(test.expected, cfg); diff != "" {
				t.Errorf("config mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNewRedisConfig(t *testing.T) {
	cfg, err := newRedisConfig(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Enabled() {
		t.Errorf("expected redis to be disabled without REDIS_ADDR")
	}
	if cfg.MetadataTTL != 24*time.Hour {
		t.Errorf("expected default TTL of 24h, got %s", cfg.MetadataTTL)
	}
	if cfg.HistoryStream != "jukebox:history" || cfg.HistoryMaxLen != 10000 {
		t.Errorf("unexpected history defaults: %q, %d", cfg.HistoryStream, cfg.HistoryMaxLen)
	}

	cfg, err = newRedisConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"REDIS_ADDR":         "localhost:6379",
		"REDIS_METADATA_TTL": "5m",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Enabled() {
		t.Errorf("expected redis to be enabled")
	}
	if cfg.MetadataTTL != 5*time.Minute {
		t.Errorf("expected TTL of 5m, got %s", cfg.MetadataTTL)
	}

	_, err = newRedisConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"REDIS_METADATA_TTL": "0s",
	}))
	if err == nil {
		t.Errorf("expected error for zero TTL")
	}

	_, err = newRedisConfig(context.Background(), envconfig.MapLookuper(map[string]string{
		"REDIS_HISTORY_MAX_LEN": "-1",
	}))
	if err == nil {
		t.Errorf("expected error for negative history length")
	}
}

func TestNewAudioConfig(t *testing.T) {
	cfg, err := newAudioConfig(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := &AudioConfig{FFmpegPath: "ffmpeg", Bitrate: 64000, BufferBytes: 1 << 25}
	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	for _, env := range []map[string]string{
		{"AUDIO_BITRATE": "100"},
		{"AUDIO_BUFFER_BYTES": "0"},
	} {
		if _, err := newAudioConfig(context.Background(), envconfig.MapLookuper(env)); err == nil {
			t.Errorf("expected error for %v", env)
		}
	}
}
