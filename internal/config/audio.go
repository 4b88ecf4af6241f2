package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

// AudioConfig controls how songs are fetched and transcoded for voice.
type AudioConfig struct {
	FFmpegPath string `env:"FFMPEG_PATH, default=ffmpeg"`
	Bitrate    int    `env:"AUDIO_BITRATE, default=64000"`

	// BufferBytes is how far ahead of playback the source stream is read.
	BufferBytes int `env:"AUDIO_BUFFER_BYTES, default=33554432"`
}

func NewAudioConfigFromEnv() (*AudioConfig, error) {
	return newAudioConfig(context.Background(), envconfig.OsLookuper())
}

func newAudioConfig(ctx context.Context, lookuper envconfig.Lookuper) (*AudioConfig, error) {
	var cfg AudioConfig
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	if cfg.Bitrate < 6000 || cfg.Bitrate > 510000 {
		return nil, fmt.Errorf("AUDIO_BITRATE must be between 6000 and 510000, got %d", cfg.Bitrate)
	}
	if cfg.BufferBytes <= 0 {
		return nil, fmt.Errorf("AUDIO_BUFFER_BYTES must be positive, got %d", cfg.BufferBytes)
	}
	return &cfg, nil
}
