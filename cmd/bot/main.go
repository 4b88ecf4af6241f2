package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kkdai/youtube/v2"
	"github.com/redis/go-redis/v9"

	"github.com/glizzus/jukebox/internal/config"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/history"
	"github.com/glizzus/jukebox/internal/opus"
	"github.com/glizzus/jukebox/internal/playback"
	"github.com/glizzus/jukebox/internal/queue"
	"github.com/glizzus/jukebox/internal/source"
	"github.com/glizzus/jukebox/internal/voice"
)

// newRedisBacked builds the metadata cache and play history, backed by Redis
// when it is configured and by memory and the log otherwise.
func newRedisBacked(ctx context.Context, cfg *config.RedisConfig) (source.MetadataCache, history.Recorder, func(), error) {
	if !cfg.Enabled() {
		slog.Info("REDIS_ADDR not set, caching metadata in memory")
		return source.NewMemoryMetadataCache(cfg.MetadataTTL), &history.LogRecorder{}, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to ping redis at %s: %w", cfg.Addr, err)
	}

	closeClient := func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", "error", err)
		}
	}
	cache := source.NewRedisMetadataCache(client, cfg.MetadataTTL)
	recorder := history.NewRedisStreamRecorder(client, cfg.HistoryStream, cfg.HistoryMaxLen)
	return cache, recorder, closeClient, nil
}

// notifyShutdown returns a context cancelled on Ctrl-C or on the SIGTERM
// container runtimes send.
func notifyShutdown(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runBotForever() error {
	if err := config.LoadEnv(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No .env file found, continuing without it")
		} else {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	discordConfig, err := config.NewDiscordConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load discord config: %w", err)
	}

	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load audio config: %w", err)
	}

	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load redis config: %w", err)
	}

	cache, recorder, closeRedis, err := newRedisBacked(context.Background(), redisConfig)
	if err != nil {
		return err
	}
	defer closeRedis()

	yt := source.NewYouTube(&youtube.Client{}, source.YouTubeOptions{
		Cache:       cache,
		BufferBytes: audioConfig.BufferBytes,
	})

	encodeOptions := opus.EncodeOptions{
		FFmpegPath: audioConfig.FFmpegPath,
		Bitrate:    audioConfig.Bitrate,
	}
	encode := func(ctx context.Context, r io.Reader) (io.ReadCloser, error) {
		return opus.Encode(ctx, r, encodeOptions)
	}

	store := queue.NewStore()

	session, err := handler.NewSession(discordConfig.Token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	voiceManager := voice.NewManager(session)
	controller := playback.NewController(store, yt, encode, session, playback.WithRecorder(recorder))
	dispatcher := handler.NewDispatcher(handler.DispatcherOptions{
		Prefix:   discordConfig.CommandPrefix,
		Store:    store,
		Source:   yt,
		Voice:    voiceManager,
		Playback: controller,
	})

	handler.AddHandlers(session, handler.Handlers{
		Ready:            handler.ReadyLog,
		MessageCreate:    dispatcher.MessageCreateHandler(),
		VoiceStateUpdate: voiceManager.HandleVoiceStateUpdate,
	})

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			slog.Warn("failed to close session", "error", err)
		}
	}()

	ctx, stop := notifyShutdown(context.Background())
	defer stop()

	<-ctx.Done()
	slog.Info("Shutting down", "activeSessions", store.Len())
	return nil
}

func main() {
	if err := runBotForever(); err != nil {
		log.Fatalf("failed to run bot: %v", err)
	}
}
