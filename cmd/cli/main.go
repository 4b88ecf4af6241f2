package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/kkdai/youtube/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/glizzus/jukebox/internal/config"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/history"
	"github.com/glizzus/jukebox/internal/opus"
	"github.com/glizzus/jukebox/internal/playback"
	"github.com/glizzus/jukebox/internal/queue"
	"github.com/glizzus/jukebox/internal/source"
)

func newSource() (*source.YouTube, *config.AudioConfig, error) {
	audioConfig, err := config.NewAudioConfigFromEnv()
	if err != nil {
		return nil, nil, err
	}
	yt := source.NewYouTube(&youtube.Client{}, source.YouTubeOptions{
		BufferBytes: audioConfig.BufferBytes,
	})
	return yt, audioConfig, nil
}

func encodeFunc(cfg *config.AudioConfig) playback.EncodeFunc {
	opts := opus.EncodeOptions{FFmpegPath: cfg.FFmpegPath, Bitrate: cfg.Bitrate}
	return func(ctx context.Context, r io.Reader) (io.ReadCloser, error) {
		return opus.Encode(ctx, r, opts)
	}
}

var urlFlag = &cli.StringFlag{
	Name:     "url",
	Usage:    "YouTube video URL",
	Required: true,
}

func resolve(c *cli.Context) error {
	yt, _, err := newSource()
	if err != nil {
		return cli.Exit("Failed to load config: "+err.Error(), 1)
	}

	url := c.String("url")
	if !yt.Validate(url) {
		return cli.Exit("Not a YouTube URL: "+url, 1)
	}

	md, err := yt.Metadata(c.Context, url)
	if err != nil {
		return cli.Exit("Failed to resolve video: "+err.Error(), 1)
	}
	log.Printf("%+v", md)
	return nil
}

func encode(c *cli.Context) error {
	yt, audioConfig, err := newSource()
	if err != nil {
		return cli.Exit("Failed to load config: "+err.Error(), 1)
	}

	stream, err := yt.OpenAudioStream(c.Context, c.String("url"))
	if err != nil {
		return cli.Exit("Failed to open audio stream: "+err.Error(), 1)
	}
	defer stream.Close()

	frames, err := encodeFunc(audioConfig)(c.Context, stream)
	if err != nil {
		return cli.Exit("Failed to start encoder: "+err.Error(), 1)
	}
	defer frames.Close()

	out, err := os.Create(c.String("out"))
	if err != nil {
		return cli.Exit("Failed to create output file: "+err.Error(), 1)
	}
	defer out.Close()

	n, err := io.Copy(out, frames)
	if err != nil {
		return cli.Exit("Failed to encode: "+err.Error(), 1)
	}
	log.Printf("Wrote %d bytes of Opus frames to %s", n, c.String("out"))
	return nil
}

func console(c *cli.Context) error {
	yt, audioConfig, err := newSource()
	if err != nil {
		return cli.Exit("Failed to load config: "+err.Error(), 1)
	}

	session := &consoleSession{out: os.Stdout}
	store := queue.NewStore()
	controller := playback.NewController(store, yt, encodeFunc(audioConfig), session, playback.WithRecorder(&history.LogRecorder{}))
	dispatcher := handler.NewDispatcher(handler.DispatcherOptions{
		Prefix:   c.String("prefix"),
		Store:    store,
		Source:   yt,
		Voice:    consoleVoice{},
		Playback: controller,
	})

	fmt.Println("Type commands such as !play <url>. Ctrl-D to exit.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		dispatcher.Handle(session, &discordgo.MessageCreate{
			Message: &discordgo.Message{
				ID:        "console",
				ChannelID: consoleChannelID,
				GuildID:   consoleGuildID,
				Author:    &discordgo.User{ID: consoleUserID, Username: "console"},
				Content:   line,
			},
		})
	}
	if st, ok := store.Get(consoleGuildID); ok {
		controller.Teardown(st)
	}
	return scanner.Err()
}

func recent(c *cli.Context) error {
	redisConfig, err := config.NewRedisConfigFromEnv()
	if err != nil {
		return cli.Exit("Failed to load config: "+err.Error(), 1)
	}
	if !redisConfig.Enabled() {
		return cli.Exit("REDIS_ADDR must be set to read play history", 1)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     redisConfig.Addr,
		Password: redisConfig.Password,
	})
	defer client.Close()

	recorder := history.NewRedisStreamRecorder(client, redisConfig.HistoryStream, redisConfig.HistoryMaxLen)
	entries, err := recorder.Recent(c.Context, c.Int64("count"))
	if err != nil {
		return cli.Exit("Failed to read history: "+err.Error(), 1)
	}

	if len(entries) == 0 {
		log.Println("No songs have been played yet.")
		return nil
	}
	for _, entry := range entries {
		if guildID := c.String("guild-id"); guildID != "" && entry.GuildID != guildID {
			continue
		}
		log.Printf("%+v", entry)
	}
	return nil
}

func main() {
	if err := config.LoadEnv(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to load .env file: %v", err)
	}
	slog.SetLogLoggerLevel(slog.LevelDebug)

	app := &cli.App{
		Name:        "jukebox-cli",
		Description: "A development CLI tool for testing Jukebox without Discord",
		Commands: []*cli.Command{
			{
				Name:   "resolve",
				Usage:  "Print the metadata of a YouTube video",
				Action: resolve,
				Flags:  []cli.Flag{urlFlag},
			},
			{
				Name:   "encode",
				Usage:  "Encode the audio of a YouTube video to a file of length-prefixed Opus frames",
				Action: encode,
				Flags: []cli.Flag{
					urlFlag,
					&cli.StringFlag{
						Name:     "out",
						Usage:    "Output file",
						Required: true,
					},
				},
			},
			{
				Name:   "history",
				Usage:  "List recently played songs",
				Action: recent,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "count",
						Usage: "Maximum number of entries to read",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "guild-id",
						Usage: "Only show songs played in this guild",
					},
				},
			},
			{
				Name:   "console",
				Usage:  "Run chat commands from stdin against a simulated voice channel",
				Action: console,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Command prefix",
						Value: "!",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Error running CLI: %v", err)
	}
}
