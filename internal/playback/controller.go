// Package playback drives a guild's queue through the audio player.
//
// Each queue state moves through three phases. Idle: no resource is in the
// player. Streaming: a resource was handed to the player and its terminal
// event is pending. Teardown: final, the connection and player are released
// and the state leaves the store. The player's terminal events are the only
// trigger that moves a state from Streaming back to Idle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/audio"
	"github.com/glizzus/jukebox/internal/history"
	"github.com/glizzus/jukebox/internal/presenters"
	"github.com/glizzus/jukebox/internal/queue"
)

// AudioSource opens the audio of a song.
type AudioSource interface {
	OpenAudioStream(ctx context.Context, url string) (io.ReadCloser, error)
}

// EncodeFunc turns source audio into length-prefixed Opus frames.
type EncodeFunc func(ctx context.Context, r io.Reader) (io.ReadCloser, error)

// Announcer posts status messages to a text channel.
type Announcer interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Controller struct {
	store     *queue.Store
	source    AudioSource
	encode    EncodeFunc
	announcer Announcer
	recorder  history.Recorder
}

type Option func(*Controller)

// WithRecorder records every song that starts playing.
func WithRecorder(r history.Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

func NewController(store *queue.Store, source AudioSource, encode EncodeFunc, announcer Announcer, opts ...Option) *Controller {
	c := &Controller{
		store:     store,
		source:    source,
		encode:    encode,
		announcer: announcer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func logAttrs(st *queue.State) []any {
	return []any{
		"guildID", st.GuildID,
		"sessionID", st.SessionID,
	}
}

// Start begins playing the head of st and keeps advancing the queue on
// terminal events until the state is torn down.
func (c *Controller) Start(st *queue.State) {
	go c.run(st)
}

func (c *Controller) run(st *queue.State) {
	c.playNext(st)

	events := st.Player.Events()
	done := st.Context().Done()
	for {
		select {
		case ev := <-events:
			c.handleTerminal(st, ev)
		case <-done:
			return
		}
	}
}

func (c *Controller) handleTerminal(st *queue.State, ev audio.Event) {
	if !st.EndStreaming() {
		slog.Warn(
			"ignoring terminal event outside of streaming",
			append(logAttrs(st), "event", ev.Kind.String(), "phase", st.Phase().String())...,
		)
		return
	}

	if ev.Kind == audio.EventError {
		attrs := append(logAttrs(st), "error", ev.Err)
		if ev.Resource != nil {
			attrs = append(attrs, "title", ev.Resource.Title)
		}
		slog.Error("playback failed, skipping track", attrs...)
	}

	c.playNext(st)
}

// playNext hands the head of the queue to the player, dropping songs whose
// audio cannot be opened. An empty queue tears the state down.
func (c *Controller) playNext(st *queue.State) {
	for {
		song, ok := st.Head()
		if !ok {
			c.Teardown(st)
			return
		}

		res, err := c.open(st.Context(), song)
		if err != nil {
			if st.Context().Err() != nil {
				return
			}
			slog.Error(
				"failed to open audio, skipping track",
				append(logAttrs(st), "title", song.Title, "url", song.URL, "error", err)...,
			)
			st.DropHead(song)
			continue
		}

		if !st.BeginStreaming(song, res) {
			_ = res.Close()
			if st.Phase() == queue.PhaseTeardown {
				return
			}
			// Skipped or stopped while the stream was being opened.
			continue
		}

		slog.Info("now playing", append(logAttrs(st), "title", song.Title, "url", song.URL)...)
		c.announce(st, song)
		c.record(st, song)
		return
	}
}

type pipelineCloser struct {
	io.Reader
	closers []io.Closer
}

func (p *pipelineCloser) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (c *Controller) open(ctx context.Context, song queue.Song) (*audio.Resource, error) {
	stream, err := c.source.OpenAudioStream(ctx, song.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio stream: %w", err)
	}

	frames, err := c.encode(ctx, stream)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("unable to encode audio: %w", err)
	}

	return audio.NewResource(song.Title, &pipelineCloser{
		Reader:  frames,
		closers: []io.Closer{frames, stream},
	}), nil
}

func (c *Controller) announce(st *queue.State, song queue.Song) {
	if st.TextChannelID == "" || c.announcer == nil {
		slog.Warn("no text channel bound, skipping announcement", logAttrs(st)...)
		return
	}
	if _, err := c.announcer.ChannelMessageSend(st.TextChannelID, presenters.NowPlaying(song)); err != nil {
		slog.Error("failed to announce song", append(logAttrs(st), "error", err)...)
	}
}

func (c *Controller) record(st *queue.State, song queue.Song) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.Record(st.Context(), history.Entry{
		GuildID:   st.GuildID,
		SessionID: st.SessionID,
		Title:     song.Title,
		URL:       song.URL,
		StartedAt: time.Now(),
	})
	if err != nil {
		slog.Warn("failed to record play", append(logAttrs(st), "error", err)...)
	}
}

// Teardown ends a session: the player is closed without emitting further
// events, in-flight stream acquisition is cancelled, the voice connection is
// destroyed and the state leaves the store. Only the first call has effect.
func (c *Controller) Teardown(st *queue.State) {
	if !st.BeginTeardown() {
		return
	}

	st.Player.Close()
	if conn := st.Connection(); conn != nil {
		if err := conn.Destroy(); err != nil {
			slog.Warn("failed to destroy voice connection", append(logAttrs(st), "error", err)...)
		}
	}
	c.store.CompareAndDelete(st.GuildID, st)

	slog.Info("playback session ended", logAttrs(st)...)
}
