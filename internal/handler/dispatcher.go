package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/audio"
	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/presenters"
	"github.com/glizzus/jukebox/internal/queue"
	"github.com/glizzus/jukebox/internal/source"
	"github.com/glizzus/jukebox/internal/util"
)

// MetadataSource validates song URLs and resolves their metadata.
type MetadataSource interface {
	Validate(url string) bool
	Metadata(ctx context.Context, url string) (source.Metadata, error)
}

// VoiceJoiner opens voice connections for a guild.
type VoiceJoiner interface {
	UserVoiceChannel(guildID, userID string) (string, error)
	Join(guildID, channelID string, onDisconnect func()) (queue.Connection, error)
}

// Playback runs and ends playback sessions.
type Playback interface {
	Start(st *queue.State)
	Teardown(st *queue.State)
}

type DispatcherOptions struct {
	Prefix   string
	Store    *queue.Store
	Source   MetadataSource
	Voice    VoiceJoiner
	Playback Playback

	// NewPlayer creates the player owned by a new queue state.
	// Defaults to audio.NewPlayer.
	NewPlayer func() queue.Player
	// IDs generates playback session IDs. Defaults to UUIDv4.
	IDs generator.Generator[string]
}

// Dispatcher turns chat messages into queue operations.
type Dispatcher struct {
	prefix    string
	store     *queue.Store
	source    MetadataSource
	voice     VoiceJoiner
	playback  Playback
	newPlayer func() queue.Player
	ids       generator.Generator[string]
	locks     *util.KeyedMutex
}

func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.NewPlayer == nil {
		opts.NewPlayer = func() queue.Player { return audio.NewPlayer() }
	}
	if opts.IDs == nil {
		opts.IDs = &generator.UUIDV4Generator{}
	}
	return &Dispatcher{
		prefix:    opts.Prefix,
		store:     opts.Store,
		source:    opts.Source,
		voice:     opts.Voice,
		playback:  opts.Playback,
		newPlayer: opts.NewPlayer,
		ids:       opts.IDs,
		locks:     util.NewKeyedMutex(),
	}
}

// MessageCreateHandler adapts the dispatcher to a discordgo event handler.
func (d *Dispatcher) MessageCreateHandler() MessageCreateHandler {
	return func(s *discordgo.Session, m *discordgo.MessageCreate) {
		d.Handle(s, m)
	}
}

// Handle runs one command. Commands for the same guild are handled one at
// a time, in the order they acquire the guild's lock.
func (d *Dispatcher) Handle(s DiscordSession, m *discordgo.MessageCreate) {
	if m == nil || m.Message == nil || m.Author == nil || m.Author.Bot {
		return
	}
	if m.GuildID == "" {
		return
	}

	command, args, ok := ParseCommand(d.prefix, m.Content)
	if !ok {
		return
	}

	var op func(context.Context, *discordgo.MessageCreate, []string) (string, error)
	switch command {
	case CommandPlay:
		op = d.play
	case CommandSkip:
		op = d.skip
	case CommandStop:
		op = d.stop
	case CommandPause:
		op = d.pause
	case CommandResume:
		op = d.resume
	case CommandQueue:
		op = d.queue
	default:
		return
	}

	unlock := d.locks.Lock(m.GuildID)
	reply, err := op(context.Background(), m, args)
	unlock()

	if err != nil {
		var userErr *UserError
		if !errors.As(err, &userErr) {
			slog.Error(
				"failed to handle command",
				"command", command,
				"guildID", m.GuildID,
				"userID", m.Author.ID,
				"error", err,
			)
			return
		}
		reply = userErr.Message
	}
	if reply == "" {
		return
	}

	if _, err := s.ChannelMessageSendReply(m.ChannelID, reply, m.Reference()); err != nil {
		slog.Error("failed to reply", "command", command, "guildID", m.GuildID, "error", err)
	}
}

func (d *Dispatcher) play(ctx context.Context, m *discordgo.MessageCreate, args []string) (string, error) {
	if len(args) == 0 || !d.source.Validate(args[0]) {
		return "", userError(presenters.InvalidURL)
	}

	md, err := d.source.Metadata(ctx, args[0])
	if err != nil {
		slog.Warn("failed to resolve song", "guildID", m.GuildID, "url", args[0], "error", err)
		return "", userError(presenters.MetadataFailed)
	}
	song := queue.Song{Title: md.Title, URL: md.URL}

	if st, ok := d.store.Get(m.GuildID); ok && st.Enqueue(song) {
		return presenters.Added(song), nil
	}

	// A state that refused the song is being torn down; start a new session.
	channelID, err := d.voice.UserVoiceChannel(m.GuildID, m.Author.ID)
	if err != nil {
		slog.Debug("author is not in voice", "guildID", m.GuildID, "userID", m.Author.ID, "error", err)
		return "", userError(presenters.NotInVoice)
	}

	sessionID, err := d.ids.Next()
	if err != nil {
		return "", fmt.Errorf("failed to generate session ID: %w", err)
	}

	st := queue.NewState(m.GuildID, sessionID, m.ChannelID, d.newPlayer())
	st.Enqueue(song)
	d.store.Set(m.GuildID, st)

	conn, err := d.voice.Join(m.GuildID, channelID, func() {
		d.playback.Teardown(st)
	})
	if err != nil {
		slog.Error("failed to connect to voice", "guildID", m.GuildID, "sessionID", sessionID, "channelID", channelID, "error", err)
		d.playback.Teardown(st)
		return "", userError(presenters.ConnectFailed)
	}

	st.SetConnection(conn)
	if st.Context().Err() != nil {
		// Disconnected before the connection was recorded.
		_ = conn.Destroy()
		return "", nil
	}
	conn.Subscribe(st.Player)

	slog.Info("playback session started", "guildID", m.GuildID, "sessionID", sessionID, "channelID", channelID)
	d.playback.Start(st)
	return "", nil
}

func (d *Dispatcher) skip(_ context.Context, m *discordgo.MessageCreate, _ []string) (string, error) {
	st, ok := d.store.Get(m.GuildID)
	if !ok {
		return "", userError(presenters.NothingToSkip)
	}
	st.Skip()
	return "", nil
}

func (d *Dispatcher) stop(_ context.Context, m *discordgo.MessageCreate, _ []string) (string, error) {
	st, ok := d.store.Get(m.GuildID)
	if !ok {
		return "", userError(presenters.NothingToStop)
	}
	st.Clear()
	st.Player.Stop()
	return presenters.Stopped, nil
}

func (d *Dispatcher) pause(_ context.Context, m *discordgo.MessageCreate, _ []string) (string, error) {
	st, ok := d.store.Get(m.GuildID)
	if !ok || !st.Pause() {
		return "", userError(presenters.NothingPlaying)
	}
	return presenters.Paused, nil
}

func (d *Dispatcher) resume(_ context.Context, m *discordgo.MessageCreate, _ []string) (string, error) {
	st, ok := d.store.Get(m.GuildID)
	if !ok || !st.Resume() {
		return "", userError(presenters.NothingPaused)
	}
	return presenters.Resumed, nil
}

func (d *Dispatcher) queue(_ context.Context, m *discordgo.MessageCreate, _ []string) (string, error) {
	st, ok := d.store.Get(m.GuildID)
	if !ok {
		return presenters.EmptyQueue, nil
	}
	return presenters.QueueListing(st.Songs()), nil
}
