package voice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/audio"
	"github.com/glizzus/jukebox/internal/queue"
	"github.com/glizzus/jukebox/internal/util"
)

var (
	ErrVoiceConnClosed = errors.New("voice connection send timeout")
	ErrNotInVoice      = errors.New("user is not in a voice channel")
)

const sendTimeout = time.Minute

// Manager opens and tracks voice connections, one per guild.
type Manager struct {
	session *discordgo.Session

	mu        sync.Mutex
	observers map[string]observer
}

type observer struct {
	conn         *Connection
	onDisconnect func()
}

func NewManager(s *discordgo.Session) *Manager {
	return &Manager{
		session:   s,
		observers: make(map[string]observer),
	}
}

// Join connects to a voice channel. onDisconnect runs if the bot is
// removed from the channel by anything other than Connection.Destroy.
func (m *Manager) Join(guildID, channelID string, onDisconnect func()) (queue.Connection, error) {
	vc, err := m.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("unable to join the voice channel: %w", err)
	}

	conn := newConnection(m, guildID, vc.OpusSend, vc.Speaking, vc.Disconnect)
	m.register(guildID, conn, onDisconnect)

	slog.Info("joined voice channel", "guildID", guildID, "channelID", channelID)
	return conn, nil
}

// UserVoiceChannel returns the voice channel a member is connected to,
// read from the gateway state cache.
func (m *Manager) UserVoiceChannel(guildID, userID string) (string, error) {
	return userVoiceChannel(m.session.State, guildID, userID)
}

// userVoiceChannel scans the guild's voice states under the state's read
// lock, since the gateway rewrites them on every voice state update.
func userVoiceChannel(state *discordgo.State, guildID, userID string) (string, error) {
	guild, err := state.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("unable to look up guild %s: %w", guildID, err)
	}

	state.RLock()
	defer state.RUnlock()
	return voiceChannelOf(guild, userID)
}

func voiceChannelOf(guild *discordgo.Guild, userID string) (string, error) {
	vs, found := util.FindFirst(guild.VoiceStates, func(vs *discordgo.VoiceState) bool {
		return vs != nil && vs.UserID == userID
	})
	if !found || vs.ChannelID == "" {
		return "", ErrNotInVoice
	}
	return vs.ChannelID, nil
}

// HandleVoiceStateUpdate is registered on the session to notice the bot
// being disconnected from voice.
func (m *Manager) HandleVoiceStateUpdate(s *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if s.State == nil || s.State.User == nil {
		return
	}
	m.handleVoiceState(s.State.User.ID, v)
}

func (m *Manager) handleVoiceState(selfID string, v *discordgo.VoiceStateUpdate) {
	if v == nil || v.VoiceState == nil || v.UserID != selfID || v.ChannelID != "" {
		return
	}

	m.mu.Lock()
	obs, ok := m.observers[v.GuildID]
	delete(m.observers, v.GuildID)
	m.mu.Unlock()

	if !ok {
		return
	}
	slog.Warn("disconnected from voice channel", "guildID", v.GuildID)
	if obs.onDisconnect != nil {
		obs.onDisconnect()
	}
}

func (m *Manager) register(guildID string, conn *Connection, onDisconnect func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers[guildID] = observer{conn: conn, onDisconnect: onDisconnect}
}

func (m *Manager) unregister(guildID string, conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if obs, ok := m.observers[guildID]; ok && obs.conn == conn {
		delete(m.observers, guildID)
	}
}

// Connection is a live voice connection that audio players route into.
type Connection struct {
	manager    *Manager
	guildID    string
	opusSend   chan<- []byte
	speaking   func(bool) error
	disconnect func() error

	destroyOnce sync.Once
	destroyErr  error
}

func newConnection(m *Manager, guildID string, opusSend chan<- []byte, speaking func(bool) error, disconnect func() error) *Connection {
	return &Connection{
		manager:    m,
		guildID:    guildID,
		opusSend:   opusSend,
		speaking:   speaking,
		disconnect: disconnect,
	}
}

var (
	_ queue.Connection = (*Connection)(nil)
	_ audio.Sink       = (*Connection)(nil)
)

// Subscribe routes the subscriber's audio into this connection.
func (c *Connection) Subscribe(s audio.Subscriber) {
	s.Attach(c)
}

func (c *Connection) SendFrame(frame []byte) error {
	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case c.opusSend <- frame:
		return nil
	case <-timer.C:
		return ErrVoiceConnClosed
	}
}

func (c *Connection) Speaking(speaking bool) error {
	return c.speaking(speaking)
}

// Destroy leaves the voice channel. The disconnect observer is removed
// first so that leaving on purpose is not reported as a forced disconnect.
func (c *Connection) Destroy() error {
	c.destroyOnce.Do(func() {
		if c.manager != nil {
			c.manager.unregister(c.guildID, c)
		}
		if err := c.speaking(false); err != nil {
			slog.Debug("failed to stop speaking", "guildID", c.guildID, "error", err)
		}
		if err := c.disconnect(); err != nil {
			c.destroyErr = fmt.Errorf("failed to disconnect: %w", err)
		}
	})
	return c.destroyErr
}
