package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/glizzus/jukebox/internal/audio"
)

// Phase is the playback phase of a State.
type Phase int

const (
	// PhaseIdle means no resource is handed to the player, either because
	// playback has not started or because the next song is being fetched.
	PhaseIdle Phase = iota
	// PhaseStreaming means the player owns a resource and a terminal event
	// for it is pending.
	PhaseStreaming
	// PhaseTeardown is final. The state no longer accepts songs.
	PhaseTeardown
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseStreaming:
		return "streaming"
	case PhaseTeardown:
		return "teardown"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Player is the audio player a State owns.
type Player interface {
	audio.Subscriber
	Play(res *audio.Resource)
	PlayPaused(res *audio.Resource)
	Stop()
	Pause() bool
	Unpause() bool
	Events() <-chan audio.Event
	Close()
}

var _ Player = (*audio.Player)(nil)

// Connection is the voice connection a State owns.
type Connection interface {
	Subscribe(s audio.Subscriber)
	Destroy() error
}

// State is the playback queue of one guild.
type State struct {
	GuildID       string
	SessionID     string
	TextChannelID string
	Player        Player

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	songs      []Song
	connection Connection
	playing    bool
	phase      Phase
}

// NewState creates an idle state owning player.
func NewState(guildID, sessionID, textChannelID string, player Player) *State {
	ctx, cancel := context.WithCancel(context.Background())
	return &State{
		GuildID:       guildID,
		SessionID:     sessionID,
		TextChannelID: textChannelID,
		Player:        player,
		ctx:           ctx,
		cancel:        cancel,
		playing:       true,
	}
}

// Context is cancelled when the state is torn down.
func (s *State) Context() context.Context {
	return s.ctx
}

// Enqueue appends song. It reports false once the state is torn down.
func (s *State) Enqueue(song Song) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseTeardown {
		return false
	}
	s.songs = append(s.songs, song)
	return true
}

// Head returns the now-playing song without removing it.
func (s *State) Head() (Song, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.songs) == 0 {
		return Song{}, false
	}
	return s.songs[0], true
}

// DropHead removes song if it is still the head. It reports whether it did.
func (s *State) DropHead(song Song) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.songs) == 0 || s.songs[0] != song {
		return false
	}
	s.songs = s.songs[1:]
	return true
}

// Clear drops every queued song, including the one playing.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.songs = nil
}

func (s *State) Songs() []Song {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.songs)
}

func (s *State) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.songs)
}

func (s *State) SetConnection(conn Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connection = conn
}

func (s *State) Connection() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connection
}

// IsPlaying is false once a pause was requested and until it is resumed.
func (s *State) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Pause requests a pause. A streaming resource is held right away; a song
// still being fetched starts paused. It reports false if already paused.
func (s *State) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing || s.phase == PhaseTeardown {
		return false
	}
	s.playing = false
	if s.phase == PhaseStreaming {
		s.Player.Pause()
	}
	return true
}

// Resume lifts a requested pause. It reports false if not paused.
func (s *State) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing || s.phase == PhaseTeardown {
		return false
	}
	s.playing = true
	if s.phase == PhaseStreaming {
		s.Player.Unpause()
	}
	return true
}

// Skip ends the current song. While streaming the player is stopped and
// its terminal event advances the queue. While the head is still being
// fetched it is dropped directly and the fetched stream is discarded.
func (s *State) Skip() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseStreaming:
		s.Player.Stop()
	case PhaseIdle:
		if len(s.songs) > 0 {
			s.songs = s.songs[1:]
		}
	}
}

// BeginStreaming hands res to the player and moves the state to
// PhaseStreaming, provided the state is idle and song is still the head.
// res starts paused if a pause was requested. When it reports false the
// caller still owns res.
func (s *State) BeginStreaming(song Song, res *audio.Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseIdle || len(s.songs) == 0 || s.songs[0] != song {
		return false
	}
	if s.playing {
		s.Player.Play(res)
	} else {
		s.Player.PlayPaused(res)
	}
	s.phase = PhaseStreaming
	return true
}

func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// EndStreaming handles the terminal event of the streaming resource: the
// head is dropped and the state returns to PhaseIdle. It reports false,
// changing nothing, when the state is not streaming.
func (s *State) EndStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseStreaming {
		return false
	}
	if len(s.songs) > 0 {
		s.songs = s.songs[1:]
	}
	s.phase = PhaseIdle
	return true
}

// BeginTeardown moves the state to PhaseTeardown and cancels its context.
// It reports false if teardown already started, so exactly one caller
// releases the connection and player.
func (s *State) BeginTeardown() bool {
	s.mu.Lock()
	if s.phase == PhaseTeardown {
		s.mu.Unlock()
		return false
	}
	s.phase = PhaseTeardown
	s.mu.Unlock()

	s.cancel()
	return true
}
