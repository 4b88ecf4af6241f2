package e2e_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/audio"
	"github.com/glizzus/jukebox/internal/generator"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/opus"
	"github.com/glizzus/jukebox/internal/playback"
	"github.com/glizzus/jukebox/internal/queue"
	"github.com/glizzus/jukebox/internal/source"
)

const (
	guildID       = "74241007174813750"
	textChannelID = "text-channel"
	voiceChannel  = "voice-channel"
	authorID      = "listener"
	waitTimeout   = 2 * time.Second
)

type mockSession struct {
	mu            sync.Mutex
	Replies       []string
	Announcements []string
}

func (m *mockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Announcements = append(m.Announcements, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (m *mockSession) replies() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Replies...)
}

func (m *mockSession) announcements() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Announcements...)
}

var _ handler.DiscordSession = (*mockSession)(nil)

// liveStream yields one frame carrying its URL, then blocks like a long
// track until it is closed or finished.
type liveStream struct {
	r      *bytes.Reader
	track  *track
	closed chan struct{}
	once   sync.Once
}

func (s *liveStream) Read(p []byte) (int, error) {
	if s.r.Len() > 0 {
		return s.r.Read(p)
	}
	select {
	case <-s.track.finished:
		if s.track.fail != nil {
			return 0, s.track.fail
		}
		return 0, io.EOF
	case <-s.closed:
		return 0, io.ErrClosedPipe
	}
}

func (s *liveStream) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type track struct {
	title    string
	finished chan struct{}
	fail     error
}

// fakeSource resolves metadata and serves live streams for known URLs.
type fakeSource struct {
	mu     sync.Mutex
	tracks map[string]*track
	opened []string
	gates  map[string]chan struct{}
}

func newFakeSource(titles map[string]string) *fakeSource {
	s := &fakeSource{
		tracks: make(map[string]*track),
		gates:  make(map[string]chan struct{}),
	}
	for url, title := range titles {
		s.tracks[url] = &track{title: title, finished: make(chan struct{})}
	}
	return s
}

func (s *fakeSource) Validate(url string) bool {
	return strings.HasPrefix(url, "https://valid/")
}

func (s *fakeSource) Metadata(ctx context.Context, url string) (source.Metadata, error) {
	t, ok := s.tracks[url]
	if !ok {
		return source.Metadata{}, errors.New("video unavailable")
	}
	return source.Metadata{Title: t.title, URL: url}, nil
}

func (s *fakeSource) OpenAudioStream(ctx context.Context, url string) (io.ReadCloser, error) {
	s.mu.Lock()
	s.opened = append(s.opened, url)
	gate := s.gates[url]
	t := s.tracks[url]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var buf bytes.Buffer
	if err := opus.WriteFrame(&buf, []byte(url)); err != nil {
		return nil, err
	}
	return &liveStream{
		r:      bytes.NewReader(buf.Bytes()),
		track:  t,
		closed: make(chan struct{}),
	}, nil
}

// hold makes opening url block until release is called.
func (s *fakeSource) hold(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[url] = make(chan struct{})
}

func (s *fakeSource) release(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	close(s.gates[url])
}

func (s *fakeSource) openedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.opened...)
}

// finish ends a track's stream, with err as a decode failure when non-nil.
func (s *fakeSource) finish(url string, err error) {
	t := s.tracks[url]
	t.fail = err
	close(t.finished)
}

// voiceConn receives the frames the player sends.
type voiceConn struct {
	frames    chan string
	mu        sync.Mutex
	destroyed int
}

func (c *voiceConn) Subscribe(s audio.Subscriber) { s.Attach(c) }

func (c *voiceConn) SendFrame(frame []byte) error {
	c.frames <- string(frame)
	return nil
}

func (c *voiceConn) Speaking(bool) error { return nil }

func (c *voiceConn) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyed++
	return nil
}

func (c *voiceConn) destroyCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroyed
}

type fakeVoice struct {
	mu    sync.Mutex
	conns []*voiceConn
}

func (v *fakeVoice) UserVoiceChannel(guildID, userID string) (string, error) {
	if userID != authorID {
		return "", errors.New("not in voice")
	}
	return voiceChannel, nil
}

func (v *fakeVoice) Join(guildID, channelID string, onDisconnect func()) (queue.Connection, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	conn := &voiceConn{frames: make(chan string, 64)}
	v.conns = append(v.conns, conn)
	return conn, nil
}

func (v *fakeVoice) connections() []*voiceConn {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]*voiceConn(nil), v.conns...)
}

type bot struct {
	store      *queue.Store
	source     *fakeSource
	voice      *fakeVoice
	session    *mockSession
	dispatcher *handler.Dispatcher
}

func newBot(titles map[string]string) *bot {
	b := &bot{
		store:   queue.NewStore(),
		source:  newFakeSource(titles),
		voice:   &fakeVoice{},
		session: &mockSession{},
	}
	passthrough := func(ctx context.Context, r io.Reader) (io.ReadCloser, error) {
		return io.NopCloser(r), nil
	}
	controller := playback.NewController(b.store, b.source, passthrough, b.session)
	b.dispatcher = handler.NewDispatcher(handler.DispatcherOptions{
		Prefix:   "!",
		Store:    b.store,
		Source:   b.source,
		Voice:    b.voice,
		Playback: controller,
		IDs:      &generator.SequenceGenerator{Prefix: "session"},
	})
	return b
}

func (b *bot) send(content string) {
	b.dispatcher.Handle(b.session, &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "message",
			ChannelID: textChannelID,
			GuildID:   guildID,
			Author:    &discordgo.User{ID: authorID},
			Content:   content,
		},
	})
}

func (b *bot) state(t *testing.T) *queue.State {
	t.Helper()
	st, ok := b.store.Get(guildID)
	if !ok {
		t.Fatalf("expected a queue state for guild %s", guildID)
	}
	return st
}

func expectFrame(t *testing.T, conn *voiceConn, want string) {
	t.Helper()
	select {
	case got := <-conn.frames:
		if got != want {
			t.Fatalf("expected frame from %s, got %s", want, got)
		}
	case <-time.After(waitTimeout):
		t.Fatalf("timed out waiting for a frame from %s", want)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
