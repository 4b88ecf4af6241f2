package voice

import (
	"errors"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/google/go-cmp/cmp"

	"github.com/glizzus/jukebox/internal/audio"
)

const botID = "bot-user"

func TestVoiceChannelOf(t *testing.T) {
	guild := &discordgo.Guild{
		ID: "guild",
		VoiceStates: []*discordgo.VoiceState{
			nil,
			{UserID: "alice", ChannelID: "lounge"},
			{UserID: "bob", ChannelID: ""},
		},
	}

	tc := []struct {
		name     string
		userID   string
		expected string
		err      error
	}{
		{name: "member in voice", userID: "alice", expected: "lounge"},
		{name: "member with empty channel", userID: "bob", err: ErrNotInVoice},
		{name: "member not in voice", userID: "carol", err: ErrNotInVoice},
	}

	for _, test := range tc {
		t.Run(test.name, func(t *testing.T) {
			got, err := voiceChannelOf(guild, test.userID)
			if !errors.Is(err, test.err) {
				t.Fatalf("expected error %v, got %v", test.err, err)
			}
			if got != test.expected {
				t.Errorf("expected channel %q, got %q", test.expected, got)
			}
		})
	}
}

// Voice state updates from the gateway rewrite guild.VoiceStates while
// commands look members up; run with -race.
func TestUserVoiceChannelDuringVoiceStateUpdates(t *testing.T) {
	state := discordgo.NewState()
	err := state.GuildAdd(&discordgo.Guild{
		ID: "guild",
		VoiceStates: []*discordgo.VoiceState{
			{GuildID: "guild", UserID: "alice", ChannelID: "lounge"},
		},
	})
	if err != nil {
		t.Fatalf("failed to add guild: %v", err)
	}
	gateway := &discordgo.Session{StateEnabled: true}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range 500 {
			channelID := "music"
			if i%2 == 1 {
				channelID = ""
			}
			_ = state.OnInterface(gateway, &discordgo.VoiceStateUpdate{
				VoiceState: &discordgo.VoiceState{GuildID: "guild", UserID: "bob", ChannelID: channelID},
			})
		}
	}()

	for range 500 {
		got, err := userVoiceChannel(state, "guild", "alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "lounge" {
			t.Fatalf("expected lounge, got %q", got)
		}
	}
	wg.Wait()

	if _, err := userVoiceChannel(state, "missing", "alice"); err == nil {
		t.Errorf("expected an error for an unknown guild")
	}
}

type recordingVC struct {
	send       chan []byte
	speaking   []bool
	disconnect int
}

func (r *recordingVC) Speaking(b bool) error {
	r.speaking = append(r.speaking, b)
	return nil
}

func (r *recordingVC) Disconnect() error {
	r.disconnect++
	return nil
}

func newTestConnection(m *Manager, guildID string) (*Connection, *recordingVC) {
	vc := &recordingVC{send: make(chan []byte, 4)}
	return newConnection(m, guildID, vc.send, vc.Speaking, vc.Disconnect), vc
}

func selfLeft(guildID string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: botID, GuildID: guildID, ChannelID: ""},
	}
}

func TestForcedDisconnectNotifiesObserver(t *testing.T) {
	m := NewManager(nil)
	conn, _ := newTestConnection(m, "guild")

	calls := 0
	m.register("guild", conn, func() { calls++ })

	// Other users leaving and the bot moving channels are not disconnects.
	m.handleVoiceState(botID, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: "alice", GuildID: "guild"},
	})
	m.handleVoiceState(botID, &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{UserID: botID, GuildID: "guild", ChannelID: "other"},
	})
	m.handleVoiceState(botID, selfLeft("another-guild"))
	if calls != 0 {
		t.Fatalf("expected no notifications yet, got %d", calls)
	}

	m.handleVoiceState(botID, selfLeft("guild"))
	m.handleVoiceState(botID, selfLeft("guild"))
	if calls != 1 {
		t.Errorf("expected exactly one notification, got %d", calls)
	}
}

func TestDestroyIsNotAForcedDisconnect(t *testing.T) {
	m := NewManager(nil)
	conn, vc := newTestConnection(m, "guild")

	calls := 0
	m.register("guild", conn, func() { calls++ })

	if err := conn.Destroy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.Destroy(); err != nil {
		t.Fatalf("unexpected error on second destroy: %v", err)
	}
	m.handleVoiceState(botID, selfLeft("guild"))

	if calls != 0 {
		t.Errorf("expected destroy to unregister the observer, got %d calls", calls)
	}
	if vc.disconnect != 1 {
		t.Errorf("expected one disconnect, got %d", vc.disconnect)
	}
	if diff := cmp.Diff([]bool{false}, vc.speaking); diff != "" {
		t.Errorf("speaking mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleDestroyKeepsNewObserver(t *testing.T) {
	m := NewManager(nil)
	old, _ := newTestConnection(m, "guild")
	fresh, _ := newTestConnection(m, "guild")

	calls := 0
	m.register("guild", old, func() {})
	m.register("guild", fresh, func() { calls++ })

	_ = old.Destroy()
	m.handleVoiceState(botID, selfLeft("guild"))
	if calls != 1 {
		t.Errorf("expected the newer observer to survive, got %d calls", calls)
	}
}

type attachRecorder struct{ sink audio.Sink }

func (a *attachRecorder) Attach(s audio.Sink) { a.sink = s }

func TestSubscribeRoutesFrames(t *testing.T) {
	conn, vc := newTestConnection(nil, "guild")

	sub := &attachRecorder{}
	conn.Subscribe(sub)
	if sub.sink != conn {
		t.Fatalf("expected subscriber to be attached to the connection")
	}

	if err := sub.sink.SendFrame([]byte{1, 2}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := <-vc.send; !cmp.Equal(got, []byte{1, 2}) {
		t.Errorf("expected frame to reach OpusSend, got %v", got)
	}
}
