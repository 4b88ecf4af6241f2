package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/glizzus/jukebox/internal/audio"
	"github.com/glizzus/jukebox/internal/handler"
	"github.com/glizzus/jukebox/internal/queue"
)

const (
	consoleGuildID   = "console-guild"
	consoleChannelID = "console-text"
	consoleUserID    = "console-user"

	// Opus frames carry 20ms of audio.
	frameDuration = 20 * time.Millisecond
)

type consoleSession struct {
	out io.Writer
}

func (s *consoleSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	fmt.Fprintf(s.out, "[%s] %s\n", channelID, content)
	return &discordgo.Message{ChannelID: channelID, Content: content}, nil
}

func (s *consoleSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return s.ChannelMessageSend(channelID, content, options...)
}

var _ handler.DiscordSession = (*consoleSession)(nil)

// consoleVoice pretends the console user is always in a voice channel.
type consoleVoice struct{}

func (consoleVoice) UserVoiceChannel(guildID, userID string) (string, error) {
	return "console-voice", nil
}

func (consoleVoice) Join(guildID, channelID string, onDisconnect func()) (queue.Connection, error) {
	slog.Info("Joined simulated voice channel", "guildID", guildID, "channelID", channelID)
	return &consoleConnection{}, nil
}

// consoleConnection discards frames at the rate a voice connection consumes them.
type consoleConnection struct {
	frames int
}

func (c *consoleConnection) Subscribe(s audio.Subscriber) {
	s.Attach(c)
}

func (c *consoleConnection) SendFrame(frame []byte) error {
	c.frames++
	time.Sleep(frameDuration)
	return nil
}

func (c *consoleConnection) Speaking(speaking bool) error {
	slog.Debug("Speaking", "speaking", speaking, "framesSent", c.frames)
	return nil
}

func (c *consoleConnection) Destroy() error {
	slog.Info("Left simulated voice channel")
	return nil
}
