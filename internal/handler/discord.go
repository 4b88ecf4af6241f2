package handler

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

type ReadyHandler = func(*discordgo.Session, *discordgo.Ready)
type MessageCreateHandler = func(*discordgo.Session, *discordgo.MessageCreate)
type VoiceStateUpdateHandler = func(*discordgo.Session, *discordgo.VoiceStateUpdate)

var ReadyLog = func(s *discordgo.Session, r *discordgo.Ready) {
	username := r.User.Username
	userID := r.User.ID
	slog.Info("Bot is ready", "username", username, "userID", userID, "guilds", len(r.Guilds))
}

// DiscordSession is the part of *discordgo.Session the dispatcher replies through.
type DiscordSession interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

var _ DiscordSession = (*discordgo.Session)(nil)

type Handlers struct {
	Ready            ReadyHandler
	MessageCreate    MessageCreateHandler
	VoiceStateUpdate VoiceStateUpdateHandler
}

// Intents the bot needs: guild and voice state caches to find the author's
// voice channel, plus message content to read commands.
const Intents = discordgo.IntentGuilds |
	discordgo.IntentGuildMessages |
	discordgo.IntentGuildVoiceStates |
	discordgo.IntentMessageContent

func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = Intents
	return s, nil
}

// AddHandlers registers the non-nil handlers on s.
func AddHandlers(s *discordgo.Session, handlers Handlers) {
	if handlers.Ready != nil {
		s.AddHandler(handlers.Ready)
	}
	if handlers.MessageCreate != nil {
		s.AddHandler(handlers.MessageCreate)
	}
	if handlers.VoiceStateUpdate != nil {
		s.AddHandler(handlers.VoiceStateUpdate)
	}
}
