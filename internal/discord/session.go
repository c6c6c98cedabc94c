package discord

import (
	"context"
	"fmt"

	"faceit-companion/internal/config"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// NewSession constructs the gateway session and ties connect/disconnect to
// the fx lifecycle. The session is injected, never reached through a
// package-level singleton.
func NewSession(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}

	// Voice states and member cache back the presence resolver.
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMembers

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := session.Open(); err != nil {
				return fmt.Errorf("failed to open discord gateway: %w", err)
			}
			logger.Info().Str("guild_id", cfg.GuildID).Msg("discord gateway connected")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("closing discord gateway")
			return session.Close()
		},
	})

	return session, nil
}
