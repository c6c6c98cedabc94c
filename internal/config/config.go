package config

import (
	"fmt"
	"os"
	"time"

	"faceit-companion/internal/constants"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

type Config struct {
	FaceitAPIKey string
	DiscordToken string

	// GuildID is the Discord server whose voice channels and members are
	// reconciled against match state.
	GuildID string

	// LiveChannelID is the text channel receiving live scorecards and
	// finish notifications.
	LiveChannelID string

	DBPath       string
	ServerPort   string
	LogLevel     string
	PollInterval time.Duration
}

func Load(logger zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		FaceitAPIKey:  getEnv("FACEIT_API_KEY", ""),
		DiscordToken:  getEnv("DISCORD_TOKEN", ""),
		GuildID:       getEnv("DISCORD_GUILD_ID", ""),
		LiveChannelID: getEnv("LIVE_CHANNEL_ID", ""),
		DBPath:        getEnv("DB_PATH", "companion.db"),
		ServerPort:    getEnv("SERVER_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PollInterval:  getDuration("POLL_INTERVAL", constants.DefaultPollInterval),
	}

	if cfg.FaceitAPIKey == "" {
		return nil, fmt.Errorf("FACEIT_API_KEY is required")
	}
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return nil, fmt.Errorf("DISCORD_GUILD_ID is required")
	}
	if cfg.LiveChannelID == "" {
		return nil, fmt.Errorf("LIVE_CHANNEL_ID is required")
	}

	logger.Info().
		Str("guild_id", cfg.GuildID).
		Str("live_channel_id", cfg.LiveChannelID).
		Str("db_path", cfg.DBPath).
		Str("server_port", cfg.ServerPort).
		Dur("poll_interval", cfg.PollInterval).
		Msg("configuration loaded")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

var Module = fx.Provide(Load)
