package discord

import (
	"context"
	"fmt"
	"strings"

	"faceit-companion/internal/config"
	"faceit-companion/internal/domain"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// Service reconciles match state into Discord: voice channel status text,
// live scorecards, finish notifications and Elo nicknames. It also resolves
// which voice channel a set of tracked players currently occupies.
type Service struct {
	session       *discordgo.Session
	guildID       string
	liveChannelID string
	logger        zerolog.Logger
}

func NewService(session *discordgo.Session, cfg *config.Config, logger zerolog.Logger) *Service {
	return &Service{
		session:       session,
		guildID:       cfg.GuildID,
		liveChannelID: cfg.LiveChannelID,
		logger:        logger,
	}
}

// ResolveVoiceChannel returns the voice channel containing at least one of
// the given players, or "" when none of them is connected. When players span
// several channels the first one found in voice-state enumeration order
// wins; the order is whatever the gateway delivered, not a preference.
func (s *Service) ResolveVoiceChannel(ctx context.Context, players []domain.TrackedPlayer) (string, error) {
	tracked := make(map[string]struct{}, len(players))
	for _, p := range players {
		tracked[strings.ToLower(p.DiscordUsername)] = struct{}{}
	}

	guild, err := s.session.State.Guild(s.guildID)
	if err != nil {
		return "", fmt.Errorf("guild %s not in state: %w", s.guildID, err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == "" {
			continue
		}
		username, err := s.memberUsername(vs.UserID)
		if err != nil {
			s.logger.Debug().Err(err).Str("user_id", vs.UserID).Msg("could not resolve voice state member")
			continue
		}
		if _, ok := tracked[strings.ToLower(username)]; ok {
			return vs.ChannelID, nil
		}
	}
	return "", nil
}

func (s *Service) memberUsername(userID string) (string, error) {
	member, err := s.session.State.Member(s.guildID, userID)
	if err != nil {
		member, err = s.session.GuildMember(s.guildID, userID)
		if err != nil {
			return "", err
		}
	}
	return member.User.Username, nil
}

// SetChannelStatus sets the voice channel status text, or clears it when
// text is empty. The endpoint is not wrapped by discordgo so the raw route
// is used; rate limiting is handled by the session's limiter.
func (s *Service) SetChannelStatus(ctx context.Context, channelID, text string) error {
	endpoint := discordgo.EndpointChannel(channelID) + "/voice-status"
	body := struct {
		Status string `json:"status"`
	}{Status: text}

	_, err := s.session.RequestWithBucketID("PUT", endpoint, body, endpoint, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to set status on channel %s: %w", channelID, err)
	}
	return nil
}

// CreateLiveScorecard posts a fresh scorecard embed to the live channel and
// returns the message id to store on the match.
func (s *Service) CreateLiveScorecard(ctx context.Context, m *domain.Match) (string, error) {
	msg, err := s.session.ChannelMessageSendEmbed(s.liveChannelID, scorecardEmbed(m), discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to create scorecard for match %s: %w", m.MatchID, err)
	}
	return msg.ID, nil
}

// UpdateLiveScorecard edits the existing scorecard in place. A missing
// message surfaces as an error so the caller can recreate it.
func (s *Service) UpdateLiveScorecard(ctx context.Context, m *domain.Match) error {
	if m.ScorecardMessageID == "" {
		return fmt.Errorf("match %s has no scorecard message", m.MatchID)
	}
	_, err := s.session.ChannelMessageEditEmbed(s.liveChannelID, m.ScorecardMessageID, scorecardEmbed(m), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to update scorecard for match %s: %w", m.MatchID, err)
	}
	return nil
}

// DeleteScorecard removes the live scorecard once the match is over.
func (s *Service) DeleteScorecard(ctx context.Context, m *domain.Match) error {
	if m.ScorecardMessageID == "" {
		return nil
	}
	err := s.session.ChannelMessageDelete(s.liveChannelID, m.ScorecardMessageID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to delete scorecard for match %s: %w", m.MatchID, err)
	}
	return nil
}

func (s *Service) PostFinishNotification(ctx context.Context, m *domain.Match, final domain.Score, win bool) error {
	_, err := s.session.ChannelMessageSendEmbed(s.liveChannelID, finishEmbed(m, final, win), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post finish notification for match %s: %w", m.MatchID, err)
	}
	return nil
}

// PostMatchAnalysis posts the pre-match analysis embed into the resolved
// voice channel's text surface.
func (s *Service) PostMatchAnalysis(ctx context.Context, channelID string, roster *domain.MatchRoster, ratings map[string]domain.PlayerRating) error {
	_, err := s.session.ChannelMessageSendEmbed(channelID, analysisEmbed(roster, ratings), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post match analysis to %s: %w", channelID, err)
	}
	return nil
}

// UpdatePlayerEloRepresentation rewrites a member's nickname with their new
// Elo suffix.
func (s *Service) UpdatePlayerEloRepresentation(ctx context.Context, discordUsername string, elo int) error {
	members, err := s.session.GuildMembersSearch(s.guildID, discordUsername, 1, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to search member %s: %w", discordUsername, err)
	}
	if len(members) == 0 {
		return fmt.Errorf("member %s not found in guild %s", discordUsername, s.guildID)
	}

	member := members[0]
	base := member.User.Username
	if i := strings.Index(member.Nick, " ["); i > 0 {
		base = member.Nick[:i]
	} else if member.Nick != "" {
		base = member.Nick
	}

	err = s.session.GuildMemberNickname(s.guildID, member.User.ID, eloNickname(base, elo), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to set nickname for %s: %w", discordUsername, err)
	}
	return nil
}
