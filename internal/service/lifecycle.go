package service

import (
	"context"
	"errors"
	"fmt"

	"faceit-companion/internal/constants"
	"faceit-companion/internal/domain"
	"faceit-companion/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Webhook event types the lifecycle reacts to. Anything else is ignored.
const (
	EventMatchCreated   = "match_object_created"
	EventMatchReady     = "match_status_ready"
	EventMatchFinished  = "match_status_finished"
	EventMatchCancelled = "match_status_cancelled"
)

// MatchStore is the persistence surface the lifecycle needs. Implemented by
// repository.MatchRepository.
type MatchStore interface {
	Create(ctx context.Context, m *domain.Match) (bool, error)
	Get(ctx context.Context, matchID string) (*domain.Match, error)
	Exists(ctx context.Context, matchID string) (bool, error)
	IsProcessed(ctx context.Context, matchID string) (bool, error)
	MarkProcessed(ctx context.Context, matchID string) (bool, error)
	UpdateResult(ctx context.Context, matchID string, score domain.Score) error
	SetScorecardMessage(ctx context.Context, matchID, messageID string) error
	ListActive(ctx context.Context) ([]domain.Match, error)
	Delete(ctx context.Context, matchID string) error
}

// MatchDataProvider reads match truth from the platform. Implemented by
// faceit.Client.
type MatchDataProvider interface {
	GetMatchRoster(ctx context.Context, matchID string) (*domain.MatchRoster, error)
	GetLiveScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error)
	GetFinalScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error)
	GetResult(ctx context.Context, matchID string, faction domain.Faction) (bool, error)
	GetPlayerRating(ctx context.Context, identifier string) (*domain.PlayerRating, error)
}

// PresenceResolver maps tracked players to an occupied voice channel.
type PresenceResolver interface {
	ResolveVoiceChannel(ctx context.Context, players []domain.TrackedPlayer) (string, error)
}

// Notifier is the Discord-side side-effect sink. Every call is cosmetic:
// failures are logged and never abort a transition.
type Notifier interface {
	SetChannelStatus(ctx context.Context, channelID, text string) error
	CreateLiveScorecard(ctx context.Context, m *domain.Match) (string, error)
	UpdateLiveScorecard(ctx context.Context, m *domain.Match) error
	DeleteScorecard(ctx context.Context, m *domain.Match) error
	PostFinishNotification(ctx context.Context, m *domain.Match, final domain.Score, win bool) error
	PostMatchAnalysis(ctx context.Context, channelID string, roster *domain.MatchRoster, ratings map[string]domain.PlayerRating) error
	UpdatePlayerEloRepresentation(ctx context.Context, discordUsername string, elo int) error
}

// UserRegistry writes ratings back to the tracked-user registry.
type UserRegistry interface {
	UpdateElo(ctx context.Context, discordUsername string, elo int) error
}

// EloHistory records per-match Elo deltas.
type EloHistory interface {
	Append(ctx context.Context, rec domain.EloRecord) error
}

// LifecycleService drives a match through not-started, live and terminal
// states off webhook events, keeping Discord in sync with the store.
type LifecycleService struct {
	store    MatchStore
	provider MatchDataProvider
	resolver PresenceResolver
	notifier Notifier
	registry UserRegistry
	history  EloHistory
	logger   zerolog.Logger
}

func NewLifecycleService(
	store MatchStore,
	provider MatchDataProvider,
	resolver PresenceResolver,
	notifier Notifier,
	registry UserRegistry,
	history EloHistory,
	logger zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		store:    store,
		provider: provider,
		resolver: resolver,
		notifier: notifier,
		registry: registry,
		history:  history,
		logger:   logger,
	}
}

// HandleEvent dispatches one webhook delivery. Unknown event types are
// logged and dropped; they are not errors, the sender must never be made to
// retry on business-level no-ops.
func (s *LifecycleService) HandleEvent(ctx context.Context, event, matchID string) error {
	switch event {
	case EventMatchReady:
		return s.StartMatch(ctx, matchID)
	case EventMatchFinished:
		return s.EndMatch(ctx, matchID)
	case EventMatchCancelled:
		return s.CancelMatch(ctx, matchID)
	case EventMatchCreated:
		return s.AnalyzeMatch(ctx, matchID)
	default:
		s.logger.Info().Str("event", event).Str("match_id", matchID).Msg("ignoring unhandled event type")
		return nil
	}
}

// StartMatch handles match_status_ready: persist the match and, when the
// roster is co-located in a voice channel, surface live state in Discord.
// Duplicate deliveries are no-ops.
func (s *LifecycleService) StartMatch(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	exists, err := s.store.Exists(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to check match %s: %w", matchID, err)
	}
	if exists {
		s.logger.Debug().Str("match_id", matchID).Msg("duplicate ready event, match already tracked")
		return nil
	}

	roster, err := s.fetchRoster(ctx, matchID)
	if err != nil {
		return err
	}
	if roster == nil {
		return nil
	}

	m := &domain.Match{
		MatchID: matchID,
		MapName: roster.MapName,
		Team: domain.TrackedTeam{
			TeamID:  roster.TeamID,
			Faction: roster.Faction,
			Players: roster.Players,
		},
	}

	channelID, err := s.resolver.ResolveVoiceChannel(ctx, roster.Players)
	if err != nil {
		s.logger.Warn().Err(err).Str("match_id", matchID).Msg("voice channel resolution failed")
		channelID = ""
	}
	m.VoiceChannelID = channelID

	if channelID != "" {
		if err := s.notifier.SetChannelStatus(ctx, channelID, liveStatus(m)); err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Str("channel_id", channelID).Msg("failed to set channel status")
		}
		messageID, err := s.notifier.CreateLiveScorecard(ctx, m)
		if err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to create live scorecard")
		} else {
			m.ScorecardMessageID = messageID
		}
	}

	inserted, err := s.store.Create(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to persist match %s: %w", matchID, err)
	}
	if !inserted {
		// A concurrent delivery won the insert; drop the artifacts this
		// invocation created so only one scorecard survives.
		s.logger.Debug().Str("match_id", matchID).Msg("lost create race to concurrent delivery")
		if m.ScorecardMessageID != "" {
			if err := s.notifier.DeleteScorecard(ctx, m); err != nil {
				s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to delete duplicate scorecard")
			}
		}
		return nil
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("map", m.MapName).
		Str("voice_channel_id", channelID).
		Int("tracked_players", len(m.Team.Players)).
		Msg("match started")
	return nil
}

// EndMatch handles match_status_finished. The processed flag is flipped
// atomically before any side effect runs; side effects are isolated from
// each other and the row is removed last.
func (s *LifecycleService) EndMatch(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	processed, err := s.store.IsProcessed(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to check processed for match %s: %w", matchID, err)
	}
	if processed {
		s.logger.Debug().Str("match_id", matchID).Msg("duplicate finished event, already processed")
		return nil
	}

	m, err := s.store.Get(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Str("match_id", matchID).Msg("finished event for unknown match")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	won, err := s.store.MarkProcessed(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to mark match %s processed: %w", matchID, err)
	}
	if !won {
		s.logger.Debug().Str("match_id", matchID).Msg("concurrent delivery already processing match")
		return nil
	}

	s.postFinishNotification(ctx, m)
	s.updateTeamElo(ctx, m)
	s.tearDownLiveState(ctx, m)

	if err := s.store.Delete(ctx, matchID); err != nil {
		return err
	}
	s.logger.Info().Str("match_id", matchID).Msg("match finished and removed")
	return nil
}

// CancelMatch handles match_status_cancelled: same teardown as a finish but
// without the notification or Elo updates, since the match never played out.
func (s *LifecycleService) CancelMatch(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	m, err := s.store.Get(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn().Str("match_id", matchID).Msg("cancelled event for unknown match")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load match %s: %w", matchID, err)
	}

	won, err := s.store.MarkProcessed(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to mark match %s processed: %w", matchID, err)
	}
	if !won {
		s.logger.Debug().Str("match_id", matchID).Msg("concurrent delivery already processing match")
		return nil
	}

	s.tearDownLiveState(ctx, m)

	if err := s.store.Delete(ctx, matchID); err != nil {
		return err
	}
	s.logger.Info().Str("match_id", matchID).Msg("match cancelled and removed")
	return nil
}

// AnalyzeMatch handles match_object_created: purely informational, nothing
// is persisted. The analysis is posted only for matches meaningfully
// involving the community and only into a resolvable voice channel.
func (s *LifecycleService) AnalyzeMatch(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	exists, err := s.store.Exists(ctx, matchID)
	if err != nil {
		return fmt.Errorf("failed to check match %s: %w", matchID, err)
	}
	if exists {
		return nil
	}

	roster, err := s.fetchRoster(ctx, matchID)
	if err != nil {
		return err
	}
	if roster == nil {
		return nil
	}

	captain := false
	for _, p := range roster.Players {
		if p.FaceitID == roster.LeaderID {
			captain = true
			break
		}
	}
	if len(roster.Players) < constants.AnalysisMinTrackedPlayers && !captain {
		s.logger.Debug().
			Str("match_id", matchID).
			Int("tracked_players", len(roster.Players)).
			Msg("suppressing analysis, community involvement too marginal")
		return nil
	}

	channelID, err := s.resolver.ResolveVoiceChannel(ctx, roster.Players)
	if err != nil || channelID == "" {
		if err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Msg("voice channel resolution failed")
		}
		return nil
	}

	ratings := s.fetchRatings(ctx, roster.Players)
	if err := s.notifier.PostMatchAnalysis(ctx, channelID, roster, ratings); err != nil {
		s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to post match analysis")
	}
	return nil
}

// fetchRoster loads the tracked roster, returning nil (and logging) for all
// the cases that must short-circuit the caller without persistence.
func (s *LifecycleService) fetchRoster(ctx context.Context, matchID string) (*domain.MatchRoster, error) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	roster, err := s.provider.GetMatchRoster(apiCtx, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster for match %s: %w", matchID, err)
	}
	if roster == nil {
		s.logger.Debug().Str("match_id", matchID).Msg("unsupported match, skipping")
		return nil, nil
	}
	if len(roster.Players) == 0 {
		s.logger.Debug().Str("match_id", matchID).Msg("no tracked players on roster, skipping")
		return nil, nil
	}
	return roster, nil
}

func (s *LifecycleService) postFinishNotification(ctx context.Context, m *domain.Match) {
	apiCtx, cancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer cancel()

	final, err := s.provider.GetFinalScore(apiCtx, m.MatchID, m.Team.Faction)
	if err != nil {
		s.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("failed to fetch final score, skipping notification")
		return
	}
	win, err := s.provider.GetResult(apiCtx, m.MatchID, m.Team.Faction)
	if err != nil {
		s.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("failed to fetch result, skipping notification")
		return
	}
	if err := s.notifier.PostFinishNotification(ctx, m, final, win); err != nil {
		s.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("failed to post finish notification")
	}
}

// updateTeamElo refreshes every tracked player's rating in parallel. One
// player's failure never blocks the others.
func (s *LifecycleService) updateTeamElo(ctx context.Context, m *domain.Match) {
	g := new(errgroup.Group)
	g.SetLimit(constants.EloUpdateWorkers)

	for _, p := range m.Team.Players {
		g.Go(func() error {
			s.updatePlayerElo(ctx, m.MatchID, p)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *LifecycleService) updatePlayerElo(ctx context.Context, matchID string, p domain.TrackedPlayer) {
	identifier := p.GamePlayerID
	if identifier == "" {
		identifier = p.FaceitUsername
	}

	rating, err := s.provider.GetPlayerRating(ctx, identifier)
	if err != nil {
		s.logger.Warn().Err(err).Str("match_id", matchID).Str("player", p.FaceitUsername).Msg("failed to fetch player rating")
		return
	}

	if err := s.registry.UpdateElo(ctx, p.DiscordUsername, rating.Elo); err != nil {
		s.logger.Warn().Err(err).Str("player", p.DiscordUsername).Msg("failed to update registry elo")
	}
	if err := s.history.Append(ctx, domain.EloRecord{
		MatchID:         matchID,
		DiscordUsername: p.DiscordUsername,
		OldElo:          p.PreviousElo,
		NewElo:          rating.Elo,
		SkillLevel:      rating.SkillLevel,
	}); err != nil {
		s.logger.Warn().Err(err).Str("player", p.DiscordUsername).Msg("failed to append elo history")
	}
	if err := s.notifier.UpdatePlayerEloRepresentation(ctx, p.DiscordUsername, rating.Elo); err != nil {
		s.logger.Warn().Err(err).Str("player", p.DiscordUsername).Msg("failed to update elo nickname")
	}

	s.logger.Info().
		Str("match_id", matchID).
		Str("player", p.FaceitUsername).
		Int("old_elo", p.PreviousElo).
		Int("new_elo", rating.Elo).
		Int("delta", rating.Elo-p.PreviousElo).
		Msg("player elo updated")
}

// tearDownLiveState clears the channel status and deletes the scorecard.
// Both are cosmetic and failure-tolerant.
func (s *LifecycleService) tearDownLiveState(ctx context.Context, m *domain.Match) {
	if m.VoiceChannelID != "" {
		if err := s.notifier.SetChannelStatus(ctx, m.VoiceChannelID, ""); err != nil {
			s.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("failed to clear channel status")
		}
	}
	if err := s.notifier.DeleteScorecard(ctx, m); err != nil {
		s.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("failed to delete scorecard")
	}
}

// fetchRatings resolves current ratings for the analysis embed, best-effort
// and in parallel.
func (s *LifecycleService) fetchRatings(ctx context.Context, players []domain.TrackedPlayer) map[string]domain.PlayerRating {
	type result struct {
		nickname string
		rating   *domain.PlayerRating
	}

	results := make(chan result, len(players))
	g := new(errgroup.Group)
	g.SetLimit(constants.EloUpdateWorkers)
	for _, p := range players {
		g.Go(func() error {
			identifier := p.GamePlayerID
			if identifier == "" {
				identifier = p.FaceitUsername
			}
			rating, err := s.provider.GetPlayerRating(ctx, identifier)
			if err != nil {
				s.logger.Debug().Err(err).Str("player", p.FaceitUsername).Msg("rating unavailable for analysis")
				return nil
			}
			results <- result{nickname: p.FaceitUsername, rating: rating}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	ratings := make(map[string]domain.PlayerRating, len(players))
	for r := range results {
		ratings[r.nickname] = *r.rating
	}
	return ratings
}

func liveStatus(m *domain.Match) string {
	return fmt.Sprintf("LIVE %d:%d · %s", m.CurrentResult[0], m.CurrentResult[1], m.MapName)
}
