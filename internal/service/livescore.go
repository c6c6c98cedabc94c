package service

import (
	"context"
	"errors"

	"faceit-companion/internal/constants"
	"faceit-companion/internal/repository"
)

// ErrMatchNotActive tells the polling caller that the match id no longer
// refers to a live match and must be dropped from its rotation.
var ErrMatchNotActive = errors.New("match no longer active")

// RefreshLiveScore fetches the current score for one active match and pushes
// it to Discord only when it changed. Provider failures on this path are
// best-effort: logged and skipped until the next tick, never escalated.
func (s *LifecycleService) RefreshLiveScore(ctx context.Context, matchID string) error {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	m, err := s.store.Get(ctx, matchID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrMatchNotActive
	}
	if err != nil {
		return err
	}
	if m.Processed {
		return ErrMatchNotActive
	}

	apiCtx, apiCancel := context.WithTimeout(ctx, constants.ExternalAPITimeout)
	defer apiCancel()

	score, err := s.provider.GetLiveScore(apiCtx, matchID, m.Team.Faction)
	if err != nil {
		s.logger.Debug().Err(err).Str("match_id", matchID).Msg("live score fetch failed, skipping tick")
		return nil
	}

	if score == m.CurrentResult {
		return nil
	}

	s.logger.Debug().
		Str("match_id", matchID).
		Ints("old", m.CurrentResult[:]).
		Ints("new", score[:]).
		Msg("score changed")

	m.CurrentResult = score

	if m.VoiceChannelID != "" {
		if err := s.notifier.SetChannelStatus(ctx, m.VoiceChannelID, liveStatus(m)); err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to update channel status")
		}
	}

	if m.ScorecardMessageID != "" {
		if err := s.notifier.UpdateLiveScorecard(ctx, m); err != nil {
			s.logger.Warn().Err(err).Str("match_id", matchID).Msg("failed to update scorecard, recreating")
			if messageID, cerr := s.notifier.CreateLiveScorecard(ctx, m); cerr != nil {
				s.logger.Warn().Err(cerr).Str("match_id", matchID).Msg("failed to recreate scorecard")
			} else {
				m.ScorecardMessageID = messageID
				if serr := s.store.SetScorecardMessage(ctx, matchID, messageID); serr != nil {
					s.logger.Warn().Err(serr).Str("match_id", matchID).Msg("failed to store scorecard reference")
				}
			}
		}
	}

	if err := s.store.UpdateResult(ctx, matchID, score); err != nil {
		return err
	}
	return nil
}
