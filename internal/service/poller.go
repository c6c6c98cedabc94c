package service

import (
	"context"
	"errors"
	"time"

	"faceit-companion/internal/constants"
	"faceit-companion/internal/domain"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ActiveLister exposes the persisted active-match set the poller iterates.
type ActiveLister interface {
	ListActive(ctx context.Context) ([]domain.Match, error)
}

// ScoreRefresher refreshes one match's live score.
type ScoreRefresher interface {
	RefreshLiveScore(ctx context.Context, matchID string) error
}

// Poller is the single periodic task refreshing live scores. There is one
// ticker for the whole process; each tick reads the active set from the
// store and fans out per match, so matches poll independently and the set
// survives restarts. A tick with nothing active is a no-op.
type Poller struct {
	store     ActiveLister
	refresher ScoreRefresher
	interval  time.Duration
	logger    zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(store ActiveLister, refresher ScoreRefresher, interval time.Duration, logger zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}
	return &Poller{
		store:     store,
		refresher: refresher,
		interval:  interval,
		logger:    logger,
	}
}

func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx)
	p.logger.Info().Dur("interval", p.interval).Msg("live score poller started")
}

func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.logger.Info().Msg("live score poller stopped")
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, constants.PollTickTimeout)
	defer cancel()

	matches, err := p.store.ListActive(tickCtx)
	if err != nil {
		p.logger.Warn().Err(err).Msg("failed to list active matches")
		return
	}
	if len(matches) == 0 {
		return
	}

	g := new(errgroup.Group)
	for _, m := range matches {
		g.Go(func() error {
			err := p.refresher.RefreshLiveScore(tickCtx, m.MatchID)
			if errors.Is(err, ErrMatchNotActive) {
				p.logger.Debug().Str("match_id", m.MatchID).Msg("match left active set between list and refresh")
				return nil
			}
			if err != nil {
				p.logger.Warn().Err(err).Str("match_id", m.MatchID).Msg("live score refresh failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}
