package service

import (
	"context"
	"sync"
	"time"

	"faceit-companion/internal/domain"
	"faceit-companion/internal/repository"
)

// fakeStore is an in-memory MatchStore with the same atomicity guarantees as
// the real repository: Create ignores duplicates, MarkProcessed is a
// compare-and-set. processDelay widens the window between the IsProcessed
// read and the MarkProcessed write to provoke duplicate-delivery races.
type fakeStore struct {
	mu           sync.Mutex
	matches      map[string]*domain.Match
	processDelay time.Duration
	createCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{matches: make(map[string]*domain.Match)}
}

func (f *fakeStore) put(m domain.Match) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches[m.MatchID] = &m
}

func (f *fakeStore) Create(ctx context.Context, m *domain.Match) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if _, ok := f.matches[m.MatchID]; ok {
		return false, nil
	}
	cp := *m
	f.matches[m.MatchID] = &cp
	return true, nil
}

func (f *fakeStore) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[matchID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeStore) Exists(ctx context.Context, matchID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.matches[matchID]
	return ok, nil
}

func (f *fakeStore) IsProcessed(ctx context.Context, matchID string) (bool, error) {
	f.mu.Lock()
	m, ok := f.matches[matchID]
	processed := ok && m.Processed
	f.mu.Unlock()

	// Let concurrent duplicates both observe the unprocessed state before
	// either reaches the compare-and-set.
	time.Sleep(f.processDelay)
	return processed, nil
}

func (f *fakeStore) MarkProcessed(ctx context.Context, matchID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.matches[matchID]
	if !ok || m.Processed {
		return false, nil
	}
	m.Processed = true
	return true, nil
}

func (f *fakeStore) UpdateResult(ctx context.Context, matchID string, score domain.Score) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.matches[matchID]; ok {
		m.CurrentResult = score
	}
	return nil
}

func (f *fakeStore) SetScorecardMessage(ctx context.Context, matchID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.matches[matchID]; ok {
		m.ScorecardMessageID = messageID
	}
	return nil
}

func (f *fakeStore) ListActive(ctx context.Context) ([]domain.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []domain.Match
	for _, m := range f.matches {
		if !m.Processed {
			matches = append(matches, *m)
		}
	}
	return matches, nil
}

func (f *fakeStore) Delete(ctx context.Context, matchID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.matches, matchID)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matches)
}

type fakeProvider struct {
	GetMatchRosterFunc  func(ctx context.Context, matchID string) (*domain.MatchRoster, error)
	GetLiveScoreFunc    func(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error)
	GetFinalScoreFunc   func(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error)
	GetResultFunc       func(ctx context.Context, matchID string, faction domain.Faction) (bool, error)
	GetPlayerRatingFunc func(ctx context.Context, identifier string) (*domain.PlayerRating, error)
}

func (f *fakeProvider) GetMatchRoster(ctx context.Context, matchID string) (*domain.MatchRoster, error) {
	if f.GetMatchRosterFunc != nil {
		return f.GetMatchRosterFunc(ctx, matchID)
	}
	return nil, nil
}

func (f *fakeProvider) GetLiveScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error) {
	if f.GetLiveScoreFunc != nil {
		return f.GetLiveScoreFunc(ctx, matchID, faction)
	}
	return domain.Score{}, nil
}

func (f *fakeProvider) GetFinalScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error) {
	if f.GetFinalScoreFunc != nil {
		return f.GetFinalScoreFunc(ctx, matchID, faction)
	}
	return domain.Score{}, nil
}

func (f *fakeProvider) GetResult(ctx context.Context, matchID string, faction domain.Faction) (bool, error) {
	if f.GetResultFunc != nil {
		return f.GetResultFunc(ctx, matchID, faction)
	}
	return false, nil
}

func (f *fakeProvider) GetPlayerRating(ctx context.Context, identifier string) (*domain.PlayerRating, error) {
	if f.GetPlayerRatingFunc != nil {
		return f.GetPlayerRatingFunc(ctx, identifier)
	}
	return &domain.PlayerRating{Elo: 1000, SkillLevel: 5}, nil
}

type fakeResolver struct {
	ResolveVoiceChannelFunc func(ctx context.Context, players []domain.TrackedPlayer) (string, error)
}

func (f *fakeResolver) ResolveVoiceChannel(ctx context.Context, players []domain.TrackedPlayer) (string, error) {
	if f.ResolveVoiceChannelFunc != nil {
		return f.ResolveVoiceChannelFunc(ctx, players)
	}
	return "", nil
}

type statusCall struct {
	channelID string
	text      string
}

// fakeNotifier counts side-effect commands.
type fakeNotifier struct {
	mu             sync.Mutex
	statusCalls    []statusCall
	createCalls    int
	updateCalls    int
	deleteCalls    int
	finishCalls    int
	analysisCalls  int
	eloRepCalls    []string
	failUpdateCard bool
}

func (f *fakeNotifier) SetChannelStatus(ctx context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{channelID: channelID, text: text})
	return nil
}

func (f *fakeNotifier) CreateLiveScorecard(ctx context.Context, m *domain.Match) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	return "msg-1", nil
}

func (f *fakeNotifier) UpdateLiveScorecard(ctx context.Context, m *domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdateCard {
		return context.DeadlineExceeded
	}
	f.updateCalls++
	return nil
}

func (f *fakeNotifier) DeleteScorecard(ctx context.Context, m *domain.Match) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	return nil
}

func (f *fakeNotifier) PostFinishNotification(ctx context.Context, m *domain.Match, final domain.Score, win bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finishCalls++
	return nil
}

func (f *fakeNotifier) PostMatchAnalysis(ctx context.Context, channelID string, roster *domain.MatchRoster, ratings map[string]domain.PlayerRating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analysisCalls++
	return nil
}

func (f *fakeNotifier) UpdatePlayerEloRepresentation(ctx context.Context, discordUsername string, elo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eloRepCalls = append(f.eloRepCalls, discordUsername)
	return nil
}

type fakeRegistry struct {
	mu      sync.Mutex
	updates map[string]int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{updates: make(map[string]int)}
}

func (f *fakeRegistry) UpdateElo(ctx context.Context, discordUsername string, elo int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates[discordUsername] = elo
	return nil
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.EloRecord
}

func (f *fakeHistory) Append(ctx context.Context, rec domain.EloRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}
