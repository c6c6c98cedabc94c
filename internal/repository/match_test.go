package repository_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"faceit-companion/internal/database"
	"faceit-companion/internal/domain"
	"faceit-companion/internal/repository"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

func testMatch(id string) *domain.Match {
	return &domain.Match{
		MatchID: id,
		MapName: "de_mirage",
		Team: domain.TrackedTeam{
			TeamID:  "team-1",
			Faction: domain.Faction1,
			Players: []domain.TrackedPlayer{{
				FaceitID:        "fid",
				GamePlayerID:    "gpid",
				DiscordUsername: "a#1",
				FaceitUsername:  "a",
				PreviousElo:     1800,
			}},
		},
		VoiceChannelID:     "vc1",
		ScorecardMessageID: "msg-1",
		CurrentResult:      domain.Score{0, 0},
	}
}

func TestMatchCreateIsIdempotent(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	inserted, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)
	assert.False(t, inserted, "second create with same id must be a no-op")

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestMatchGetRoundTrip(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	want := testMatch("m1")
	_, err := repo.Create(ctx, want)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, want.MatchID, got.MatchID)
	assert.Equal(t, want.MapName, got.MapName)
	assert.Equal(t, want.Team, got.Team)
	assert.Equal(t, want.VoiceChannelID, got.VoiceChannelID)
	assert.Equal(t, want.ScorecardMessageID, got.ScorecardMessageID)
	assert.False(t, got.Processed)
}

func TestMatchGetNotFound(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())

	_, err := repo.Get(context.Background(), "ghost")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestMarkProcessedWinsOnce(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)

	won, err := repo.MarkProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.MarkProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, won, "processed never transitions twice")

	processed, err := repo.IsProcessed(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestMarkProcessedConcurrentSingleWinner(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)

	const callers = 8
	var mu sync.Mutex
	winners := 0

	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.MarkProcessed(ctx, "m1")
			assert.NoError(t, err)
			if won {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestListActiveExcludesProcessed(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)
	_, err = repo.Create(ctx, testMatch("m2"))
	require.NoError(t, err)

	_, err = repo.MarkProcessed(ctx, "m1")
	require.NoError(t, err)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "m2", active[0].MatchID)
}

func TestUpdateResultAndScorecard(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateResult(ctx, "m1", domain.Score{7, 4}))
	require.NoError(t, repo.SetScorecardMessage(ctx, "m1", "msg-2"))

	got, err := repo.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, domain.Score{7, 4}, got.CurrentResult)
	assert.Equal(t, "msg-2", got.ScorecardMessageID)
}

func TestDeleteRemovesMatch(t *testing.T) {
	repo := repository.NewMatchRepository(newTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := repo.Create(ctx, testMatch("m1"))
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, "m1"))

	exists, err := repo.Exists(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, exists)
}
