package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"faceit-companion/internal/domain"

	"github.com/rs/zerolog"
)

// TrackedUserRepository reads and updates the long-lived registry of
// community members. Registration and removal happen outside the lifecycle
// core; it only snapshots users into matches and writes Elo back afterwards.
type TrackedUserRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewTrackedUserRepository(db *sql.DB, logger zerolog.Logger) *TrackedUserRepository {
	return &TrackedUserRepository{db: db, logger: logger}
}

func (r *TrackedUserRepository) ListAll(ctx context.Context) ([]domain.TrackedUser, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT discord_username, faceit_username, game_player_id, faceit_id,
		       previous_elo, monthly_start_elo, monthly_games, created_at, updated_at
		FROM tracked_users`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.TrackedUser
	for rows.Next() {
		var u domain.TrackedUser
		err := rows.Scan(
			&u.DiscordUsername, &u.FaceitUsername, &u.GamePlayerID, &u.FaceitID,
			&u.PreviousElo, &u.MonthlyStartElo, &u.MonthlyGames, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *TrackedUserRepository) Get(ctx context.Context, discordUsername string) (*domain.TrackedUser, error) {
	var u domain.TrackedUser
	err := r.db.QueryRowContext(ctx, `
		SELECT discord_username, faceit_username, game_player_id, faceit_id,
		       previous_elo, monthly_start_elo, monthly_games, created_at, updated_at
		FROM tracked_users WHERE discord_username = ?`, discordUsername).Scan(
		&u.DiscordUsername, &u.FaceitUsername, &u.GamePlayerID, &u.FaceitID,
		&u.PreviousElo, &u.MonthlyStartElo, &u.MonthlyGames, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateElo writes a player's new rating back after a finished match. The
// monthly counters piggyback on the same write: the first update of a month
// would have reset MonthlyStartElo elsewhere, here we only bump the game
// count alongside the rating.
func (r *TrackedUserRepository) UpdateElo(ctx context.Context, discordUsername string, elo int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tracked_users
		SET previous_elo = ?, monthly_games = monthly_games + 1, updated_at = ?
		WHERE discord_username = ?`, elo, time.Now(), discordUsername)
	if err != nil {
		return fmt.Errorf("failed to update elo for %s: %w", discordUsername, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
