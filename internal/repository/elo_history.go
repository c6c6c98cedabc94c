package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"faceit-companion/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// EloHistoryRepository appends one record per tracked player per finished
// match. History is never rewritten; reporting reads it elsewhere.
type EloHistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewEloHistoryRepository(db *sql.DB, logger zerolog.Logger) *EloHistoryRepository {
	return &EloHistoryRepository{db: db, logger: logger}
}

func (r *EloHistoryRepository) Append(ctx context.Context, rec domain.EloRecord) error {
	id := rec.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO elo_history (id, match_id, discord_username, old_elo, new_elo, skill_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, rec.MatchID, rec.DiscordUsername, rec.OldElo, rec.NewElo, rec.SkillLevel, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append elo history for %s: %w", rec.DiscordUsername, err)
	}
	return nil
}

func (r *EloHistoryRepository) ListByUser(ctx context.Context, discordUsername string, limit int) ([]domain.EloRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, match_id, discord_username, old_elo, new_elo, skill_level, created_at
		FROM elo_history WHERE discord_username = ?
		ORDER BY created_at DESC LIMIT ?`, discordUsername, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.EloRecord
	for rows.Next() {
		var rec domain.EloRecord
		err := rows.Scan(&rec.ID, &rec.MatchID, &rec.DiscordUsername,
			&rec.OldElo, &rec.NewElo, &rec.SkillLevel, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
