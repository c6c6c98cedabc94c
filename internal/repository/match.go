package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"faceit-companion/internal/domain"

	"github.com/rs/zerolog"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("repository: not found")

// MatchRepository persists at most one row per in-progress match. Rows are
// deleted once the terminal transition has completed its side effects.
type MatchRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewMatchRepository(db *sql.DB, logger zerolog.Logger) *MatchRepository {
	return &MatchRepository{db: db, logger: logger}
}

// Create inserts the match if no row with its id exists yet and reports
// whether a row was inserted. A duplicate create is a no-op, not an error.
func (r *MatchRepository) Create(ctx context.Context, m *domain.Match) (bool, error) {
	players, err := json.Marshal(m.Team.Players)
	if err != nil {
		return false, fmt.Errorf("failed to encode players: %w", err)
	}

	now := time.Now()
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO matches
			(match_id, map_name, team_id, faction, players, voice_channel_id,
			 scorecard_message_id, score_us, score_them, processed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		m.MatchID, m.MapName, m.Team.TeamID, string(m.Team.Faction), string(players),
		m.VoiceChannelID, m.ScorecardMessageID, m.CurrentResult[0], m.CurrentResult[1], now, now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert match %s: %w", m.MatchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MatchRepository) Get(ctx context.Context, matchID string) (*domain.Match, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT match_id, map_name, team_id, faction, players, voice_channel_id,
		       scorecard_message_id, score_us, score_them, processed, created_at, updated_at
		FROM matches WHERE match_id = ?`, matchID)
	return scanMatch(row)
}

func (r *MatchRepository) Exists(ctx context.Context, matchID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM matches WHERE match_id = ?`, matchID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MatchRepository) IsProcessed(ctx context.Context, matchID string) (bool, error) {
	var processed bool
	err := r.db.QueryRowContext(ctx,
		`SELECT processed FROM matches WHERE match_id = ?`, matchID).Scan(&processed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return processed, nil
}

// MarkProcessed flips the processed flag and reports whether this caller won
// the flip. The conditional update is what serializes concurrent duplicate
// deliveries of a terminal event: only one caller sees true.
func (r *MatchRepository) MarkProcessed(ctx context.Context, matchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET processed = 1, updated_at = ?
		WHERE match_id = ? AND processed = 0`, time.Now(), matchID)
	if err != nil {
		return false, fmt.Errorf("failed to mark match %s processed: %w", matchID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MatchRepository) UpdateResult(ctx context.Context, matchID string, score domain.Score) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE matches SET score_us = ?, score_them = ?, updated_at = ?
		WHERE match_id = ?`, score[0], score[1], time.Now(), matchID)
	if err != nil {
		return fmt.Errorf("failed to update result for match %s: %w", matchID, err)
	}
	return nil
}

func (r *MatchRepository) SetScorecardMessage(ctx context.Context, matchID, messageID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE matches SET scorecard_message_id = ?, updated_at = ?
		WHERE match_id = ?`, messageID, time.Now(), matchID)
	if err != nil {
		return fmt.Errorf("failed to set scorecard for match %s: %w", matchID, err)
	}
	return nil
}

// ListActive returns all matches that have not reached a terminal
// transition. The poller uses this as the source of truth for its fan-out,
// so the active set survives restarts.
func (r *MatchRepository) ListActive(ctx context.Context) ([]domain.Match, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT match_id, map_name, team_id, faction, players, voice_channel_id,
		       scorecard_message_id, score_us, score_them, processed, created_at, updated_at
		FROM matches WHERE processed = 0 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

func (r *MatchRepository) Delete(ctx context.Context, matchID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM matches WHERE match_id = ?`, matchID)
	if err != nil {
		return fmt.Errorf("failed to delete match %s: %w", matchID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*domain.Match, error) {
	var m domain.Match
	var faction, players string
	err := row.Scan(
		&m.MatchID, &m.MapName, &m.Team.TeamID, &faction, &players,
		&m.VoiceChannelID, &m.ScorecardMessageID,
		&m.CurrentResult[0], &m.CurrentResult[1], &m.Processed,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Team.Faction = domain.Faction(faction)
	if err := json.Unmarshal([]byte(players), &m.Team.Players); err != nil {
		return nil, fmt.Errorf("failed to decode players for match %s: %w", m.MatchID, err)
	}
	return &m, nil
}
