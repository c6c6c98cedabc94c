package domain

import (
	"time"
)

// Faction labels the two sides of a FACEIT match as the data provider
// reports them.
type Faction string

const (
	Faction1 Faction = "faction1"
	Faction2 Faction = "faction2"
)

// Score is a round-score tuple with the tracked team's score first.
type Score [2]int

// TrackedPlayer is the snapshot of a registered community member embedded in
// a Match at creation time. PreviousElo is the rating at match start, kept so
// the delta can be computed when the match ends.
type TrackedPlayer struct {
	FaceitID        string
	GamePlayerID    string
	DiscordUsername string
	FaceitUsername  string
	PreviousElo     int
}

// TrackedTeam is the faction of a match containing registered players.
type TrackedTeam struct {
	TeamID  string
	Faction Faction
	Players []TrackedPlayer
}

// Match is one in-progress match being reflected into Discord. There is at
// most one row per match id; the row is deleted once the terminal transition
// has run its side effects.
type Match struct {
	MatchID string
	MapName string
	Team    TrackedTeam

	// VoiceChannelID is set when tracked players were found co-located in a
	// voice channel at match start. A match keeps the channel it started in,
	// even if players later move.
	VoiceChannelID string

	// ScorecardMessageID identifies the Discord message showing the live
	// score. Replaced when the scorecard has to be recreated.
	ScorecardMessageID string

	// Processed flips false to true exactly once, before terminal side
	// effects run, so duplicate webhook deliveries become no-ops.
	Processed bool

	// CurrentResult is the last score pushed to Discord, used to suppress
	// redundant updates.
	CurrentResult Score

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackedUser is a row of the long-lived registry of community members. The
// lifecycle core reads it to build match snapshots and writes back Elo after
// a finished match; rows are created and removed elsewhere.
type TrackedUser struct {
	DiscordUsername string
	FaceitUsername  string
	GamePlayerID    string
	FaceitID        string
	PreviousElo     int
	MonthlyStartElo int
	MonthlyGames    int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MatchRoster is the static match information fetched from the data provider
// when a match becomes ready: the picked map and the tracked side of it.
type MatchRoster struct {
	MapName  string
	TeamID   string
	Faction  Faction
	LeaderID string
	Players  []TrackedPlayer
}

// PlayerRating is a player's current standing on the platform.
type PlayerRating struct {
	PlayerID   string
	Elo        int
	SkillLevel int
}

// EloRecord is one append-only Elo delta observed after a finished match.
type EloRecord struct {
	ID              string
	MatchID         string
	DiscordUsername string
	OldElo          int
	NewElo          int
	SkillLevel      int
	CreatedAt       time.Time
}

// Delta is the Elo change this record represents.
func (r EloRecord) Delta() int {
	return r.NewElo - r.OldElo
}
