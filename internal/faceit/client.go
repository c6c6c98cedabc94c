package faceit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"faceit-companion/internal/config"
	"faceit-companion/internal/constants"
	"faceit-companion/internal/domain"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"github.com/valyala/fasthttp"
)

const defaultBaseURL = "https://open.faceit.com/data/v4"

// ErrNotFound is returned when the FACEIT API has no record for the
// requested match or player.
var ErrNotFound = errors.New("faceit: not found")

// UserSource lists the registered community members a roster is filtered
// against. Implemented by repository.TrackedUserRepository.
type UserSource interface {
	ListAll(ctx context.Context) ([]domain.TrackedUser, error)
}

type Client struct {
	apiKey  string
	baseURL string
	client  *fasthttp.Client
	users   UserSource
	logger  zerolog.Logger

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	Reset     int       `json:"reset"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewClient(cfg *config.Config, users UserSource, logger zerolog.Logger) *Client {
	return &Client{
		apiKey:  cfg.FaceitAPIKey,
		baseURL: defaultBaseURL,
		users:   users,
		logger:  logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

func (c *Client) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *Client) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-RateLimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-RateLimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	if reset := string(resp.Header.Peek("X-RateLimit-Reset")); reset != "" {
		if val, err := strconv.Atoi(reset); err == nil {
			c.rateLimit.Reset = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

// GetMatchRoster fetches the static match info and intersects the roster
// with the tracked-user registry. A nil roster with nil error means the
// match is not a supported one (wrong game) and must not be persisted.
func (c *Client) GetMatchRoster(ctx context.Context, matchID string) (*domain.MatchRoster, error) {
	match, err := doRequest[matchResponse](ctx, c, c.baseURL+"/matches/"+url.PathEscape(matchID))
	if err != nil {
		return nil, err
	}
	if match.Game != "cs2" {
		c.logger.Debug().Str("match_id", matchID).Str("game", match.Game).Msg("unsupported game, skipping match")
		return nil, nil
	}

	users, err := c.users.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracked users: %w", err)
	}
	byGameID := make(map[string]domain.TrackedUser, len(users))
	byNickname := make(map[string]domain.TrackedUser, len(users))
	for _, u := range users {
		if u.GamePlayerID != "" {
			byGameID[u.GamePlayerID] = u
		}
		byNickname[strings.ToLower(u.FaceitUsername)] = u
	}

	best := domain.MatchRoster{MapName: match.mapPick()}
	for _, faction := range []domain.Faction{domain.Faction1, domain.Faction2} {
		team, ok := match.Teams[string(faction)]
		if !ok {
			continue
		}
		var tracked []domain.TrackedPlayer
		for _, p := range team.Roster {
			u, ok := byGameID[p.GamePlayerID]
			if !ok {
				u, ok = byNickname[strings.ToLower(p.Nickname)]
			}
			if !ok {
				continue
			}
			tracked = append(tracked, domain.TrackedPlayer{
				FaceitID:        p.PlayerID,
				GamePlayerID:    p.GamePlayerID,
				DiscordUsername: u.DiscordUsername,
				FaceitUsername:  p.Nickname,
				PreviousElo:     u.PreviousElo,
			})
		}
		if len(tracked) > len(best.Players) {
			best.TeamID = team.FactionID
			best.Faction = faction
			best.LeaderID = team.Leader
			best.Players = tracked
		}
	}

	return &best, nil
}

// GetLiveScore returns the current score with the tracked faction first.
func (c *Client) GetLiveScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error) {
	return c.score(ctx, matchID, faction)
}

// GetFinalScore returns the final score with the tracked faction first.
func (c *Client) GetFinalScore(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error) {
	return c.score(ctx, matchID, faction)
}

func (c *Client) score(ctx context.Context, matchID string, faction domain.Faction) (domain.Score, error) {
	match, err := doRequest[matchResponse](ctx, c, c.baseURL+"/matches/"+url.PathEscape(matchID))
	if err != nil {
		return domain.Score{}, err
	}
	us := match.Results.Score[string(faction)]
	them := match.Results.Score[string(other(faction))]
	return domain.Score{us, them}, nil
}

// GetResult reports whether the tracked faction won the match.
func (c *Client) GetResult(ctx context.Context, matchID string, faction domain.Faction) (bool, error) {
	match, err := doRequest[matchResponse](ctx, c, c.baseURL+"/matches/"+url.PathEscape(matchID))
	if err != nil {
		return false, err
	}
	return match.Results.Winner == string(faction), nil
}

// GetPlayerRating resolves a player's current Elo and skill level. The
// identifier may be a numeric game player id or a FACEIT nickname; nickname
// lookups get one lower-cased retry since the platform is case sensitive
// while our registry is not. Transient failures are retried with a fixed
// backoff because this call gates the post-match Elo writeback.
func (c *Client) GetPlayerRating(ctx context.Context, identifier string) (*domain.PlayerRating, error) {
	var rating *domain.PlayerRating

	backoff := retry.WithMaxRetries(constants.CriticalRetryAttempts, retry.NewConstant(constants.CriticalRetryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		rating, err = c.fetchRating(ctx, identifier)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		return nil, err
	}
	return rating, nil
}

func (c *Client) fetchRating(ctx context.Context, identifier string) (*domain.PlayerRating, error) {
	player, err := doRequest[playerResponse](ctx, c, c.playerURL(identifier))
	if errors.Is(err, ErrNotFound) && !isNumeric(identifier) {
		lowered := strings.ToLower(identifier)
		if lowered != identifier {
			c.logger.Debug().Str("nickname", identifier).Msg("player not found, retrying lower-cased")
			player, err = doRequest[playerResponse](ctx, c, c.playerURL(lowered))
		}
	}
	if err != nil {
		return nil, err
	}

	game, ok := player.Games["cs2"]
	if !ok {
		return nil, ErrNotFound
	}
	return &domain.PlayerRating{
		PlayerID:   player.PlayerID,
		Elo:        game.FaceitElo,
		SkillLevel: game.SkillLevel,
	}, nil
}

func (c *Client) playerURL(identifier string) string {
	if isNumeric(identifier) {
		return c.baseURL + "/players?game=cs2&game_player_id=" + url.QueryEscape(identifier)
	}
	return c.baseURL + "/players?nickname=" + url.QueryEscape(identifier)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func other(f domain.Faction) domain.Faction {
	if f == domain.Faction1 {
		return domain.Faction2
	}
	return domain.Faction1
}

func doRequest[T any](ctx context.Context, client *Client, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Authorization", "Bearer "+client.apiKey)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := client.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := client.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	client.updateRateLimit(resp)

	if resp.StatusCode() == fasthttp.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("API error: %d", resp.StatusCode())
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type matchResponse struct {
	MatchID string               `json:"match_id"`
	Game    string               `json:"game"`
	Status  string               `json:"status"`
	Teams   map[string]matchTeam `json:"teams"`
	Voting  matchVoting          `json:"voting"`
	Results matchResults         `json:"results"`
}

type matchTeam struct {
	FactionID string        `json:"faction_id"`
	Name      string        `json:"name"`
	Leader    string        `json:"leader"`
	Roster    []matchPlayer `json:"roster"`
}

type matchPlayer struct {
	PlayerID       string `json:"player_id"`
	Nickname       string `json:"nickname"`
	GamePlayerID   string `json:"game_player_id"`
	GamePlayerName string `json:"game_player_name"`
	SkillLevel     int    `json:"game_skill_level"`
}

type matchVoting struct {
	Map struct {
		Pick []string `json:"pick"`
	} `json:"map"`
}

type matchResults struct {
	Winner string         `json:"winner"`
	Score  map[string]int `json:"score"`
}

func (m *matchResponse) mapPick() string {
	if len(m.Voting.Map.Pick) > 0 {
		return m.Voting.Map.Pick[0]
	}
	return ""
}

type playerResponse struct {
	PlayerID string                `json:"player_id"`
	Nickname string                `json:"nickname"`
	Games    map[string]playerGame `json:"games"`
}

type playerGame struct {
	FaceitElo  int `json:"faceit_elo"`
	SkillLevel int `json:"skill_level"`
}
