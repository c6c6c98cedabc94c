package discord

import (
	"fmt"
	"strings"

	"faceit-companion/internal/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	colorLive   = 0xE74C3C
	colorWin    = 0x2ECC71
	colorLoss   = 0x95A5A6
	colorNotice = 0x3498DB
)

const maxNicknameLen = 32

func scorecardEmbed(m *domain.Match) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s — %d:%d", m.MapName, m.CurrentResult[0], m.CurrentResult[1]),
		Description: playerList(m.Team.Players),
		Color:       colorLive,
		Footer:      &discordgo.MessageEmbedFooter{Text: m.MatchID},
	}
}

func finishEmbed(m *domain.Match, final domain.Score, win bool) *discordgo.MessageEmbed {
	verdict := "Defeat"
	color := colorLoss
	if win {
		verdict = "Victory"
		color = colorWin
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s %d:%d on %s", verdict, final[0], final[1], m.MapName),
		Description: playerList(m.Team.Players),
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: m.MatchID},
	}
}

func analysisEmbed(roster *domain.MatchRoster, ratings map[string]domain.PlayerRating) *discordgo.MessageEmbed {
	var b strings.Builder
	for _, p := range roster.Players {
		if r, ok := ratings[p.FaceitUsername]; ok {
			fmt.Fprintf(&b, "%s — %d (level %d)\n", p.FaceitUsername, r.Elo, r.SkillLevel)
		} else {
			fmt.Fprintf(&b, "%s\n", p.FaceitUsername)
		}
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Match found on %s", mapOrTBD(roster.MapName)),
		Description: b.String(),
		Color:       colorNotice,
	}
}

func playerList(players []domain.TrackedPlayer) string {
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.FaceitUsername
	}
	return strings.Join(names, ", ")
}

func mapOrTBD(mapName string) string {
	if mapName == "" {
		return "TBD"
	}
	return mapName
}

// eloNickname renders "name [1820]" within Discord's nickname limit.
func eloNickname(base string, elo int) string {
	suffix := fmt.Sprintf(" [%d]", elo)
	if len(base)+len(suffix) > maxNicknameLen {
		base = base[:maxNicknameLen-len(suffix)]
	}
	return base + suffix
}
