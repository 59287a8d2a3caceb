package tgbot

import (
	"fmt"
	"strconv"
	"strings"

	"matchplayer/internal/models"
)

const helpText = `Commands:
/start - greeting and API key status
/key <api key> - save your Matchplay API key (or /key and send it next)
/clearkey - forget the stored key
/tournaments - list tournaments
/tournament <tournament id>
/standings <tournament id>
/rounds <tournament id> [status]
/round <round id>
/suggest <round id> <game id> <player id> <score>
/export <tournament id> - copy standings and rounds to the spreadsheet`

const failedText = "⚠️ Operation did not complete. Please try again."

func statusIcon(status string) string {
	switch status {
	case models.TournamentActive:
		return "🟢"
	case models.TournamentUpcoming:
		return "🕒"
	case models.TournamentCompleted:
		return "🏁"
	default:
		return "•"
	}
}

func formatTournament(t models.Tournament) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "%s %s\n", statusIcon(t.Status), t.Name)
	fmt.Fprintf(&b, " id: %s\n status: %s\n format: %s", t.ID, t.Status, t.Format)
	if t.DateStart != nil && *t.DateStart != "" {
		fmt.Fprintf(&b, "\n starts: %s", *t.DateStart)
	}
	return b.String()
}

func formatTournamentList(ts []models.Tournament) string {
	if len(ts) == 0 {
		return "No tournaments found."
	}
	b := strings.Builder{}
	b.WriteString("🏆 Tournaments\n")
	for _, t := range ts {
		fmt.Fprintf(&b, "\n%s %s (id: %s, %s)", statusIcon(t.Status), t.Name, t.ID, t.Format)
	}
	return b.String()
}

func formatStandings(standings []models.Standing) string {
	if len(standings) == 0 {
		return "No standings yet."
	}
	b := strings.Builder{}
	b.WriteString("📊 Standings\n")
	for _, s := range standings {
		fmt.Fprintf(&b, "\n%d. %s - %s pts (%d games)", s.Rank, s.PlayerName, formatPoints(s.Points), s.GamesPlayed)
	}
	return b.String()
}

func formatPoints(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func formatRounds(rounds []models.Round) string {
	if len(rounds) == 0 {
		return "No rounds found."
	}
	b := strings.Builder{}
	b.WriteString("🎯 Rounds\n")
	for _, r := range rounds {
		fmt.Fprintf(&b, "\n%s (id: %s) - %s, %d games", r.Name, r.ID, r.Status, len(r.Games))
	}
	return b.String()
}

func formatRound(r models.Round) string {
	b := strings.Builder{}
	fmt.Fprintf(&b, "🎯 %s (id: %s) - %s", r.Name, r.ID, r.Status)
	if len(r.Games) == 0 {
		b.WriteString("\nNo games.")
		return b.String()
	}
	for _, g := range r.Games {
		fmt.Fprintf(&b, "\n\n🕹 %s (game %s) - %s", g.ArenaName, g.ID, g.Status)
		if len(g.PlayerIDs) > 0 {
			fmt.Fprintf(&b, "\n players: %s", strings.Join(g.PlayerIDs, ", "))
		}
		for _, ps := range g.PlayerScores {
			fmt.Fprintf(&b, "\n %s: %d", ps.PlayerID, ps.Score)
		}
	}
	return b.String()
}

func formatSuggestion(resp models.SuggestionResponse) string {
	if resp.Success {
		return "✅ " + resp.MessageOr("Score suggestion accepted.")
	}
	return "❌ " + resp.MessageOr("Score suggestion rejected.")
}

// parseCommand splits "/cmd@bot a b" into "/cmd" and "a b".
func parseCommand(txt string) (string, string) {
	txt = strings.TrimSpace(txt)
	if !strings.HasPrefix(txt, "/") {
		return "", txt
	}
	cmd, args, _ := strings.Cut(txt, " ")
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func parseSuggestion(args string) (string, models.ScoreSuggestion, error) {
	f := strings.Fields(args)
	if len(f) != 4 {
		return "", models.ScoreSuggestion{}, fmt.Errorf("usage: /suggest <round id> <game id> <player id> <score>")
	}
	score, err := strconv.ParseInt(f[3], 10, 64)
	if err != nil {
		return "", models.ScoreSuggestion{}, fmt.Errorf("score must be a whole number, got %q", f[3])
	}
	return f[0], models.ScoreSuggestion{GameID: f[1], PlayerID: f[2], Score: score}, nil
}
