package sheets

import (
	"context"
	"fmt"
	"strings"

	sheetsv4 "google.golang.org/api/sheets/v4"

	"matchplayer/internal/models"
	"matchplayer/internal/util"
)

const (
	SheetStandings = "Standings"
	SheetRounds    = "Rounds"
)

// replaceSheet clears the used area of a sheet and writes rows from A1.
func (c *Client) replaceSheet(ctx context.Context, sheet string, rows [][]interface{}) error {
	_, err := c.srv.Spreadsheets.Values.Clear(c.spreadsheetID, sheet+"!A:Z", &sheetsv4.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	vr := &sheetsv4.ValueRange{Values: rows}
	_, err = c.srv.Spreadsheets.Values.Update(c.spreadsheetID, sheet+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}
	return nil
}

// ---------- Standings ----------

func (c *Client) ExportStandings(ctx context.Context, t models.Tournament, standings []models.Standing) error {
	return c.replaceSheet(ctx, SheetStandings, StandingsRows(t, standings, util.NowISO()))
}

// StandingsRows lays out a title row, a header row and one row per standing
// in server order.
func StandingsRows(t models.Tournament, standings []models.Standing, exportedAt string) [][]interface{} {
	rows := [][]interface{}{
		{t.Name, t.ID, t.Status, exportedAt},
		{"rank", "player_id", "player_name", "points", "games_played"},
	}
	for _, s := range standings {
		rows = append(rows, []interface{}{s.Rank, s.PlayerID, s.PlayerName, s.Points, s.GamesPlayed})
	}
	return rows
}

// ---------- Rounds ----------

func (c *Client) ExportRounds(ctx context.Context, t models.Tournament, rounds []models.Round) error {
	return c.replaceSheet(ctx, SheetRounds, RoundsRows(t, rounds, util.NowISO()))
}

// RoundsRows writes one row per game. Scores are rendered as
// "player:score" pairs because the id and score lists are not aligned.
func RoundsRows(t models.Tournament, rounds []models.Round, exportedAt string) [][]interface{} {
	rows := [][]interface{}{
		{t.Name, t.ID, t.Status, exportedAt},
		{"round_id", "round", "round_status", "game_id", "arena", "players", "scores", "game_status"},
	}
	for _, r := range rounds {
		if len(r.Games) == 0 {
			rows = append(rows, []interface{}{r.ID, r.Name, r.Status, "", "", "", "", ""})
			continue
		}
		for _, g := range r.Games {
			scores := make([]string, 0, len(g.PlayerScores))
			for _, ps := range g.PlayerScores {
				scores = append(scores, fmt.Sprintf("%s:%d", ps.PlayerID, ps.Score))
			}
			rows = append(rows, []interface{}{
				r.ID, r.Name, r.Status,
				g.ID, g.ArenaName, strings.Join(g.PlayerIDs, " "), strings.Join(scores, " "), g.Status,
			})
		}
	}
	return rows
}
