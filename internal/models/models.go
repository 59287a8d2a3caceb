package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is wrapped by decode errors for records that lack a
// required key or carry null in it.
var ErrMissingField = errors.New("missing required field")

// Tournament statuses as the server reports them. Status stays a plain
// string so unknown values pass through untouched.
const (
	TournamentActive    = "active"
	TournamentUpcoming  = "upcoming"
	TournamentCompleted = "completed"
)

type Tournament struct {
	ID        string  `json:"tournamentId"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Format    string  `json:"format"`
	DateStart *string `json:"dateStart,omitempty"` // ISO 8601
}

func (t *Tournament) UnmarshalJSON(b []byte) error {
	type plain Tournament
	var p plain
	if err := decodeRequired(b, &p, "tournament", "tournamentId", "name", "status", "format"); err != nil {
		return err
	}
	*t = Tournament(p)
	return nil
}

type Player struct {
	ID        string `json:"playerId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (pl *Player) UnmarshalJSON(b []byte) error {
	type plain Player
	var p plain
	if err := decodeRequired(b, &p, "player", "playerId", "firstName", "lastName"); err != nil {
		return err
	}
	*pl = Player(p)
	return nil
}

// Standing rank is assigned by the server and never recomputed here.
type Standing struct {
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	Rank        int     `json:"rank"`
	Points      float64 `json:"points"`
	GamesPlayed int     `json:"gamesPlayed"`
}

func (s *Standing) UnmarshalJSON(b []byte) error {
	type plain Standing
	var p plain
	if err := decodeRequired(b, &p, "standing", "playerId", "playerName", "rank", "points", "gamesPlayed"); err != nil {
		return err
	}
	*s = Standing(p)
	return nil
}

type Round struct {
	ID     string `json:"roundId"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Games  []Game `json:"games"`
}

func (r *Round) UnmarshalJSON(b []byte) error {
	type plain Round
	var p plain
	if err := decodeRequired(b, &p, "round", "roundId", "name", "status"); err != nil {
		return err
	}
	if p.Games == nil {
		p.Games = []Game{}
	}
	*r = Round(p)
	return nil
}

// Game keeps PlayerIDs and PlayerScores as the server sent them; the two
// lists are not aligned by index.
type Game struct {
	ID           string        `json:"gameId"`
	ArenaName    string        `json:"arenaName"`
	ArenaID      *string       `json:"arenaId,omitempty"`
	PlayerIDs    []string      `json:"playerIds"`
	PlayerScores []PlayerScore `json:"playerScores"`
	Status       string        `json:"status"`
}

func (g *Game) UnmarshalJSON(b []byte) error {
	type plain Game
	var p plain
	if err := decodeRequired(b, &p, "game", "gameId", "arenaName", "status"); err != nil {
		return err
	}
	if p.PlayerIDs == nil {
		p.PlayerIDs = []string{}
	}
	if p.PlayerScores == nil {
		p.PlayerScores = []PlayerScore{}
	}
	*g = Game(p)
	return nil
}

type PlayerScore struct {
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

func (ps *PlayerScore) UnmarshalJSON(b []byte) error {
	type plain PlayerScore
	var p plain
	if err := decodeRequired(b, &p, "player score", "playerId", "score"); err != nil {
		return err
	}
	*ps = PlayerScore(p)
	return nil
}

// ScoreSuggestion is a proposed score for one player in one game. The server
// decides whether it is accepted.
type ScoreSuggestion struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

type SuggestionResponse struct {
	Success bool    `json:"success"`
	Message *string `json:"message,omitempty"`
}

func (r *SuggestionResponse) UnmarshalJSON(b []byte) error {
	type plain SuggestionResponse
	var p plain
	if err := decodeRequired(b, &p, "suggestion response", "success"); err != nil {
		return err
	}
	*r = SuggestionResponse(p)
	return nil
}

// MessageOr returns the server message, or fallback when none was sent.
func (r SuggestionResponse) MessageOr(fallback string) string {
	if r.Message == nil || *r.Message == "" {
		return fallback
	}
	return *r.Message
}

// decodeRequired decodes b into v after checking that every listed key is
// present with a non-null value. A null object fails the same way.
func decodeRequired(b []byte, v any, record string, keys ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("%s: %w: record is null", record, ErrMissingField)
	}
	for _, k := range keys {
		raw, ok := fields[k]
		if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			return fmt.Errorf("%s: %w %q", record, ErrMissingField, k)
		}
	}
	return json.Unmarshal(b, v)
}
