package repository

import (
	"context"
	"errors"
	"log/slog"

	"matchplayer/internal/models"
)

var errNilFailure = errors.New("repository: failure without error")

// API is the client surface the repository wraps. *matchplay.Client
// implements it.
type API interface {
	ListTournaments(ctx context.Context) ([]models.Tournament, error)
	GetTournament(ctx context.Context, id string) (models.Tournament, error)
	GetStandings(ctx context.Context, tournamentID string) ([]models.Standing, error)
	GetRounds(ctx context.Context, tournamentID, status string) ([]models.Round, error)
	GetRoundDetails(ctx context.Context, roundID string) (models.Round, error)
	SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) (models.SuggestionResponse, error)
}

// TournamentRepository presents API calls as results for UI code. Errors
// are carried unchanged; nothing is retried or cached.
type TournamentRepository interface {
	Tournaments(ctx context.Context) Result[[]models.Tournament]
	TournamentDetails(ctx context.Context, id string) Result[models.Tournament]
	TournamentStandings(ctx context.Context, tournamentID string) Result[[]models.Standing]
	TournamentRounds(ctx context.Context, tournamentID, status string) Result[[]models.Round]
	RoundDetails(ctx context.Context, roundID string) Result[models.Round]
	SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) Result[models.SuggestionResponse]
}

type tournamentRepository struct {
	api    API
	logger *slog.Logger
}

func New(api API, logger *slog.Logger) TournamentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &tournamentRepository{api: api, logger: logger}
}

func (r *tournamentRepository) Tournaments(ctx context.Context) Result[[]models.Tournament] {
	v, err := r.api.ListTournaments(ctx)
	return logged(r, "tournaments", capture(v, err))
}

func (r *tournamentRepository) TournamentDetails(ctx context.Context, id string) Result[models.Tournament] {
	v, err := r.api.GetTournament(ctx, id)
	return logged(r, "tournament details", capture(v, err), slog.String("tournament_id", id))
}

func (r *tournamentRepository) TournamentStandings(ctx context.Context, tournamentID string) Result[[]models.Standing] {
	v, err := r.api.GetStandings(ctx, tournamentID)
	return logged(r, "standings", capture(v, err), slog.String("tournament_id", tournamentID))
}

func (r *tournamentRepository) TournamentRounds(ctx context.Context, tournamentID, status string) Result[[]models.Round] {
	v, err := r.api.GetRounds(ctx, tournamentID, status)
	return logged(r, "rounds", capture(v, err), slog.String("tournament_id", tournamentID), slog.String("status", status))
}

func (r *tournamentRepository) RoundDetails(ctx context.Context, roundID string) Result[models.Round] {
	v, err := r.api.GetRoundDetails(ctx, roundID)
	return logged(r, "round details", capture(v, err), slog.String("round_id", roundID))
}

func (r *tournamentRepository) SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) Result[models.SuggestionResponse] {
	v, err := r.api.SuggestScore(ctx, roundID, s)
	return logged(r, "suggest score", capture(v, err), slog.String("round_id", roundID), slog.String("game_id", s.GameID))
}

func logged[T any](r *tournamentRepository, op string, res Result[T], attrs ...any) Result[T] {
	if err := res.Err(); err != nil {
		r.logger.Debug("repository call failed", append([]any{slog.String("op", op), slog.Any("error", err)}, attrs...)...)
	}
	return res
}
