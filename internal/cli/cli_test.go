package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"matchplayer/internal/credentials"
	"matchplayer/internal/matchplay"
	"matchplayer/internal/models"
	"matchplayer/internal/repository"
)

type fakeAPI struct {
	tournaments []models.Tournament
	standings   []models.Standing
	rounds      []models.Round
	round       models.Round
	suggestion  models.SuggestionResponse
	err         error

	gotStatus     string
	gotRoundID    string
	gotSuggestion models.ScoreSuggestion
}

func (f *fakeAPI) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	return f.tournaments, f.err
}

func (f *fakeAPI) GetTournament(ctx context.Context, id string) (models.Tournament, error) {
	for _, t := range f.tournaments {
		if t.ID == id {
			return t, f.err
		}
	}
	return models.Tournament{}, &matchplay.ServerError{Op: "get tournament", StatusCode: 404}
}

func (f *fakeAPI) GetStandings(ctx context.Context, tournamentID string) ([]models.Standing, error) {
	return f.standings, f.err
}

func (f *fakeAPI) GetRounds(ctx context.Context, tournamentID, status string) ([]models.Round, error) {
	f.gotStatus = status
	return f.rounds, f.err
}

func (f *fakeAPI) GetRoundDetails(ctx context.Context, roundID string) (models.Round, error) {
	return f.round, f.err
}

func (f *fakeAPI) SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) (models.SuggestionResponse, error) {
	f.gotRoundID = roundID
	f.gotSuggestion = s
	return f.suggestion, f.err
}

type harness struct {
	api    *fakeAPI
	keys   *credentials.MemoryStore
	stdout bytes.Buffer
	stderr bytes.Buffer
	stdin  string
	clip   string
}

func (h *harness) run(args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env := Env{
		Repo:          repository.New(h.api, logger),
		Keys:          h.keys,
		Stdin:         strings.NewReader(h.stdin),
		Stdout:        &h.stdout,
		Stderr:        &h.stderr,
		ReadClipboard: func() (string, error) { return h.clip, nil },
	}
	return Run(context.Background(), env, args)
}

func newHarness(api *fakeAPI) *harness {
	return &harness{api: api, keys: credentials.NewMemoryStore()}
}

func TestGreet(t *testing.T) {
	h := newHarness(&fakeAPI{})
	if code := h.run("greet"); code != ExitOK {
		t.Fatalf("exit = %d, stderr %q", code, h.stderr.String())
	}
	if !strings.HasPrefix(h.stdout.String(), "Hello, ") {
		t.Errorf("stdout = %q", h.stdout.String())
	}
}

func TestKeyLifecycle(t *testing.T) {
	h := newHarness(&fakeAPI{})
	ctx := context.Background()

	if code := h.run("key", "set", "my-api-key-1234"); code != ExitOK {
		t.Fatalf("set exit = %d: %s", code, h.stderr.String())
	}
	if strings.Contains(h.stdout.String(), "my-api-key") {
		t.Errorf("set echoed the key: %q", h.stdout.String())
	}
	if k, _, _ := h.keys.Get(ctx); k != "my-api-key-1234" {
		t.Errorf("stored = %q", k)
	}

	h.run("-json", "key", "status")
	var st struct {
		Configured bool   `json:"configured"`
		Key        string `json:"key"`
	}
	if err := json.Unmarshal(h.stdout.Bytes(), &st); err != nil {
		t.Fatalf("status json: %v (%q)", err, h.stdout.String())
	}
	if !st.Configured || !strings.HasSuffix(st.Key, "1234") || strings.Contains(st.Key, "my-api") {
		t.Errorf("status = %+v", st)
	}

	if code := h.run("key", "clear"); code != ExitOK {
		t.Fatalf("clear exit = %d", code)
	}
	h.run("key", "status")
	if !strings.Contains(h.stdout.String(), "not set") {
		t.Errorf("status after clear = %q", h.stdout.String())
	}
}

func TestKeySetFromClipboardAndStdin(t *testing.T) {
	h := newHarness(&fakeAPI{})
	ctx := context.Background()

	h.clip = "  clip-key\n"
	if code := h.run("key", "set", "-clipboard"); code != ExitOK {
		t.Fatalf("exit = %d: %s", code, h.stderr.String())
	}
	if k, _, _ := h.keys.Get(ctx); k != "clip-key" {
		t.Errorf("stored = %q", k)
	}

	h.stdin = "stdin-key\n"
	if code := h.run("key", "set"); code != ExitOK {
		t.Fatalf("exit = %d: %s", code, h.stderr.String())
	}
	if k, _, _ := h.keys.Get(ctx); k != "stdin-key" {
		t.Errorf("stored = %q", k)
	}

	h.stdin = "   "
	if code := h.run("key", "set"); code != ExitFailed {
		t.Errorf("blank key exit = %d", code)
	}
	if code := h.run("key", "set", "-clipboard", "both"); code != ExitUsage {
		t.Errorf("conflicting input exit = %d", code)
	}
}

func TestTournamentsText(t *testing.T) {
	start := "2025-03-01"
	h := newHarness(&fakeAPI{tournaments: []models.Tournament{
		{ID: "t1", Name: "Spring League", Status: "active", Format: "Group Match Play", DateStart: &start},
		{ID: "t2", Name: "Fall", Status: "completed", Format: "Swiss"},
	}})
	if code := h.run("tournaments"); code != ExitOK {
		t.Fatalf("exit = %d: %s", code, h.stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "2025-03-01") {
		t.Errorf("output = %q", h.stdout.String())
	}
}

func TestTournamentsJSONPreservesOrder(t *testing.T) {
	h := newHarness(&fakeAPI{tournaments: []models.Tournament{{ID: "b"}, {ID: "a"}}})
	h.run("-json", "tournaments")
	var got []models.Tournament
	if err := json.Unmarshal(h.stdout.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Errorf("got %+v", got)
	}
}

func TestTournamentNotFound(t *testing.T) {
	h := newHarness(&fakeAPI{})
	if code := h.run("tournament", "nope"); code != ExitFailed {
		t.Errorf("exit = %d", code)
	}
	if !strings.Contains(h.stderr.String(), "404") {
		t.Errorf("stderr = %q", h.stderr.String())
	}
}

func TestRoundsStatusFlag(t *testing.T) {
	api := &fakeAPI{rounds: []models.Round{{ID: "r1", Name: "Round 1", Status: "active", Games: []models.Game{}}}}
	h := newHarness(api)
	if code := h.run("rounds", "-status", "active", "t1"); code != ExitOK {
		t.Fatalf("exit = %d: %s", code, h.stderr.String())
	}
	if api.gotStatus != "active" {
		t.Errorf("status = %q", api.gotStatus)
	}
	h.run("rounds", "t1")
	if api.gotStatus != "" {
		t.Errorf("status = %q, want none", api.gotStatus)
	}
}

func TestRoundShowsScores(t *testing.T) {
	h := newHarness(&fakeAPI{round: models.Round{ID: "r1", Name: "Round 1", Games: []models.Game{{
		ID: "g1", ArenaName: "Twilight Zone", PlayerIDs: []string{"p1", "p2"},
		PlayerScores: []models.PlayerScore{{PlayerID: "p2", Score: 1500}},
	}}}})
	h.run("round", "r1")
	if !strings.Contains(h.stdout.String(), "p2:1500") || !strings.Contains(h.stdout.String(), "p1,p2") {
		t.Errorf("output = %q", h.stdout.String())
	}
}

func TestSuggest(t *testing.T) {
	api := &fakeAPI{suggestion: models.SuggestionResponse{Success: true}}
	h := newHarness(api)
	if code := h.run("suggest", "r1", "g1", "p1", "4200"); code != ExitOK {
		t.Fatalf("exit = %d: %s", code, h.stderr.String())
	}
	if api.gotRoundID != "r1" || api.gotSuggestion != (models.ScoreSuggestion{GameID: "g1", PlayerID: "p1", Score: 4200}) {
		t.Errorf("sent %s %+v", api.gotRoundID, api.gotSuggestion)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != "Score suggestion accepted." {
		t.Errorf("stdout = %q", got)
	}

	msg := "Game already completed"
	api.suggestion = models.SuggestionResponse{Success: false, Message: &msg}
	if code := h.run("suggest", "r1", "g1", "p1", "4200"); code != ExitFailed {
		t.Errorf("rejected exit = %d", code)
	}
	if !strings.Contains(h.stdout.String(), msg) {
		t.Errorf("stdout = %q", h.stdout.String())
	}

	if code := h.run("suggest", "r1", "g1", "p1", "many"); code != ExitUsage {
		t.Errorf("bad score exit = %d", code)
	}
}

func TestErrorsAndUsage(t *testing.T) {
	h := newHarness(&fakeAPI{err: errors.New("dial tcp: refused")})
	if code := h.run("standings", "t1"); code != ExitFailed {
		t.Errorf("exit = %d", code)
	}
	if code := h.run(); code != ExitUsage {
		t.Errorf("no command exit = %d", code)
	}
	if code := h.run("frobnicate"); code != ExitUsage {
		t.Errorf("unknown command exit = %d", code)
	}
	if code := h.run("standings"); code != ExitUsage {
		t.Errorf("missing id exit = %d", code)
	}
}
