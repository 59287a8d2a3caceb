package server

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"matchplayer/internal/config"
	"matchplayer/internal/credentials"
	"matchplayer/internal/matchplay"
	"matchplayer/internal/models"
	"matchplayer/internal/repository"
	"matchplayer/internal/util"
)

type fakeAPI struct {
	standings []models.Standing
	err       error
}

func (f *fakeAPI) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	return nil, f.err
}

func (f *fakeAPI) GetTournament(ctx context.Context, id string) (models.Tournament, error) {
	return models.Tournament{ID: id}, f.err
}

func (f *fakeAPI) GetStandings(ctx context.Context, tournamentID string) ([]models.Standing, error) {
	return f.standings, f.err
}

func (f *fakeAPI) GetRounds(ctx context.Context, tournamentID, status string) ([]models.Round, error) {
	return nil, f.err
}

func (f *fakeAPI) GetRoundDetails(ctx context.Context, roundID string) (models.Round, error) {
	return models.Round{}, f.err
}

func (f *fakeAPI) SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) (models.SuggestionResponse, error) {
	return models.SuggestionResponse{}, f.err
}

func newTestServer(api *fakeAPI) (*httptest.Server, *credentials.MemoryStore) {
	return newTestServerOn("127.0.0.1:0", api)
}

func newTestServerOn(addr string, api *fakeAPI) (*httptest.Server, *credentials.MemoryStore) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	keys := credentials.NewMemoryStore()
	cfg := config.Config{HTTPAddr: addr, ExportSecret: "s3cret"}
	s := New(cfg, repository.New(api, logger), keys, logger)
	return httptest.NewServer(s), keys
}

func postKey(t *testing.T, target string, header http.Header) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(url.Values{"api_key": {"attacker"}}.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestHealthAndHome(t *testing.T) {
	srv, _ := newTestServer(&fakeAPI{})
	defer srv.Close()

	if code, body := get(t, srv.URL+"/health"); code != http.StatusOK || body != "OK" {
		t.Errorf("health = %d %q", code, body)
	}
	code, body := get(t, srv.URL+"/")
	if code != http.StatusOK || !strings.Contains(body, "Hello, ") || !strings.Contains(body, "not set") {
		t.Errorf("home = %d %q", code, body)
	}
}

func TestKeyFormSavesWithoutEcho(t *testing.T) {
	srv, keys := newTestServer(&fakeAPI{})
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/key", url.Values{"api_key": {"super-secret-abcd"}})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if strings.Contains(string(body), "super-secret") {
		t.Error("page echoed the key")
	}
	if key, ok, _ := keys.Get(context.Background()); !ok || key != "super-secret-abcd" {
		t.Errorf("stored key = %q, %v", key, ok)
	}

	_, body2 := get(t, srv.URL+"/key")
	if strings.Contains(body2, "super-secret") || !strings.Contains(body2, "abcd") {
		t.Errorf("form page = %q", body2)
	}

	resp, err = http.PostForm(srv.URL+"/key/clear", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if _, ok, _ := keys.Get(context.Background()); ok {
		t.Error("key not cleared")
	}
}

func TestKeyFormRejectsEmpty(t *testing.T) {
	srv, keys := newTestServer(&fakeAPI{})
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/key", url.Values{"api_key": {""}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if _, ok, _ := keys.Get(context.Background()); ok {
		t.Error("empty key stored")
	}
}

func exportURL(base, id, token string) string {
	q := url.Values{"tournament_id": {id}, "token": {token}}
	return base + "/export/standings.csv?" + q.Encode()
}

func TestExportStandingsCSV(t *testing.T) {
	api := &fakeAPI{standings: []models.Standing{
		{PlayerID: "p2", PlayerName: "Bo, Jr.", Rank: 1, Points: 12.5, GamesPlayed: 4},
		{PlayerID: "p1", PlayerName: "Ann", Rank: 2, Points: 10, GamesPlayed: 4},
	}}
	srv, _ := newTestServer(api)
	defer srv.Close()

	resp, err := http.Get(exportURL(srv.URL, "t1", util.ExportToken("s3cret", "t1")))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q", ct)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 || rows[1][2] != "Bo, Jr." || rows[1][3] != "12.5" || rows[2][1] != "p1" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExportRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(&fakeAPI{})
	defer srv.Close()

	if code, _ := get(t, exportURL(srv.URL, "t1", util.ExportToken("s3cret", "t2"))); code != http.StatusForbidden {
		t.Errorf("wrong token status = %d", code)
	}
	if code, _ := get(t, srv.URL+"/export/standings.csv?tournament_id=t1"); code != http.StatusBadRequest {
		t.Errorf("missing token status = %d", code)
	}
}

func TestExportMapsErrors(t *testing.T) {
	api := &fakeAPI{err: &matchplay.ServerError{Op: "get standings", StatusCode: http.StatusNotFound}}
	srv, _ := newTestServer(api)
	defer srv.Close()

	tok := util.ExportToken("s3cret", "t1")
	if code, _ := get(t, exportURL(srv.URL, "t1", tok)); code != http.StatusNotFound {
		t.Errorf("not found status = %d", code)
	}

	api.err = errors.New("connection refused")
	code, body := get(t, exportURL(srv.URL, "t1", tok))
	if code != http.StatusBadGateway || strings.Contains(body, "refused") {
		t.Errorf("failure = %d %q", code, body)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename(`a/b"c 1`); got != "a_b_c_1" {
		t.Errorf("got %q", got)
	}
}

func TestKeyRoutesRejectCrossSiteRequests(t *testing.T) {
	srv, keys := newTestServer(&fakeAPI{})
	defer srv.Close()
	ctx := context.Background()
	_ = keys.Set(ctx, "original")

	rejected := []http.Header{
		{"Origin": {"https://evil.example"}},
		{"Origin": {"null"}},
		{"Sec-Fetch-Site": {"cross-site"}},
		{"Sec-Fetch-Site": {"same-site"}, "Origin": {srv.URL}},
		{"X-Forwarded-For": {"203.0.113.9"}},
	}
	for _, h := range rejected {
		if code := postKey(t, srv.URL+"/key", h); code != http.StatusForbidden {
			t.Errorf("POST /key with %v: status = %d, want 403", h, code)
		}
		if code := postKey(t, srv.URL+"/key/clear", h); code != http.StatusForbidden {
			t.Errorf("POST /key/clear with %v: status = %d, want 403", h, code)
		}
	}
	if key, ok, _ := keys.Get(ctx); !ok || key != "original" {
		t.Fatalf("stored key = %q, %v; want it untouched", key, ok)
	}

	if code := postKey(t, srv.URL+"/key", http.Header{"Origin": {srv.URL}, "Sec-Fetch-Site": {"same-origin"}}); code != http.StatusOK {
		t.Errorf("same-origin POST status = %d", code)
	}
	if key, _, _ := keys.Get(ctx); key != "attacker" {
		t.Errorf("same-origin save did not store, key = %q", key)
	}
}

func TestKeyRoutesAbsentOnPublicAddress(t *testing.T) {
	srv, keys := newTestServerOn("0.0.0.0:8080", &fakeAPI{})
	defer srv.Close()

	if code, _ := get(t, srv.URL+"/key"); code != http.StatusNotFound {
		t.Errorf("GET /key status = %d, want 404", code)
	}
	if code := postKey(t, srv.URL+"/key", nil); code != http.StatusNotFound && code != http.StatusMethodNotAllowed {
		t.Errorf("POST /key status = %d", code)
	}
	if _, ok, _ := keys.Get(context.Background()); ok {
		t.Error("key stored through a public listener")
	}
	if _, body := get(t, srv.URL+"/"); strings.Contains(body, `href="/key"`) {
		t.Error("home page links to the disabled key form")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:8080": true,
		"[::1]:8080":     true,
		"localhost:80":   true,
		":8080":          false,
		"0.0.0.0:8080":   false,
		"10.0.0.5:8080":  false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Errorf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
