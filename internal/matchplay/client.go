// Package matchplay is a typed client for the Matchplay Events REST API.
//
// Every call takes a context, sends Accept: application/json, and returns
// one of three error types on failure: *TransportError when no response was
// received, *ServerError for any non-2xx status (errors.Is(err, ErrNotFound)
// holds for 404), and *DecodeError when the body is not the expected JSON.
// Error-shaped bodies on non-2xx responses are never decoded as results.
//
// The API key, when one is configured, is attached by a RoundTripper that
// reads it from a KeySource on every request.
package matchplay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"matchplayer/internal/models"
)

const (
	DefaultBaseURL = "https://app.matchplay.events/api"
	DefaultTimeout = 30 * time.Second

	maxBodyBytes  = 10 << 20
	maxErrorBytes = 512
)

var errEmptyBody = errors.New("empty or null body")

type Client struct {
	baseURL   string
	http      *http.Client
	userAgent string
	logger    *slog.Logger
}

type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the underlying client. Its Transport is wrapped, not
// replaced; the client value itself is copied.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.http = &cp
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New builds a client. keys may be nil, in which case no API key header is
// ever sent.
func New(keys KeySource, opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		http:      &http.Client{Timeout: DefaultTimeout},
		userAgent: "matchplayer/0.1",
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http.Timeout <= 0 {
		c.http.Timeout = DefaultTimeout
	}
	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.http.Transport = &loggingTransport{
		base:   &apiKeyTransport{base: base, keys: keys},
		logger: c.logger,
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) ListTournaments(ctx context.Context) ([]models.Tournament, error) {
	var out []models.Tournament
	if err := c.do(ctx, http.MethodGet, "/tournaments", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Tournament{}
	}
	return out, nil
}

func (c *Client) GetTournament(ctx context.Context, id string) (models.Tournament, error) {
	var out models.Tournament
	err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

func (c *Client) GetStandings(ctx context.Context, tournamentID string) ([]models.Standing, error) {
	var out []models.Standing
	if err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+"/standings", nil, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Standing{}
	}
	return out, nil
}

// GetRounds lists a tournament's rounds. An empty status sends no query
// parameter at all.
func (c *Client) GetRounds(ctx context.Context, tournamentID, status string) ([]models.Round, error) {
	var q url.Values
	if status != "" {
		q = url.Values{"status": {status}}
	}
	var out []models.Round
	if err := c.do(ctx, http.MethodGet, "/tournaments/"+url.PathEscape(tournamentID)+"/rounds", q, nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Round{}
	}
	return out, nil
}

func (c *Client) GetRoundDetails(ctx context.Context, roundID string) (models.Round, error) {
	var out models.Round
	err := c.do(ctx, http.MethodGet, "/rounds/"+url.PathEscape(roundID), nil, nil, &out)
	if err == nil && out.Games == nil {
		out.Games = []models.Game{}
	}
	return out, err
}

// SuggestScore submits a proposed score. The response is the server's
// verdict; a 2xx reply with success=false is returned as a normal result.
func (c *Client) SuggestScore(ctx context.Context, roundID string, s models.ScoreSuggestion) (models.SuggestionResponse, error) {
	var out models.SuggestionResponse
	err := c.do(ctx, http.MethodPost, "/rounds/"+url.PathEscape(roundID)+"/scores/suggest", nil, s, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	op := method + " " + path

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &DecodeError{Op: op, Err: errEmptyBody}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

// IsTransient reports whether err came from the network rather than the
// server's answer. Callers use it only to pick a message; nothing retries.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
