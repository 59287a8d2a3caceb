package matchplay

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIKeyHeader is the header the Matchplay API authenticates with.
const APIKeyHeader = "X-Api-Key"

// KeySource supplies the API key at request time. credentials.Store
// satisfies it.
type KeySource interface {
	Get(ctx context.Context) (string, bool, error)
}

// apiKeyTransport is the only place the key is attached. It reads the source
// on every request so a key saved or cleared between calls takes effect on
// the next one.
type apiKeyTransport struct {
	base http.RoundTripper
	keys KeySource
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.keys == nil {
		return t.base.RoundTrip(req)
	}
	key, ok, err := t.keys.Get(req.Context())
	if err != nil {
		closeBody(req)
		return nil, fmt.Errorf("read api key: %w", err)
	}
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set(APIKeyHeader, key)
	return t.base.RoundTrip(r)
}

type loggingTransport struct {
	base   http.RoundTripper
	logger *slog.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := uuid.NewString()
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	attrs := []any{
		slog.String("request_id", id),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		t.logger.Debug("matchplay request failed", append(attrs, slog.Any("error", err))...)
		return nil, err
	}
	t.logger.Debug("matchplay request", append(attrs, slog.Int("status", resp.StatusCode))...)
	return resp, nil
}

// RoundTrippers must close the request body even on error.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
