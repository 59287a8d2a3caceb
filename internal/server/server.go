package server

import (
	"encoding/csv"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matchplayer/internal/config"
	"matchplayer/internal/credentials"
	"matchplayer/internal/matchplay"
	"matchplayer/internal/repository"
	"matchplayer/internal/util"
)

// Server is the local web UI: greeting, API key form and the signed CSV
// export the bot links to.
type Server struct {
	cfg    config.Config
	repo   repository.TournamentRepository
	keys   credentials.Store
	logger *slog.Logger
	router chi.Router
}

func New(cfg config.Config, repo repository.TournamentRepository, keys credentials.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		repo:   repo,
		keys:   keys,
		logger: logger.With(slog.String("component", "http")),
		router: chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// HTTPServer wraps the router in an *http.Server listening on cfg.HTTPAddr.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)
	s.router.Get("/export/standings.csv", s.handleExportStandings)

	// The key can only be managed from this machine. On any other bind
	// address the routes do not exist.
	if s.keyRoutesEnabled() {
		s.router.Group(func(r chi.Router) {
			r.Use(localOnly)
			r.Use(sameOrigin)
			r.Get("/key", s.handleKeyForm)
			r.Post("/key", s.handleKeySave)
			r.Post("/key/clear", s.handleKeyClear)
		})
	}

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) keyRoutesEnabled() bool {
	return isLoopbackAddr(s.cfg.HTTPAddr)
}

func isLoopbackAddr(hostport string) bool {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// localOnly rejects requests that arrive from another host or through a
// forwarding proxy.
func localOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Forwarded-For") != "" || r.Header.Get("Forwarded") != "" || !isLoopbackAddr(r.RemoteAddr) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// sameOrigin rejects state-changing requests sent by another site, using
// Sec-Fetch-Site when the browser sends it and Origin otherwise.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}
		if site := r.Header.Get("Sec-Fetch-Site"); site != "" {
			if site != "same-origin" && site != "none" {
				http.Error(w, "cross-origin request rejected", http.StatusForbidden)
				return
			}
		} else if origin := r.Header.Get("Origin"); origin != "" {
			u, err := url.Parse(origin)
			if err != nil || u.Host != r.Host {
				http.Error(w, "cross-origin request rejected", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ---------- Pages ----------

var pages = template.Must(template.New("layout").Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>Matchplay</title></head><body>
<h2>{{.Greeting}}</h2>
{{if .Notice}}<p><b>{{.Notice}}</b></p>{{end}}
{{if .KeyForm}}
<form method="post" action="/key">
  <label>Matchplay API key <input type="password" name="api_key" autocomplete="off"></label>
  <button type="submit">Save</button>
</form>
<form method="post" action="/key/clear"><button type="submit">Clear stored key</button></form>
{{end}}
<p>API key: {{if .Masked}}{{.Masked}}{{else}}not set{{end}}</p>
<p><a href="/">Home</a>{{if .KeyAdmin}} | <a href="/key">API key</a>{{end}}</p>
</body></html>`))

type pageData struct {
	Greeting string
	Notice   string
	KeyForm  bool
	KeyAdmin bool
	Masked   string
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	data.Greeting = util.Greeting()
	data.KeyAdmin = s.keyRoutesEnabled()
	key, ok, err := s.keys.Get(r.Context())
	if err != nil {
		s.logger.Warn("read api key", slog.Any("error", err))
	} else if ok {
		data.Masked = util.MaskKey(key)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := pages.Execute(w, data); err != nil {
		s.logger.Error("render page", slog.Any("error", err))
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{})
}

func (s *Server) handleKeyForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, pageData{KeyForm: true})
}

func (s *Server) handleKeySave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, pageData{KeyForm: true, Notice: "Invalid form."})
		return
	}
	key := r.PostFormValue("api_key")
	if key == "" {
		s.render(w, r, http.StatusBadRequest, pageData{KeyForm: true, Notice: "The key is empty."})
		return
	}
	if err := s.keys.Set(r.Context(), key); err != nil {
		s.logger.Error("save api key", slog.Any("error", err))
		s.render(w, r, http.StatusInternalServerError, pageData{KeyForm: true, Notice: "Operation did not complete."})
		return
	}
	s.render(w, r, http.StatusOK, pageData{KeyForm: true, Notice: "API key saved."})
}

func (s *Server) handleKeyClear(w http.ResponseWriter, r *http.Request) {
	if err := s.keys.Clear(r.Context()); err != nil {
		s.logger.Error("clear api key", slog.Any("error", err))
		s.render(w, r, http.StatusInternalServerError, pageData{KeyForm: true, Notice: "Operation did not complete."})
		return
	}
	s.render(w, r, http.StatusOK, pageData{KeyForm: true, Notice: "API key removed."})
}

// ---------- CSV export (link with token = HMAC) ----------

func (s *Server) handleExportStandings(w http.ResponseWriter, r *http.Request) {
	tournamentID := r.URL.Query().Get("tournament_id")
	token := r.URL.Query().Get("token")
	if tournamentID == "" || token == "" {
		http.Error(w, "tournament_id and token required", http.StatusBadRequest)
		return
	}
	if !util.ValidExportToken(s.cfg.ExportSecret, tournamentID, token) {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}

	standings, err := s.repo.TournamentStandings(r.Context(), tournamentID).Get()
	if err != nil {
		s.logger.Warn("export standings", slog.String("tournament_id", tournamentID), slog.Any("error", err))
		if errors.Is(err, matchplay.ErrNotFound) {
			http.Error(w, "tournament not found", http.StatusNotFound)
			return
		}
		http.Error(w, "operation did not complete", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="standings_`+sanitizeFilename(tournamentID)+`.csv"`)
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"rank", "player_id", "player_name", "points", "games_played"})
	for _, st := range standings {
		_ = cw.Write([]string{
			strconv.Itoa(st.Rank),
			st.PlayerID,
			st.PlayerName,
			strconv.FormatFloat(st.Points, 'f', -1, 64),
			strconv.Itoa(st.GamesPlayed),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Warn("write csv", slog.Any("error", err))
	}
}

func sanitizeFilename(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-' || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
