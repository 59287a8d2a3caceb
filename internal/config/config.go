package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://app.matchplay.events/api"

type Config struct {
	BaseURL     string
	HTTPTimeout time.Duration

	CredentialBackend    string
	CredentialPath       string
	CredentialPassphrase string

	TelegramToken string
	AdminTGIDs    map[int64]bool

	SpreadsheetID            string
	GoogleServiceAccountJSON string

	HTTPAddr      string
	BasePublicURL string
	ExportSecret  string

	LogLevel slog.Level
}

func FromEnv() (Config, error) {
	var c Config
	c.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("MATCHPLAY_BASE_URL")), "/")
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	c.HTTPTimeout = 30 * time.Second
	if raw := strings.TrimSpace(os.Getenv("MATCHPLAY_HTTP_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return c, fmt.Errorf("MATCHPLAY_HTTP_TIMEOUT: %w", err)
		}
		if d <= 0 {
			return c, fmt.Errorf("MATCHPLAY_HTTP_TIMEOUT must be positive, got %s", d)
		}
		c.HTTPTimeout = d
	}

	c.CredentialBackend = strings.ToLower(strings.TrimSpace(os.Getenv("CREDENTIAL_BACKEND")))
	if c.CredentialBackend == "" {
		c.CredentialBackend = "file"
	}
	c.CredentialPassphrase = os.Getenv("CREDENTIAL_PASSPHRASE")
	c.CredentialPath = strings.TrimSpace(os.Getenv("CREDENTIAL_PATH"))
	if c.CredentialPath == "" && c.CredentialBackend != "memory" {
		p, err := defaultCredentialPath(c.CredentialBackend)
		if err != nil {
			return c, err
		}
		c.CredentialPath = p
	}
	if c.CredentialBackend == "encrypted" && c.CredentialPassphrase == "" {
		return c, fmt.Errorf("CREDENTIAL_PASSPHRASE is empty (required by the encrypted backend)")
	}

	c.TelegramToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	c.AdminTGIDs = parseAdminIDs(os.Getenv("ADMIN_TG_IDS"))

	c.SpreadsheetID = strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	c.GoogleServiceAccountJSON = strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))

	c.HTTPAddr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if c.HTTPAddr == "" {
		c.HTTPAddr = "127.0.0.1:8080"
	}
	c.BasePublicURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BASE_PUBLIC_URL")), "/")

	c.ExportSecret = strings.TrimSpace(os.Getenv("EXPORT_SECRET"))
	if c.ExportSecret == "" {
		c.ExportSecret = "change-me"
	}

	lvl, err := parseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		return c, err
	}
	c.LogLevel = lvl

	return c, nil
}

// ValidateBot checks the settings only the Telegram front end needs.
func (c Config) ValidateBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty")
	}
	if len(c.AdminTGIDs) == 0 {
		return fmt.Errorf("ADMIN_TG_IDS is empty")
	}
	return nil
}

// SheetsEnabled reports whether a spreadsheet export target is configured.
func (c Config) SheetsEnabled() bool {
	return c.SpreadsheetID != "" && c.GoogleServiceAccountJSON != ""
}

func defaultCredentialPath(backend string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	name := "api_key"
	switch backend {
	case "encrypted":
		name = "api_key.enc"
	case "sqlite":
		name = "preferences.db"
	}
	return filepath.Join(dir, "matchplayer", name), nil
}

func parseLevel(raw string) (slog.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func parseAdminIDs(raw string) map[int64]bool {
	m := map[int64]bool{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return m
	}
	parts := strings.Split(raw, ",")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		m[v] = true
	}
	return m
}
