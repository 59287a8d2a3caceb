package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"strings"
	"time"
)

func NowISO() string {
	return time.Now().Format(time.RFC3339)
}

func HMACSHA256Hex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

// ExportToken signs a tournament id for the CSV export link.
func ExportToken(secret, tournamentID string) string {
	return HMACSHA256Hex(secret, "export:"+tournamentID)
}

func ValidExportToken(secret, tournamentID, token string) bool {
	want := ExportToken(secret, tournamentID)
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(token))))
}

// MaskKey shows only the last four characters of an API key.
func MaskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if len(key) <= 4 {
		return strings.Repeat("•", len(key))
	}
	return strings.Repeat("•", 8) + key[len(key)-4:]
}

// Greeting is the placeholder welcome line shown on every front end.
func Greeting() string {
	return "Hello, " + Platform() + "!"
}

func Platform() string {
	return runtime.GOOS + "/" + runtime.GOARCH + " (" + runtime.Version() + ")"
}
