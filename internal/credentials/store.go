// Package credentials persists the single Matchplay API key.
//
// All backends share the same contract: Set overwrites, Clear removes, and
// Get reports ok=false when no key is stored. Writes are atomic from a
// reader's point of view; concurrent writers get last-writer-wins.
package credentials

import (
	"context"
	"errors"
)

// Fixed logical names the key is stored under.
const (
	PreferencesNode = "com.matchplay.client"
	KeyName         = "matchplay_api_key"
)

var (
	ErrDecrypt        = errors.New("credentials: cannot decrypt stored key (wrong passphrase or corrupt file)")
	ErrUnknownBackend = errors.New("credentials: unknown backend")
)

type Store interface {
	Get(ctx context.Context) (key string, ok bool, err error)
	Set(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
