package credentials

import (
	"fmt"

	"matchplayer/internal/config"
)

// Open builds the backend named by cfg.CredentialBackend. The returned close
// func releases backend resources and is never nil.
func Open(cfg config.Config) (Store, func() error, error) {
	noop := func() error { return nil }
	switch cfg.CredentialBackend {
	case "memory":
		return NewMemoryStore(), noop, nil
	case "file":
		return NewFileStore(cfg.CredentialPath), noop, nil
	case "encrypted":
		s, err := NewEncryptedFileStore(cfg.CredentialPath, cfg.CredentialPassphrase)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.CredentialPath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.CredentialBackend)
	}
}
