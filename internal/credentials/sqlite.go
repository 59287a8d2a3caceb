package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps the key in a preferences table keyed by (node, name),
// the same shape as a platform preferences store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create preferences dir: %w", err)
	}
	// SQLite gives its journal files the database file's mode, so the file
	// must be 0600 before the first connection opens it.
	if err := createPrivate(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=DELETE&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open preferences database: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func createPrivate(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return fmt.Errorf("create preferences database: %w", err)
	}
	if err := f.Chmod(0o600); err != nil {
		f.Close()
		return fmt.Errorf("chmod preferences database: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("create preferences database: %w", err)
	}
	for _, suffix := range []string{"-journal", "-wal", "-shm"} {
		if err := os.Chmod(path+suffix, 0o600); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("chmod preferences database%s: %w", suffix, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS preferences (
		node TEXT NOT NULL,
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (node, name)
	)`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE node = ? AND name = ?`,
		PreferencesNode, KeyName,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query api key: %w", err)
	}
	return v, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (node, name, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(node, name) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		PreferencesNode, KeyName, key,
	)
	if err != nil {
		return fmt.Errorf("store api key: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM preferences WHERE node = ? AND name = ?`,
		PreferencesNode, KeyName,
	)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}
