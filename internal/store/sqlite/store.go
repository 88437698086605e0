// Package sqlite is the local persistence layer: credentials per reservation
// service and notification settings. Secrets are sealed with AES-GCM when a
// storage key is configured.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/clawdshartavenger/alta-parking-app/internal/crypto"
)

type Store struct {
	db     *sql.DB
	sealer *crypto.AEAD // nil means secrets are stored as-is
}

// Open opens (creating if needed) the database at path. secretKeyB64, when
// non-empty, must be a base64-encoded AES key used to seal secret fields.
func Open(ctx context.Context, path string, secretKeyB64 string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db}
	if k := strings.TrimSpace(secretKeyB64); k != "" {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage secret key: %w", err)
		}
		sealer, err := crypto.New(key)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("storage secret key: %w", err)
		}
		s.sealer = sealer
	}

	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragma synchronous: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) seal(v string) (string, error) {
	if s.sealer == nil || v == "" {
		return v, nil
	}
	return s.sealer.EncryptToString(v)
}

func (s *Store) unseal(v string) (string, error) {
	if s.sealer == nil || v == "" {
		return v, nil
	}
	return s.sealer.DecryptString(v)
}
