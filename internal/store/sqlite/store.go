// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chanrelay Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chanrelay/chanrelay/internal/store"
	relayerr "github.com/chanrelay/chanrelay/pkg/errors"
)

// Compile-time interface checks.
var (
	_ store.Store        = (*Store)(nil)
	_ store.ChannelStore = (*channelStore)(nil)
	_ store.UserStore    = (*userStore)(nil)
)

// Store implements store.Store backed by a single SQLite database.
type Store struct {
	db       *sql.DB
	channels *channelStore
	users    *userStore
}

// NewStore opens (or creates) a SQLite database at dbPath and initialises
// the documents and users tables.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "migrating sqlite db: %w", err)
	}

	return &Store{
		db:       db,
		channels: &channelStore{db: db},
		users:    &userStore{db: db},
	}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

// Channels returns the ChannelStore sub-store.
func (s *Store) Channels() store.ChannelStore { return s.channels }

// Users returns the UserStore sub-store.
func (s *Store) Users() store.UserStore { return s.users }

// Close closes the underlying database connection.
func (s *Store) Close() error { return s.db.Close() }

// ---------- channelStore ----------

type channelStore struct {
	db *sql.DB
}

func (s *channelStore) LoadChannels(ctx context.Context) (*store.ChannelConfig, error) {
	const q = `SELECT body FROM documents WHERE id = ?`

	var body string
	err := s.db.QueryRowContext(ctx, q, store.ChannelsDocumentID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("channel document: %w", store.ErrNotFound)
	}
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "loading channel document: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "decoding channel document: %w", err)
	}

	var cfg store.ChannelConfig
	if err := json.Unmarshal([]byte(body), &cfg); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "decoding channel document: %w", err)
	}
	cfg.Normalize()

	if missing := store.MissingChannelFields(raw); len(missing) > 0 {
		if err := s.SaveChannels(ctx, &cfg); err != nil {
			return nil, fmt.Errorf("upgrading channel document: %w", err)
		}
		slog.Info("upgraded channel document", "backend", "sqlite", "added_fields", missing)
	}

	return &cfg, nil
}

func (s *channelStore) SaveChannels(ctx context.Context, cfg *store.ChannelConfig) error {
	if cfg == nil {
		return fmt.Errorf("saving nil channel document: %w", store.ErrInvalidInput)
	}

	doc := cfg.Clone()
	body, err := json.Marshal(doc)
	if err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "encoding channel document: %w", err)
	}

	const upsert = `INSERT INTO documents (id, body, updated_at) VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, upsert, store.ChannelsDocumentID, string(body), formatTime(time.Now())); err != nil {
		return relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "saving channel document: %w", err)
	}
	return nil
}

// ---------- userStore ----------

type userStore struct {
	db *sql.DB
}

func (s *userStore) AddUser(ctx context.Context, userID int64) (bool, error) {
	const insert = `INSERT OR IGNORE INTO users (user_id, created_at) VALUES (?, ?)`
	res, err := s.db.ExecContext(ctx, insert, userID, formatTime(time.Now()))
	if err != nil {
		return false, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "adding user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "adding user %d: %w", userID, err)
	}
	return n == 1, nil
}

func (s *userStore) ListUsers(ctx context.Context) ([]int64, error) {
	const q = `SELECT user_id FROM users ORDER BY seq`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "listing users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "scanning user row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, relayerr.Errorf(relayerr.CodeStoreDatabaseFailure, "iterating user rows: %w", err)
	}
	return ids, nil
}

// formatTime serialises a time for storage in a TEXT column.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
