package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/appetiteclub/kiosk/internal/kiosk"
)

const (
	sessionKey       = "user"
	correlationIDKey = "cid"
)

var _ kiosk.SessionStore = (*SessionStore)(nil)

// SessionStore keeps the kiosk session and correlation id on local disk so they
// survive a restart of the kiosk process.
type SessionStore struct {
	db     *sql.DB
	logger apt.Logger
}

// Open opens or creates the state database at path.
func Open(path string, logger apt.Logger) (*SessionStore, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SessionStore{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SessionStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kiosk_state (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SessionStore) Load(ctx context.Context) (*kiosk.Session, error) {
	value, ok, err := s.get(ctx, sessionKey)
	if err != nil || !ok {
		return nil, err
	}

	var session kiosk.Session
	if err := json.Unmarshal([]byte(value), &session); err != nil {
		s.logger.Error("discarding unreadable stored session", "error", err)
		return nil, nil
	}
	return &session, nil
}

func (s *SessionStore) Save(ctx context.Context, session kiosk.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.put(ctx, sessionKey, string(data))
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kiosk_state WHERE key = ?`, sessionKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// CorrelationID returns the id generated on first use; later calls return the same value.
func (s *SessionStore) CorrelationID(ctx context.Context) (string, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO kiosk_state (key, value, updated_at) VALUES (?, ?, ?)`,
		correlationIDKey, uuid.NewString(), now())
	if err != nil {
		return "", fmt.Errorf("create correlation id: %w", err)
	}

	value, ok, err := s.get(ctx, correlationIDKey)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.New("correlation id missing after insert")
	}
	return value, nil
}

// Start satisfies the service lifecycle; the database is opened by Open.
func (s *SessionStore) Start(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SessionStore) Stop(ctx context.Context) error {
	return s.Close()
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kiosk_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SessionStore) put(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kiosk_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now())
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
