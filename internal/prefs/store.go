package prefs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"commentflow/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.PreferenceStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(ctx context.Context, key, value string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	s.recordHistory(ctx, key, sql.NullString{String: value, Valid: true}, now)
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete preference %s: %w", key, err)
	}
	s.recordHistory(ctx, key, sql.NullString{}, time.Now())
	return nil
}

// History is best effort; a failed insert never fails the write.
func (s *SQLiteStore) recordHistory(ctx context.Context, key string, value sql.NullString, at time.Time) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO preference_history (key, value, changed_at) VALUES (?, ?, ?)`, key, value, at,
	); err != nil {
		s.logger.Warn("preference history write failed", "key", key, "err", err)
	}
}

func (s *SQLiteStore) All(ctx context.Context) ([]domain.Preference, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM preferences ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prefs []domain.Preference
	for rows.Next() {
		var p domain.Preference
		if err := rows.Scan(&p.Key, &p.Value, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prefs = append(prefs, p)
	}
	return prefs, rows.Err()
}

// History returns the most recent changes to key, newest first. A nil
// value marks a deletion.
func (s *SQLiteStore) History(ctx context.Context, key string, limit int) ([]*string, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT value FROM preference_history WHERE key = ? ORDER BY id DESC LIMIT ?`, key, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		if v.Valid {
			val := v.String
			out = append(out, &val)
		} else {
			out = append(out, nil)
		}
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ domain.PreferenceStore = (*SQLiteStore)(nil)
