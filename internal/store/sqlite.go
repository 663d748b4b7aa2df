package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ashureev/threadrelay/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements BindingStore using a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // serializes writes to avoid SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed binding store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// modernc applies _pragma parameters on every new connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS thread_bindings (
		chat_id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves the thread bound to a chat.
func (s *SQLiteStore) Get(ctx context.Context, chatID domain.ChatID) ThreadLookup {
	binding, err := s.GetBinding(ctx, chatID)
	if err != nil {
		return classify("", err)
	}
	return classify(binding.ThreadID, nil)
}

// GetBinding retrieves the full binding row for a chat.
// It returns ErrBindingNotFound when the chat has no binding.
func (s *SQLiteStore) GetBinding(ctx context.Context, chatID domain.ChatID) (*domain.ThreadBinding, error) {
	query := `SELECT chat_id, thread_id, created_at, updated_at FROM thread_bindings WHERE chat_id = ?`

	var binding domain.ThreadBinding
	var rawChatID string
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, string(chatID)).Scan(
		&rawChatID, &binding.ThreadID, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBindingNotFound
	}
	if err != nil {
		return nil, unavailable("scan thread binding", err)
	}

	binding.ChatID = domain.ChatID(rawChatID)
	binding.CreatedAt = time.Unix(createdAt, 0)
	binding.UpdatedAt = time.Unix(updatedAt, 0)
	return &binding, nil
}

// Put creates or replaces the binding for a chat.
func (s *SQLiteStore) Put(ctx context.Context, chatID domain.ChatID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO thread_bindings (chat_id, thread_id, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		thread_id = excluded.thread_id,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at`

	now := time.Now().Unix()
	if _, err := s.db.ExecContext(ctx, query, string(chatID), threadID, now, now); err != nil {
		return unavailable("upsert thread binding", err)
	}
	return nil
}

// Delete removes the binding for a chat.
// Retries with exponential backoff when the database is busy.
func (s *SQLiteStore) Delete(ctx context.Context, chatID domain.ChatID) error {
	return withBusyRetry(ctx, "delete thread binding", chatID, func() error {
		return s.deleteOnce(ctx, chatID)
	})
}

func (s *SQLiteStore) deleteOnce(ctx context.Context, chatID domain.ChatID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM thread_bindings WHERE chat_id = ?`, string(chatID)); err != nil {
		return fmt.Errorf("delete thread binding: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

var _ BindingStore = (*SQLiteStore)(nil)

