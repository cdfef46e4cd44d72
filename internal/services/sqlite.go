package services

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore is the remote document store backend: one row per document key.
type SQLiteStore struct {
	DB  *sql.DB
	key string
}

func NewSQLiteStore(dbPath, key string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{DB: db, key: key}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		doc_key TEXT PRIMARY KEY,
		body TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]byte, error) {
	var body string
	err := s.DB.QueryRowContext(ctx, "SELECT body FROM documents WHERE doc_key = ?", s.key).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) Save(ctx context.Context, data []byte) error {
	query := `
		INSERT INTO documents (doc_key, body, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(doc_key) DO UPDATE SET
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.DB.ExecContext(ctx, query, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, "DELETE FROM documents WHERE doc_key = ?", s.key); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.DB.Close()
}
