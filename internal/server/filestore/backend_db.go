package filestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const contentSchemaSQL = `
CREATE TABLE IF NOT EXISTS file_contents (
	key TEXT PRIMARY KEY,
	content BLOB NOT NULL
);
`

// DBBackend keeps content in the same sqlite database as the index
type DBBackend struct {
	db *sqlx.DB
}

func NewDBBackend(db *sqlx.DB) (*DBBackend, error) {
	if _, err := db.Exec(contentSchemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize file contents: %w", err)
	}
	return &DBBackend{db: db}, nil
}

func (b *DBBackend) Put(ctx context.Context, key string, content []byte) error {
	_, err := b.db.ExecContext(ctx, `INSERT OR REPLACE INTO file_contents (key, content) VALUES (?, ?)`, key, content)
	return err
}

func (b *DBBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var content []byte
	err := b.db.GetContext(ctx, &content, `SELECT content FROM file_contents WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return content, err
}

func (b *DBBackend) Name() string {
	return BackendDB
}
