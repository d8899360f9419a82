// Package filestore keeps the coordinator's copy of project files: a sqlite index of
// name, size, etag and modifiedAt, with content in a pluggable backend.
package filestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jmoiron/sqlx"
)

const defaultCacheEntries = 256

const indexSchemaSQL = `
CREATE TABLE IF NOT EXISTS files (
	project_id TEXT NOT NULL,
	name TEXT NOT NULL,
	size INTEGER NOT NULL,
	etag TEXT NOT NULL,
	modified_at INTEGER NOT NULL,
	PRIMARY KEY (project_id, name)
);
`

type FileInfo struct {
	ProjectID  string
	Name       string
	Size       int64
	ETag       string
	ModifiedAt time.Time
}

type File struct {
	FileInfo
	Content []byte
}

type fileRow struct {
	ProjectID  string `db:"project_id"`
	Name       string `db:"name"`
	Size       int64  `db:"size"`
	ETag       string `db:"etag"`
	ModifiedAt int64  `db:"modified_at"`
}

func (r *fileRow) toInfo() FileInfo {
	return FileInfo{
		ProjectID:  r.ProjectID,
		Name:       r.Name,
		Size:       r.Size,
		ETag:       r.ETag,
		ModifiedAt: time.Unix(0, r.ModifiedAt).UTC(),
	}
}

type Store struct {
	db      *sqlx.DB
	backend Backend
	now     func() time.Time

	// content by key@etag, saves a backend round trip on repeated pulls
	cache        *lru.Cache[string, []byte]
	cacheEntries int

	// serializes writers so modifiedAt stays monotonic per file
	writeMu sync.Mutex
}

type Option func(*Store)

// WithContentCache sets how many file contents are kept in memory. Zero disables the cache.
func WithContentCache(entries int) Option {
	return func(s *Store) {
		s.cacheEntries = entries
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(db *sqlx.DB, backend Backend, opts ...Option) (*Store, error) {
	if _, err := db.Exec(indexSchemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize file index: %w", err)
	}

	s := &Store{db: db, backend: backend, now: time.Now, cacheEntries: defaultCacheEntries}
	for _, opt := range opts {
		opt(s)
	}

	if s.cacheEntries > 0 {
		cache, err := lru.New[string, []byte](s.cacheEntries)
		if err != nil {
			return nil, fmt.Errorf("failed to create content cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// NewFromConfig picks the content backend named in cfg
func NewFromConfig(ctx context.Context, db *sqlx.DB, cfg *Config, opts ...Option) (*Store, error) {
	var backend Backend
	var err error

	switch cfg.Backend {
	case "", BackendDB:
		backend, err = NewDBBackend(db)
	case BackendS3:
		backend, err = NewS3BackendWithConfig(ctx, &cfg.S3)
	default:
		err = fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	slog.Info("file store", "backend", backend.Name())
	return New(db, backend, opts...)
}

func (s *Store) List(ctx context.Context, projectID string) ([]FileInfo, error) {
	var rows []fileRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT project_id, name, size, etag, modified_at FROM files WHERE project_id = ? ORDER BY name`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	files := make([]FileInfo, 0, len(rows))
	for i := range rows {
		files = append(files, rows[i].toInfo())
	}
	return files, nil
}

func (s *Store) Stat(ctx context.Context, projectID, name string) (*FileInfo, error) {
	row, err := s.getRow(ctx, projectID, name)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	info := row.toInfo()
	return &info, nil
}

func (s *Store) Get(ctx context.Context, projectID, name string) (*File, error) {
	info, err := s.Stat(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	key := contentKey(projectID, name)
	if content, ok := s.cached(key, info.ETag); ok {
		return &File{FileInfo: *info, Content: content}, nil
	}

	content, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", projectID, name, err)
	}
	s.remember(key, info.ETag, content)
	return &File{FileInfo: *info, Content: content}, nil
}

// Put stores content and stamps it with the coordinator's clock. The new modifiedAt
// is strictly later than the previous one for the same file.
func (s *Store) Put(ctx context.Context, projectID, name string, content []byte) (*FileInfo, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prev, err := s.getRow(ctx, projectID, name)
	if err != nil {
		return nil, err
	}

	modifiedAt := s.now().UnixNano()
	if prev != nil && modifiedAt <= prev.ModifiedAt {
		modifiedAt = prev.ModifiedAt + 1
	}

	if err := s.backend.Put(ctx, contentKey(projectID, name), content); err != nil {
		return nil, fmt.Errorf("failed to write %s/%s: %w", projectID, name, err)
	}

	sum := sha256.Sum256(content)
	row := &fileRow{
		ProjectID:  projectID,
		Name:       name,
		Size:       int64(len(content)),
		ETag:       hex.EncodeToString(sum[:]),
		ModifiedAt: modifiedAt,
	}
	if _, err := s.db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO files (project_id, name, size, etag, modified_at)
		VALUES (:project_id, :name, :size, :etag, :modified_at)`, row); err != nil {
		return nil, fmt.Errorf("failed to index %s/%s: %w", projectID, name, err)
	}

	s.remember(contentKey(projectID, name), row.ETag, content)

	info := row.toInfo()
	slog.Debug("file stored", "project", projectID, "name", name, "size", humanize.Bytes(uint64(row.Size)), "modifiedAt", info.ModifiedAt)
	return &info, nil
}

func (s *Store) getRow(ctx context.Context, projectID, name string) (*fileRow, error) {
	var row fileRow
	err := s.db.GetContext(ctx, &row,
		`SELECT project_id, name, size, etag, modified_at FROM files WHERE project_id = ? AND name = ?`, projectID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read file index: %w", err)
	}
	return &row, nil
}

func (s *Store) cached(key, etag string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key + "@" + etag)
}

func (s *Store) remember(key, etag string, content []byte) {
	if s.cache == nil {
		return
	}
	s.cache.Add(key+"@"+etag, content)
}

func contentKey(projectID, name string) string {
	return projectID + "/" + name
}
