// Package lockstore keeps per-project leases in sqlite. At most one live lease exists
// per project; every mutation runs under a per-project mutex inside one transaction.
package lockstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS leases (
	project_id TEXT PRIMARY KEY,
	client_id TEXT NOT NULL,
	acquired_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leases_expires_at ON leases(expires_at);
`

const DefaultTTL = 30 * time.Minute

type Store struct {
	db  *sqlx.DB
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	projects map[string]*sync.Mutex
}

type Option func(*Store)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func New(db *sqlx.DB, ttl time.Duration, opts ...Option) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize leases: %w", err)
	}

	s := &Store{
		db:       db,
		ttl:      ttl,
		now:      time.Now,
		projects: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Acquire grants the lease to clientID if no live lease exists. If clientID already
// holds it the lease is renewed. If another client holds it, a *HeldError carries that lease.
func (s *Store) Acquire(ctx context.Context, projectID, clientID string) (*Lease, error) {
	if projectID == "" || clientID == "" {
		return nil, ErrInvalidRequest
	}

	var lease *Lease
	err := s.withProject(ctx, projectID, func(tx *sqlx.Tx, now time.Time) error {
		current, err := getLive(ctx, tx, projectID, now)
		if err != nil {
			return err
		}

		if current != nil && current.ClientID != clientID {
			return &HeldError{Lease: current.toLease()}
		}

		row := &leaseRow{
			ProjectID:  projectID,
			ClientID:   clientID,
			AcquiredAt: now.UnixNano(),
			ExpiresAt:  now.Add(s.ttl).UnixNano(),
		}
		if current != nil {
			row.AcquiredAt = current.AcquiredAt
			row.ExpiresAt = max(row.ExpiresAt, current.ExpiresAt+1)
		}

		if _, err := tx.NamedExecContext(ctx,
			`INSERT OR REPLACE INTO leases (project_id, client_id, acquired_at, expires_at)
			VALUES (:project_id, :client_id, :acquired_at, :expires_at)`, row); err != nil {
			return fmt.Errorf("failed to save lease: %w", err)
		}

		lease = row.toLease()
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("lease acquired", "project", projectID, "client", clientID, "expiresAt", lease.ExpiresAt)
	return lease, nil
}

// Renew extends a live lease held by clientID to now+TTL. The new expiry is always
// strictly later than the previous one.
func (s *Store) Renew(ctx context.Context, projectID, clientID string) (*Lease, error) {
	if projectID == "" || clientID == "" {
		return nil, ErrInvalidRequest
	}

	var lease *Lease
	err := s.withProject(ctx, projectID, func(tx *sqlx.Tx, now time.Time) error {
		current, err := getLive(ctx, tx, projectID, now)
		if err != nil {
			return err
		}
		if current == nil || current.ClientID != clientID {
			return ErrNotHolder
		}

		current.ExpiresAt = max(now.Add(s.ttl).UnixNano(), current.ExpiresAt+1)
		if _, err := tx.ExecContext(ctx, `UPDATE leases SET expires_at = ? WHERE project_id = ?`,
			current.ExpiresAt, projectID); err != nil {
			return fmt.Errorf("failed to renew lease: %w", err)
		}

		lease = current.toLease()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// Release deletes the lease if clientID holds it. Releasing a lease held by someone
// else, or no lease at all, reports false and changes nothing.
func (s *Store) Release(ctx context.Context, projectID, clientID string) (bool, error) {
	if projectID == "" || clientID == "" {
		return false, ErrInvalidRequest
	}

	var released bool
	err := s.withProject(ctx, projectID, func(tx *sqlx.Tx, _ time.Time) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM leases WHERE project_id = ? AND client_id = ?`, projectID, clientID)
		if err != nil {
			return fmt.Errorf("failed to release lease: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		released = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	slog.Debug("lease release", "project", projectID, "client", clientID, "released", released)
	return released, nil
}

// Get returns the live lease for the project, or nil when there is none
func (s *Store) Get(ctx context.Context, projectID string) (*Lease, error) {
	var row leaseRow
	err := s.db.GetContext(ctx, &row,
		`SELECT project_id, client_id, acquired_at, expires_at FROM leases WHERE project_id = ? AND expires_at > ?`,
		projectID, s.now().UnixNano())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to get lease: %w", err)
	}
	return row.toLease(), nil
}

// GuardWrite runs fn unless another client holds a live lease on the project, in which
// case it returns a *HeldError. No lease can be acquired or released while fn runs.
// fn must not call back into the store for the same project.
func (s *Store) GuardWrite(ctx context.Context, projectID, clientID string, fn func() error) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, projectID)
	if err != nil {
		return err
	}
	if current != nil && current.ClientID != clientID {
		return &HeldError{Lease: current}
	}
	return fn()
}

// Sweep deletes every expired lease
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leases WHERE expires_at <= ?`, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep leases: %w", err)
	}
	return res.RowsAffected()
}

// RunSweeper sweeps expired leases every interval until ctx is done
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				slog.Error("lease sweep", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("lease sweep", "expired", n)
			}
		}
	}
}

func (s *Store) withProject(ctx context.Context, projectID string, fn func(tx *sqlx.Tx, now time.Time) error) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx, s.now()); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) projectLock(projectID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.projects[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.projects[projectID] = lock
	}
	return lock
}

func getLive(ctx context.Context, tx *sqlx.Tx, projectID string, now time.Time) (*leaseRow, error) {
	var row leaseRow
	err := tx.GetContext(ctx, &row,
		`SELECT project_id, client_id, acquired_at, expires_at FROM leases WHERE project_id = ?`, projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read lease: %w", err)
	}
	if row.ExpiresAt <= now.UnixNano() {
		return nil, nil
	}
	return &row, nil
}
