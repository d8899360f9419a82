package lockstore

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotHolder      = errors.New("lease not held by client")
	ErrInvalidRequest = errors.New("project id and client id are required")
)

// Lease is a live lock on a project
type Lease struct {
	ProjectID  string
	ClientID   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

func (l *Lease) LiveAt(t time.Time) bool {
	return l.ExpiresAt.After(t)
}

// HeldError is returned by Acquire when another client holds a live lease
type HeldError struct {
	Lease *Lease
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("project %s is locked by %s until %s", e.Lease.ProjectID, e.Lease.ClientID, e.Lease.ExpiresAt.Format(time.RFC3339))
}

type leaseRow struct {
	ProjectID  string `db:"project_id"`
	ClientID   string `db:"client_id"`
	AcquiredAt int64  `db:"acquired_at"`
	ExpiresAt  int64  `db:"expires_at"`
}

func (r *leaseRow) toLease() *Lease {
	return &Lease{
		ProjectID:  r.ProjectID,
		ClientID:   r.ClientID,
		AcquiredAt: time.Unix(0, r.AcquiredAt).UTC(),
		ExpiresAt:  time.Unix(0, r.ExpiresAt).UTC(),
	}
}
