package syncer

import (
	"context"
	"errors"

	"github.com/openmined/syftsync/internal/lease"
	"github.com/openmined/syftsync/internal/reconcile"
	"github.com/openmined/syftsync/internal/syncsdk"
)

// FailureKind says why a pull or push fell back to local-only work. Empty means none.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureSyncDisabled  FailureKind = "sync_disabled"
	FailureUnreachable   FailureKind = "unreachable"
	FailureLockedByOther FailureKind = "locked_by_other"
	FailureServerError   FailureKind = "server_error"
	FailureWriteFailure  FailureKind = "write_failure"
)

// Coordinator is everything the syncer needs from the remote coordinator
type Coordinator interface {
	Health(ctx context.Context) (*syncsdk.HealthResponse, error)
	lease.Coordinator
	reconcile.Remote
}

type PullResult struct {
	Synced       bool                 `json:"synced"`
	LockAcquired bool                 `json:"lockAcquired"`
	Files        []reconcile.Transfer `json:"files"`
	Message      string               `json:"message"`
	Failure      FailureKind          `json:"failure,omitempty"`
}

type PushResult struct {
	Pushed  bool                 `json:"pushed"`
	Files   []reconcile.Transfer `json:"files"`
	Skipped []string             `json:"skipped,omitempty"`
	Message string               `json:"message"`
	Failure FailureKind          `json:"failure,omitempty"`
}

type StatusResult struct {
	Enabled      bool   `json:"enabled"`
	Reachable    bool   `json:"reachable"`
	AuthRequired bool   `json:"authRequired"`
	ClientID     string `json:"clientId"`
	ProjectID    string `json:"projectId"`
	LockHeld     bool   `json:"lockHeld"`
	Message      string `json:"message"`
}

func failureFromLease(s lease.Status) FailureKind {
	switch s {
	case lease.StatusOK:
		return FailureNone
	case lease.StatusDisabled:
		return FailureSyncDisabled
	case lease.StatusLockedByOther:
		return FailureLockedByOther
	case lease.StatusUnreachable:
		return FailureUnreachable
	default:
		return FailureServerError
	}
}

func failureFromError(err error) FailureKind {
	var writeErr *reconcile.WriteError
	switch {
	case err == nil:
		return FailureNone
	case errors.As(err, &writeErr):
		return FailureWriteFailure
	case syncsdk.IsUnreachable(err):
		return FailureUnreachable
	default:
		return FailureServerError
	}
}
