// Package lease holds the client side of the per-project lock: acquire, renew, release,
// and the background heartbeat that keeps a held lease alive.
package lease

import (
	"context"
	"errors"
	"log/slog"

	"github.com/openmined/syftsync/internal/syncsdk"
)

type Status string

const (
	StatusOK            Status = "ok"
	StatusDisabled      Status = "sync_disabled"
	StatusLockedByOther Status = "locked_by_other"
	StatusUnreachable   Status = "unreachable"
	StatusServerError   Status = "server_error"
)

// Result is the outcome of a lock operation. Lock is set on success and,
// for StatusLockedByOther, describes the current holder when the coordinator sent it.
type Result struct {
	Status Status
	Lock   *syncsdk.Lock
	Err    error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Holder is the client id of the lease in the result, or "" if unknown
func (r Result) Holder() string {
	if r.Lock == nil {
		return ""
	}
	return r.Lock.ClientID
}

// Coordinator is the subset of the coordinator API the lock client needs
type Coordinator interface {
	AcquireLock(ctx context.Context, projectID, clientID string) (*syncsdk.Lock, error)
	ReleaseLock(ctx context.Context, projectID, clientID string) (bool, error)
	Heartbeat(ctx context.Context, projectID, clientID string) (*syncsdk.Lock, error)
}

// Client never returns errors to its caller; failures come back as a typed Result
type Client struct {
	coord Coordinator
}

// NewClient wraps coord. A nil coord gives a client whose every call reports StatusDisabled.
func NewClient(coord Coordinator) *Client {
	return &Client{coord: coord}
}

func (c *Client) Enabled() bool {
	return c != nil && c.coord != nil
}

// AcquireLock takes the project lease, or renews it when clientID already holds it
func (c *Client) AcquireLock(ctx context.Context, projectID, clientID string) Result {
	if !c.Enabled() {
		return Result{Status: StatusDisabled}
	}

	lock, err := c.coord.AcquireLock(ctx, projectID, clientID)
	if err != nil {
		res := classify(err)
		slog.Debug("lock acquire failed", "project", projectID, "client", clientID, "status", res.Status, "holder", res.Holder(), "error", err)
		return res
	}

	slog.Debug("lock acquired", "project", projectID, "client", clientID, "expiresAt", lock.ExpiresAt)
	return Result{Status: StatusOK, Lock: lock}
}

// ReleaseLock is best effort. An unreleased lease expires on its own, and a release
// that loses the race to expiry or to another holder is still reported as OK.
func (c *Client) ReleaseLock(ctx context.Context, projectID, clientID string) Result {
	if !c.Enabled() {
		return Result{Status: StatusDisabled}
	}

	released, err := c.coord.ReleaseLock(ctx, projectID, clientID)
	if err != nil {
		slog.Debug("lock release failed, lease will expire", "project", projectID, "client", clientID, "error", err)
		return Result{Status: StatusOK, Err: err}
	}
	if !released {
		slog.Debug("lock release was a no-op", "project", projectID, "client", clientID)
	}
	return Result{Status: StatusOK}
}

// Heartbeat extends the lease; false when it is no longer ours or the call failed
func (c *Client) Heartbeat(ctx context.Context, projectID, clientID string) bool {
	if !c.Enabled() {
		return false
	}

	lock, err := c.coord.Heartbeat(ctx, projectID, clientID)
	if err != nil {
		slog.Debug("lock heartbeat failed", "project", projectID, "client", clientID, "error", err)
		return false
	}
	slog.Debug("lock heartbeat", "project", projectID, "expiresAt", lock.ExpiresAt)
	return true
}

func classify(err error) Result {
	var held *syncsdk.LockHeldError
	switch {
	case errors.As(err, &held):
		return Result{Status: StatusLockedByOther, Lock: held.Lock, Err: err}
	case syncsdk.IsUnreachable(err):
		return Result{Status: StatusUnreachable, Err: err}
	default:
		return Result{Status: StatusServerError, Err: err}
	}
}
