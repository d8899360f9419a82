package lock

import (
	"fmt"
	"time"

	"github.com/openmined/syftsync/internal/server/handlers/api"
	"github.com/openmined/syftsync/internal/server/lockstore"
)

type Lock struct {
	ProjectID  string    `json:"projectId"`
	ClientID   string    `json:"clientId"`
	AcquiredAt time.Time `json:"acquiredAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

func lockFromLease(l *lockstore.Lease) *Lock {
	return &Lock{
		ProjectID:  l.ProjectID,
		ClientID:   l.ClientID,
		AcquiredAt: l.AcquiredAt,
		ExpiresAt:  l.ExpiresAt,
	}
}

type LockResponse struct {
	Lock *Lock `json:"lock"`
}

type ReleaseResponse struct {
	Released bool `json:"released"`
}

// LockHeldAPIError is the 409 body for an acquire that lost to another client
type LockHeldAPIError struct {
	api.SyftAPIError
	Lock *Lock `json:"lock"`
}

func NewLockHeldAPIError(held *lockstore.HeldError) *LockHeldAPIError {
	return &LockHeldAPIError{
		Lock: lockFromLease(held.Lease),
		SyftAPIError: api.SyftAPIError{
			Code:    api.CodeLockHeld,
			Message: held.Error(),
		},
	}
}

func (e *LockHeldAPIError) Error() string {
	return fmt.Sprintf("syft api lock error: code=%s, message=%s, holder=%s", e.Code, e.Message, e.Lock.ClientID)
}
