// Package syncer runs a sync session: pull at the start (health, lease, download,
// heartbeat) and push at the end (upload, release). It never returns errors; every
// failure degrades to local-only work with a one line message.
package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/openmined/syftsync/internal/config"
	"github.com/openmined/syftsync/internal/identity"
	"github.com/openmined/syftsync/internal/lease"
	"github.com/openmined/syftsync/internal/reconcile"
	"github.com/openmined/syftsync/internal/syncsdk"
)

type Options struct {
	ClientID          string
	DataDir           string
	HeartbeatInterval time.Duration
	TrackedFiles      []string
	AuthConfigured    bool
}

type Syncer struct {
	coord          Coordinator
	clientID       string
	authConfigured bool

	locks      *lease.Client
	heartbeat  *lease.Heartbeat
	reconciler *reconcile.Reconciler

	// serializes pull, push and status
	opMu     sync.Mutex
	lockHeld map[string]bool
}

// New builds a Syncer from client config. A disabled config gives a Syncer whose
// operations return sync_disabled without touching the network.
func New(cfg *config.Config) (*Syncer, error) {
	opts := Options{
		DataDir:           cfg.DataDir,
		HeartbeatInterval: cfg.HeartbeatInterval,
		AuthConfigured:    cfg.AuthToken != "",
	}

	if !cfg.Enabled {
		return NewWithCoordinator(nil, opts), nil
	}

	client, err := syncsdk.New(cfg.SDKConfig())
	if err != nil {
		return nil, fmt.Errorf("coordinator client: %w", err)
	}
	opts.ClientID = identity.GetClientID(cfg.DataDir)
	return NewWithCoordinator(client, opts), nil
}

// NewWithCoordinator builds a Syncer on top of coord. A nil coord disables sync.
func NewWithCoordinator(coord Coordinator, opts Options) *Syncer {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = config.DefaultHeartbeatInterval
	}

	locks := lease.NewClient(coord)
	return &Syncer{
		coord:          coord,
		clientID:       opts.ClientID,
		authConfigured: opts.AuthConfigured,
		locks:          locks,
		heartbeat:      lease.NewHeartbeat(locks, opts.HeartbeatInterval),
		reconciler:     reconcile.New(coord, opts.DataDir, opts.TrackedFiles),
		lockHeld:       make(map[string]bool),
	}
}

func (s *Syncer) Enabled() bool {
	return s.coord != nil
}

func (s *Syncer) ClientID() string {
	return s.clientID
}

func (s *Syncer) ProjectDir(projectID string) string {
	return s.reconciler.ProjectDir(projectID)
}

// Pull starts a session: health check, lease, download newer files, then keep the
// lease alive in the background until Push or Close.
func (s *Syncer) Pull(ctx context.Context, projectID string) *PullResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if !s.Enabled() {
		return &PullResult{Files: []reconcile.Transfer{}, Failure: FailureSyncDisabled, Message: "sync disabled, working locally"}
	}

	if reachable, msg := s.reachable(ctx); !reachable {
		return &PullResult{Files: []reconcile.Transfer{}, Failure: FailureUnreachable, Message: msg}
	}

	acquired := s.locks.AcquireLock(ctx, projectID, s.clientID)
	if !acquired.OK() {
		res := &PullResult{Files: []reconcile.Transfer{}, Failure: failureFromLease(acquired.Status)}
		if acquired.Status == lease.StatusLockedByOther {
			res.Message = fmt.Sprintf("project %s is locked by %s, working locally", projectID, holderName(acquired.Holder()))
		} else {
			res.Message = fmt.Sprintf("could not lock project %s (%s), working locally", projectID, acquired.Status)
		}
		slog.Warn("sync pull", "project", projectID, "status", acquired.Status, "holder", acquired.Holder(), "error", acquired.Err)
		return res
	}

	pulled, err := s.reconciler.Pull(ctx, projectID)
	if err != nil {
		// a failed pull must not leave an orphaned lease behind
		s.locks.ReleaseLock(ctx, projectID, s.clientID)
		delete(s.lockHeld, projectID)
		slog.Error("sync pull", "project", projectID, "transferred", len(pulled.Files), "error", err)
		return &PullResult{
			Files:   pulled.Files,
			Failure: failureFromError(err),
			Message: fmt.Sprintf("pull failed (%s), lock released, working locally", failureFromError(err)),
		}
	}

	s.lockHeld[projectID] = true
	s.heartbeat.Start(projectID, s.clientID)

	slog.Info("sync pull", "project", projectID, "client", s.clientID, "files", len(pulled.Files))
	return &PullResult{
		Synced:       true,
		LockAcquired: true,
		Files:        pulled.Files,
		Message:      fmt.Sprintf("pulled %d file(s)", len(pulled.Files)),
	}
}

// Push ends a session: stop the heartbeat, upload newer files, release the lease
func (s *Syncer) Push(ctx context.Context, projectID string) *PushResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.heartbeat.Stop()

	if !s.Enabled() {
		return &PushResult{Files: []reconcile.Transfer{}, Failure: FailureSyncDisabled, Message: "sync disabled, changes kept locally"}
	}

	if reachable, msg := s.reachable(ctx); !reachable {
		return &PushResult{Files: []reconcile.Transfer{}, Failure: FailureUnreachable, Message: msg}
	}

	pushed, err := s.reconciler.Push(ctx, projectID, s.clientID)

	// the lease never outlives a push attempt
	s.locks.ReleaseLock(ctx, projectID, s.clientID)
	delete(s.lockHeld, projectID)

	if err != nil {
		slog.Error("sync push", "project", projectID, "transferred", len(pushed.Files), "error", err)
		return &PushResult{
			Files:   pushed.Files,
			Failure: failureFromError(err),
			Message: fmt.Sprintf("push failed (%s), %d file(s) uploaded before the failure", failureFromError(err), len(pushed.Files)),
		}
	}

	slog.Info("sync push", "project", projectID, "client", s.clientID, "files", len(pushed.Files), "skipped", len(pushed.Skipped))
	msg := fmt.Sprintf("pushed %d file(s)", len(pushed.Files))
	if len(pushed.Skipped) > 0 {
		msg += fmt.Sprintf(", not uploaded (not valid UTF-8): %s", strings.Join(pushed.Skipped, ", "))
	}
	return &PushResult{
		Pushed:  true,
		Files:   pushed.Files,
		Skipped: pushed.Skipped,
		Message: msg,
	}
}

// Status reports configuration and reachability without taking the lease
func (s *Syncer) Status(ctx context.Context, projectID string) *StatusResult {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	res := &StatusResult{
		Enabled:   s.Enabled(),
		ClientID:  s.clientID,
		ProjectID: projectID,
		LockHeld:  s.lockHeld[projectID] && s.heartbeat.Running(),
	}
	if !res.Enabled {
		res.Message = "sync disabled"
		return res
	}

	health, err := s.coord.Health(ctx)
	if err != nil {
		res.Message = "coordinator unreachable"
		return res
	}
	res.AuthRequired = health.AuthRequired
	res.Reachable = !health.AuthRequired || s.authConfigured
	if res.Reachable {
		res.Message = "coordinator reachable"
	} else {
		res.Message = "coordinator requires an auth token"
	}
	return res
}

// Close stops the heartbeat. Any held lease is left to expire.
func (s *Syncer) Close() {
	s.heartbeat.Stop()
}

func (s *Syncer) reachable(ctx context.Context) (bool, string) {
	health, err := s.coord.Health(ctx)
	if err != nil {
		slog.Warn("sync health check failed", "error", err)
		return false, "coordinator unreachable, working locally"
	}
	if health.AuthRequired && !s.authConfigured {
		slog.Warn("sync coordinator requires auth but no token is configured")
		return false, "coordinator requires an auth token, working locally"
	}
	return true, ""
}

func holderName(id string) string {
	if id == "" {
		return "another client"
	}
	return id
}
