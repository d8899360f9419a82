package lease

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Heartbeat renews a held lease on a fixed interval until stopped or until a
// renewal fails. One Heartbeat runs at most one renewal loop at a time.
type Heartbeat struct {
	client   *Client
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	lost   bool
}

func NewHeartbeat(client *Client, interval time.Duration) *Heartbeat {
	return &Heartbeat{
		client:   client,
		interval: interval,
	}
}

// Start begins renewing the lease. It returns false and does nothing if a loop is already running.
func (h *Heartbeat) Start(projectID, clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	h.cancel = cancel
	h.done = done
	h.lost = false

	go h.run(ctx, done, projectID, clientID)
	slog.Debug("heartbeat start", "project", projectID, "interval", h.interval)
	return true
}

// Stop cancels the loop and waits for it to exit. Safe to call any number of times.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Debug("heartbeat stop")
}

func (h *Heartbeat) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancel != nil
}

// Lost reports whether the last loop ended because a renewal failed
func (h *Heartbeat) Lost() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lost
}

func (h *Heartbeat) run(ctx context.Context, done chan struct{}, projectID, clientID string) {
	defer close(done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if h.client.Heartbeat(ctx, projectID, clientID) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			slog.Warn("lease renewal failed, continuing with local data only", "project", projectID)
			h.selfStop(done)
			return
		}
	}
}

// selfStop clears the running state, unless Stop already claimed it
func (h *Heartbeat) selfStop(done chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != done {
		return
	}
	h.cancel()
	h.cancel, h.done = nil, nil
	h.lost = true
}
