package presence

import (
	"context"
	"sync"
	"time"

	"alumninexus/server/internal/repository"
)

const (
	DefaultTTL           = 2 * time.Minute
	DefaultSweepInterval = 30 * time.Second
)

// Heartbeat maintains profiles.is_online for live sockets. A profile goes
// online with its first socket and offline with its last one. Sockets that
// stop beating are swept offline once last_seen is older than the TTL.
type Heartbeat struct {
	profiles repository.ProfileRepository
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	sockets map[string]int
	touched map[string]time.Time
}

func NewHeartbeat(profiles repository.ProfileRepository, ttl, interval time.Duration) *Heartbeat {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Heartbeat{
		profiles: profiles,
		ttl:      ttl,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
		sockets:  make(map[string]int),
		touched:  make(map[string]time.Time),
	}
}

// Connect records a new socket for userID.
func (h *Heartbeat) Connect(ctx context.Context, userID string) error {
	h.mu.Lock()
	h.sockets[userID]++
	first := h.sockets[userID] == 1
	now := h.now()
	h.touched[userID] = now
	h.mu.Unlock()

	if !first {
		return nil
	}
	return h.profiles.SetOnline(ctx, userID, true, now)
}

// Disconnect drops one socket of userID.
func (h *Heartbeat) Disconnect(ctx context.Context, userID string) error {
	h.mu.Lock()
	if h.sockets[userID] == 0 {
		h.mu.Unlock()
		return nil
	}
	h.sockets[userID]--
	last := h.sockets[userID] == 0
	if last {
		delete(h.sockets, userID)
		delete(h.touched, userID)
	}
	now := h.now()
	h.mu.Unlock()

	if !last {
		return nil
	}
	return h.profiles.SetOnline(ctx, userID, false, now)
}

// Beat refreshes last_seen. Writes are throttled to one per quarter TTL.
func (h *Heartbeat) Beat(ctx context.Context, userID string) error {
	h.mu.Lock()
	now := h.now()
	if now.Sub(h.touched[userID]) < h.ttl/4 {
		h.mu.Unlock()
		return nil
	}
	h.touched[userID] = now
	h.mu.Unlock()

	return h.profiles.Touch(ctx, userID, now)
}

// Online reports whether userID has a live socket on this server.
func (h *Heartbeat) Online(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sockets[userID] > 0
}

// Sweep marks profiles offline whose last_seen is older than the TTL.
func (h *Heartbeat) Sweep(ctx context.Context) (int64, error) {
	return h.profiles.MarkStaleOffline(ctx, h.now().Add(-h.ttl))
}

// Run sweeps every interval until ctx is done.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	log.Infof("presence sweeper running (ttl %s, every %s)", h.ttl, h.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := h.Sweep(ctx)
			if err != nil {
				log.Errorf("presence sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Infof("marked %d stale profiles offline", n)
			}
		}
	}
}
