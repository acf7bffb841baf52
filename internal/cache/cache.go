// Package cache provides the process-wide query result cache. Entries are
// content-addressed: the key is the query identity plus its parameter
// tuple, so two calls with the same parameters share one entry. Staleness
// is accepted until an explicit invalidation; the TTL is only a safety
// net, never the refresh mechanism.
package cache

import (
	"context"
	"strings"
	"time"
)

// Result is one cached query payload together with its fetch timestamp.
type Result struct {
	Payload   []byte    `json:"payload"`
	FetchedAt time.Time `json:"fetched_at"`
}

// QueryCache is the store behind the data access layer. Implementations
// must be safe for concurrent use.
type QueryCache interface {
	Get(ctx context.Context, key string) (Result, bool)
	Set(ctx context.Context, key string, res Result)

	// Invalidate removes one entry; InvalidateAll drops every entry the
	// cache has seen. Both are explicit operations wired to the refresh
	// action, not background behavior.
	Invalidate(ctx context.Context, key string)
	InvalidateAll(ctx context.Context)
}

// Key builds the content address for a query: its name plus the parameter
// tuple. Parameters are joined with an unlikely separator so distinct
// tuples cannot collide.
func Key(query string, params ...string) string {
	if len(params) == 0 {
		return query
	}
	return query + "|" + strings.Join(params, "\x1f")
}

// Cleaner is implemented by caches that support expired-entry cleanup.
type Cleaner interface {
	CleanExpired() int
}

// Manager handles cache lifecycle and cleanup.
type Manager struct {
	caches      []Cleaner
	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager creates a new cache manager.
func NewManager() *Manager {
	return &Manager{
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.cleanup(interval)
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range m.caches {
				c.CleanExpired()
			}
		case <-m.stopCleanup:
			return
		}
	}
}

// Stop gracefully stops the cleanup routine.
func (m *Manager) Stop() {
	if m.stopCleanup != nil {
		close(m.stopCleanup)
		<-m.cleanupDone
	}
}
