package server

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/billform/pkg/metrics"
	"github.com/vango-dev/billform/pkg/protocol"
	"github.com/vango-dev/billform/pkg/receipt"
)

// SessionManager owns every live session. It handles creation, lookup,
// catalog broadcasts and cleanup of sessions whose page never connected.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	catalog     *receipt.Catalog
	config      *SessionConfig
	maxSessions int
	metrics     *metrics.Metrics
	logger      *slog.Logger

	totalCreated atomic.Uint64
	totalClosed  atomic.Uint64

	done        chan struct{}
	cleanupDone chan struct{}
	closeOnce   sync.Once
}

// NewSessionManager creates a manager and starts its cleanup loop.
func NewSessionManager(catalog *receipt.Catalog, config *SessionConfig, maxSessions int, cleanupInterval time.Duration, m *metrics.Metrics, logger *slog.Logger) *SessionManager {
	if config == nil {
		config = DefaultSessionConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultConfig().CleanupInterval
	}
	sm := &SessionManager{
		sessions:    make(map[string]*Session),
		catalog:     catalog,
		config:      config,
		maxSessions: maxSessions,
		metrics:     m,
		logger:      logger.With("component", "session_manager"),
		done:        make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go sm.cleanupLoop(cleanupInterval)
	return sm
}

// Create mounts a new session for q. The session is pending until a
// WebSocket attaches to it.
func (sm *SessionManager) Create(q receipt.Query) (*Session, error) {
	if sm.maxSessions > 0 && sm.Count() >= sm.maxSessions {
		return nil, ErrMaxSessionsReached
	}
	s, err := newSession(sm.catalog, q, sm.config, sm.metrics, sm.logger)
	if err != nil {
		return nil, err
	}

	sm.mu.Lock()
	sm.sessions[s.ID] = s
	sm.mu.Unlock()
	sm.totalCreated.Add(1)
	sm.logger.Debug("session created", "session_id", s.ID, "lang", q.Lang, "doc", q.Doc)
	return s, nil
}

// Get returns the session with the given ID.
func (sm *SessionManager) Get(id string) (*Session, error) {
	sm.mu.RLock()
	s, ok := sm.sessions[id]
	sm.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.IsClosed() {
		return nil, ErrSessionClosed
	}
	return s, nil
}

// Remove closes and forgets a session.
func (sm *SessionManager) Remove(id string) {
	sm.mu.Lock()
	s, ok := sm.sessions[id]
	delete(sm.sessions, id)
	sm.mu.Unlock()
	if ok {
		s.Close()
		sm.totalClosed.Add(1)
	}
}

// Count returns the number of tracked sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// ForEach calls fn for every open session, oldest first.
func (sm *SessionManager) ForEach(fn func(*Session)) {
	sm.mu.RLock()
	list := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		list = append(list, s)
	}
	sm.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	for _, s := range list {
		if !s.IsClosed() {
			fn(s)
		}
	}
}

// InvalidateCatalog re-resolves labels in every attached session, e.g.
// after the locale directory changed. Pending sessions pick the new
// catalog up when they mount.
func (sm *SessionManager) InvalidateCatalog() int {
	n := 0
	sm.ForEach(func(s *Session) {
		if !s.Attached() {
			return
		}
		s.Dispatch(func() { s.view.InvalidateCatalog() })
		n++
	})
	sm.logger.Info("catalog change broadcast", "sessions", n)
	return n
}

// cleanupLoop discards sessions that closed or never attached.
func (sm *SessionManager) cleanupLoop(interval time.Duration) {
	defer close(sm.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sm.cleanup(time.Now())
		case <-sm.done:
			return
		}
	}
}

func (sm *SessionManager) cleanup(now time.Time) int {
	var stale []string
	sm.mu.RLock()
	for id, s := range sm.sessions {
		switch {
		case s.IsClosed():
			stale = append(stale, id)
		case !s.Attached() && now.Sub(s.CreatedAt) > sm.config.AttachTimeout:
			stale = append(stale, id)
		}
	}
	sm.mu.RUnlock()

	for _, id := range stale {
		sm.Remove(id)
	}
	if len(stale) > 0 {
		sm.logger.Debug("sessions cleaned up", "count", len(stale), "remaining", sm.Count())
	}
	return len(stale)
}

// Shutdown tells every client the server is going away and closes all
// sessions. It stops the cleanup loop.
func (sm *SessionManager) Shutdown(ctx context.Context) error {
	sm.closeOnce.Do(func() { close(sm.done) })

	sm.mu.Lock()
	all := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		all = append(all, s)
	}
	sm.sessions = make(map[string]*Session)
	sm.mu.Unlock()

	for _, s := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.SendClose(protocol.CloseServerShutdown, "server shutting down")
		sm.totalClosed.Add(1)
	}

	select {
	case <-sm.cleanupDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ManagerStats summarizes the manager for the health endpoint.
type ManagerStats struct {
	Active       int    `json:"active"`
	Attached     int    `json:"attached"`
	TotalCreated uint64 `json:"total_created"`
	TotalClosed  uint64 `json:"total_closed"`
}

// Stats returns current manager counters.
func (sm *SessionManager) Stats() ManagerStats {
	st := ManagerStats{
		TotalCreated: sm.totalCreated.Load(),
		TotalClosed:  sm.totalClosed.Load(),
	}
	sm.ForEach(func(s *Session) {
		st.Active++
		if s.Attached() {
			st.Attached++
		}
	})
	return st
}
