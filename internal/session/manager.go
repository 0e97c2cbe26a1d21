package session

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/roslyn-stone/roslyn-stone/internal/event"
	"github.com/roslyn-stone/roslyn-stone/internal/logging"
	"github.com/roslyn-stone/roslyn-stone/pkg/types"
)

// DefaultSweepInterval is the background sweep cadence spec.md §4.8
// prescribes by default.
const DefaultSweepInterval = time.Minute

// Manager is the SessionManager of spec.md §4.8. The zero value is not
// usable; construct with NewManager.
type Manager struct {
	mapMu    sync.RWMutex
	sessions map[string]*Session

	timeout       time.Duration
	sweepInterval time.Duration
	maskIDs       bool

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewManager returns a Manager that evicts sessions idle for longer than
// timeout. Pass sweepInterval <= 0 for DefaultSweepInterval.
func NewManager(timeout, sweepInterval time.Duration, maskIDsInLogs bool) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Manager{
		sessions:      make(map[string]*Session),
		timeout:       timeout,
		sweepInterval: sweepInterval,
		maskIDs:       maskIDsInLogs,
		stopCh:        make(chan struct{}),
	}
}

// Create generates a universally unique session id, inserts an empty
// session, and returns the id.
func (m *Manager) Create() string {
	id := ulid.Make().String()
	now := time.Now()

	m.mapMu.Lock()
	m.sessions[id] = newSession(id, now)
	m.mapMu.Unlock()

	event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{SessionID: id}})
	logging.Debug().Str("session", logging.SessionID(id, m.maskIDs)).Msg("session created")
	return id
}

// Exists reports whether id names a live session. O(1), side-effect-free.
func (m *Manager) Exists(id string) bool {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	_, ok := m.sessions[id]
	return ok
}

// Get returns the session for id, for the engine to lock and operate on
// directly. The bool is false if no such session exists.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Touch refreshes last_used_at under the session's own lock. Returns
// false if the session does not exist.
func (m *Manager) Touch(id string) bool {
	s, ok := m.Get(id)
	if !ok {
		return false
	}
	s.Lock()
	s.lastUsedAt = time.Now()
	s.Unlock()
	return true
}

// Remove evicts the session, triggering sandbox release. Idempotent:
// removing an absent session is a no-op returning false.
func (m *Manager) Remove(id string) bool {
	m.mapMu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mapMu.Unlock()
	if !ok {
		return false
	}

	s.Lock()
	sb := s.sandbox
	s.sandbox = nil
	s.Unlock()
	if sb != nil {
		if err := sb.Dispose(); err != nil {
			logging.Warn().Str("session", logging.SessionID(id, m.maskIDs)).Err(err).Msg("sandbox dispose failed during session removal")
		}
	}

	event.Publish(event.Event{Type: event.SessionEvicted, Data: event.SessionEvictedData{SessionID: id, Reason: "reset"}})
	logging.Debug().Str("session", logging.SessionID(id, m.maskIDs)).Msg("session removed")
	return true
}

// Sweep removes every session idle for longer than the manager's
// timeout, skipping any session whose execution lock is currently held
// (per spec.md §5, the only coordination needed with the engine). Returns
// the number of sessions removed.
func (m *Manager) Sweep() int {
	now := time.Now()

	m.mapMu.RLock()
	candidates := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if !s.mu.TryLock() {
			continue // execution in flight; not a candidate this sweep
		}
		idle := now.Sub(s.lastUsedAt)
		s.mu.Unlock()
		if idle > m.timeout {
			candidates = append(candidates, id)
		}
	}
	m.mapMu.RUnlock()

	removed := 0
	for _, id := range candidates {
		m.mapMu.Lock()
		s, ok := m.sessions[id]
		if !ok {
			m.mapMu.Unlock()
			continue
		}
		if !s.TryLock() {
			// An execution is in flight; leave this session for the next
			// sweep rather than evict out from under it.
			m.mapMu.Unlock()
			continue
		}
		if time.Since(s.lastUsedAt) <= m.timeout {
			// Touched between the scan above and now; must not evict.
			s.Unlock()
			m.mapMu.Unlock()
			continue
		}
		delete(m.sessions, id)
		sb := s.sandbox
		s.sandbox = nil
		s.Unlock()
		m.mapMu.Unlock()

		if sb != nil {
			if err := sb.Dispose(); err != nil {
				logging.Warn().Str("session", logging.SessionID(id, m.maskIDs)).Err(err).Msg("sandbox dispose failed during sweep")
			}
		}
		event.Publish(event.Event{Type: event.SessionEvicted, Data: event.SessionEvictedData{SessionID: id, Reason: "sweep"}})
		removed++
	}

	if removed > 0 {
		event.Publish(event.Event{Type: event.SessionsSwept, Data: event.SessionsSweptData{Count: removed}})
		logging.Info().Int("count", removed).Msg("swept idle sessions")
	}
	return removed
}

// ActiveIDs returns a snapshot of every live session id.
func (m *Manager) ActiveIDs() []string {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Metadata returns a point-in-time snapshot of the named session's
// externally-visible state.
func (m *Manager) Metadata(id string) (types.SessionMetadata, bool) {
	s, ok := m.Get(id)
	if !ok {
		return types.SessionMetadata{}, false
	}
	s.Lock()
	md := s.metadata()
	s.Unlock()
	return md, true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mapMu.RLock()
	defer m.mapMu.RUnlock()
	return len(m.sessions)
}

// StartSweeping launches the background sweep goroutine. Call Stop to
// shut it down.
func (m *Manager) StartSweeping() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep()
			case <-m.stopCh:
				return
			}
		}
	}()
}

// Stop halts the background sweep goroutine and waits for it to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
